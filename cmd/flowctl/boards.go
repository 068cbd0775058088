package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"flowboard/application/commands"
	"flowboard/application/queries"
	domainconfig "flowboard/domain/config"
	"flowboard/domain/core/aggregates"
	"flowboard/domain/render"
	"flowboard/domain/viewport"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List, inspect and export boards",
}

var boardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's boards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := wire(ctx)
		if err != nil {
			return err
		}
		result, err := c.QueryBus.Ask(ctx, queries.ListBoardsQuery{UserID: userID})
		if err != nil {
			return err
		}
		list := result.(*queries.ListBoardsResult)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, list)
		}
		if list.Total == 0 {
			subtle.Fprintln(out, "No boards")
			return nil
		}
		rows := make([][]string, 0, len(list.Boards))
		for _, b := range list.Boards {
			rows = append(rows, []string{b.ID.String(), truncate(b.Name, 40), b.UpdatedAt.Local().Format(time.DateTime)})
		}
		printTable(out, []string{"ID", "NAME", "UPDATED"}, rows)
		return nil
	},
}

var boardsShowCmd = &cobra.Command{
	Use:   "show <board-id>",
	Short: "Show the blocks and connections of a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		board, err := getBoard(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, board)
		}
		fmt.Fprintf(out, "%s %s\n", brand.Sprint(board.Name), subtle.Sprint(board.ID.String()))
		if board.Corrupt {
			fmt.Fprintln(out, bad.Sprint("stored content could not be read"))
		}

		titles := make(map[string]string, len(board.Blocks))
		for _, b := range board.Blocks {
			titles[b.ID] = b.Title
		}
		rows := make([][]string, 0, len(board.Blocks))
		for _, b := range board.Blocks {
			targets := make([]string, 0, len(b.Connections))
			for _, to := range b.Connections {
				targets = append(targets, truncate(titles[to], 20))
			}
			rows = append(rows, []string{
				shortID(b.ID),
				truncate(b.Title, 30),
				b.Color,
				strconv.FormatFloat(b.X, 'f', 0, 64) + "," + strconv.FormatFloat(b.Y, 'f', 0, 64),
				strings.Join(targets, ", "),
			})
		}
		if len(rows) > 0 {
			printTable(out, []string{"ID", "TITLE", "COLOR", "POSITION", "CONNECTS TO"}, rows)
		}
		fmt.Fprintf(out, "%d blocks\n", len(board.Blocks))
		return nil
	},
}

var boardsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := wire(ctx)
		if err != nil {
			return err
		}
		id := uuid.NewString()
		if err := c.CommandBus.Send(ctx, commands.CreateBoardCommand{UserID: userID, BoardID: id, Name: args[0]}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s created board %s\n", good.Sprint("✓"), id)
		return nil
	},
}

var boardsDeleteCmd = &cobra.Command{
	Use:   "delete <board-id>",
	Short: "Delete a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := wire(ctx)
		if err != nil {
			return err
		}
		if err := c.CommandBus.Send(ctx, commands.DeleteBoardCommand{UserID: userID, BoardID: args[0]}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s deleted board %s\n", good.Sprint("✓"), args[0])
		return nil
	},
}

var (
	exportOut    string
	exportZoom   float64
	exportWidth  int
	exportHeight int
)

var boardsExportCmd = &cobra.Command{
	Use:   "export <board-id>",
	Short: "Render a board to SVG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		board, err := getBoard(ctx, args[0])
		if err != nil {
			return err
		}
		svg, err := exportSVG(board, cfg.Canvas, exportZoom, exportWidth, exportHeight)
		if err != nil {
			return err
		}

		if exportOut == "" || exportOut == "-" {
			_, err := cmd.OutOrStdout().Write(svg)
			return err
		}
		if err := os.WriteFile(exportOut, svg, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s wrote %s\n", good.Sprint("✓"), exportOut)
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func getBoard(ctx context.Context, id string) (*queries.GetBoardResult, error) {
	c, err := wire(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.QueryBus.Ask(ctx, queries.GetBoardQuery{UserID: userID, BoardID: id})
	if err != nil {
		return nil, err
	}
	return result.(*queries.GetBoardResult), nil
}

// exportSVG renders the stored blocks under a fresh viewport scaled to zoom
func exportSVG(board *queries.GetBoardResult, canvas *domainconfig.CanvasConfig, zoom float64, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("width and height must be positive")
	}
	if canvas == nil {
		canvas = domainconfig.DefaultCanvasConfig()
	}
	agg, err := aggregates.ReconstructBoard(board.ID, board.Name, board.Blocks, aggregates.WithCanvasConfig(canvas))
	if err != nil {
		return nil, err
	}
	vp := viewport.NewWithConfig(canvas)
	vp.ZoomAt(0, 0, zoom-vp.Zoom())
	return render.SVG(agg, vp, width, height), nil
}

func init() {
	boardsExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "file to write, stdout when empty")
	boardsExportCmd.Flags().Float64Var(&exportZoom, "zoom", 1, "zoom level, clamped to the canvas limits")
	boardsExportCmd.Flags().IntVar(&exportWidth, "width", 1200, "image width in pixels")
	boardsExportCmd.Flags().IntVar(&exportHeight, "height", 800, "image height in pixels")

	boardsCmd.AddCommand(boardsListCmd)
	boardsCmd.AddCommand(boardsShowCmd)
	boardsCmd.AddCommand(boardsCreateCmd)
	boardsCmd.AddCommand(boardsDeleteCmd)
	boardsCmd.AddCommand(boardsExportCmd)
}
