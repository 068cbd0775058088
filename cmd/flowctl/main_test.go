package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"flowboard/application/queries"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
	"flowboard/pkg/auth"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture() *queries.GetBoardResult {
	a := valueobjects.NewNodeID().String()
	b := valueobjects.NewNodeID().String()
	return &queries.GetBoardResult{
		ID:   valueobjects.NewBoardID(),
		Name: "Plan",
		Blocks: []entities.BlockState{
			{ID: a, Title: "Hello <world>", X: 100, Y: 0, Color: "blue", Connections: []string{b}},
			{ID: b, Title: "Second", X: 400, Y: 200, Color: "green", Connections: []string{}},
		},
	}
}

func TestExportSVG(t *testing.T) {
	tests := []struct {
		name      string
		zoom      float64
		wantWidth string
	}{
		{name: "default zoom", zoom: 1, wantWidth: `width="240.00"`},
		{name: "zoomed in", zoom: 2, wantWidth: `width="480.00"`},
		{name: "clamped to max", zoom: 10, wantWidth: `width="720.00"`},
		{name: "clamped to min", zoom: 0.01, wantWidth: `width="72.00"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svg, err := exportSVG(exportFixture(), nil, tt.zoom, 640, 480)
			require.NoError(t, err)

			out := string(svg)
			assert.True(t, strings.HasPrefix(out, `<svg `))
			assert.Contains(t, out, `width="640" height="480"`)
			assert.Contains(t, out, tt.wantWidth)
			assert.Contains(t, out, "Hello &lt;world&gt;")
			assert.Equal(t, 1, strings.Count(out, "<path "))
		})
	}
}

func TestExportSVGRejectsBadSize(t *testing.T) {
	_, err := exportSVG(exportFixture(), nil, 1, 0, 480)
	assert.Error(t, err)
}

func TestIssueTokenIsAccepted(t *testing.T) {
	token, err := issueToken("s3cret", "flowboard", "user-9", "u@example.com", []string{"authenticated"}, time.Hour)
	require.NoError(t, err)

	validator, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "s3cret", Issuer: "flowboard"})
	require.NoError(t, err)
	claims, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.UserID)
	assert.Equal(t, "u@example.com", claims.Email)

	_, err = issueToken("", "flowboard", "user-9", "", nil, time.Hour)
	assert.Error(t, err)
}

func TestPrintTableAligns(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	printTable(&buf, []string{"ID", "NAME"}, [][]string{{"1", "Roadmap"}, {"22", "Q3"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID  NAME", lines[0])
	assert.Equal(t, "1   Roadmap", lines[2])
	assert.Equal(t, "22  Q3", lines[3])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
