package validators

import (
	"fmt"
	"strings"

	"flowboard/domain/config"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
)

// Issue describes one problem found in a stored board document
type Issue struct {
	BlockID string `json:"block_id,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.BlockID == "" {
		return fmt.Sprintf("%s: %s", i.Field, i.Message)
	}
	return fmt.Sprintf("block %s %s: %s", i.BlockID, i.Field, i.Message)
}

// DocumentValidator repairs block lists read from storage. Stored documents
// may have been written by older clients, under other limits, or edited by
// hand, so every block is kept and repaired in place; only connections that
// cannot point at a block are removed.
type DocumentValidator struct {
	config *config.CanvasConfig
}

// NewDocumentValidator creates a validator with the given canvas rules
func NewDocumentValidator(cfg *config.CanvasConfig) *DocumentValidator {
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}
	return &DocumentValidator{config: cfg}
}

// Sanitize returns a copy of states that satisfies the graph invariants.
// Ids are canonical and unique, positions are finite, titles are non-blank,
// and each kept connection points at another block exactly once.
func (v *DocumentValidator) Sanitize(states []entities.BlockState) ([]entities.BlockState, []Issue) {
	var issues []Issue
	kept := make([]entities.BlockState, 0, len(states))
	seen := make(map[string]bool, len(states))
	// stored id -> id the block is kept under
	alias := make(map[string]string, len(states))

	for i, s := range states {
		raw := s.ID
		id, err := valueobjects.NewNodeIDFromString(raw)
		switch {
		case err != nil:
			s.ID = valueobjects.NewNodeID().String()
			issues = append(issues, Issue{BlockID: s.ID, Field: "id", Message: fmt.Sprintf("block %d had invalid id %q, replaced", i, raw)})
		case seen[id.String()]:
			s.ID = valueobjects.NewNodeID().String()
			issues = append(issues, Issue{BlockID: s.ID, Field: "id", Message: fmt.Sprintf("block %d repeated id %s, replaced", i, id)})
		default:
			s.ID = id.String()
		}
		if _, ok := alias[raw]; !ok && raw != "" {
			alias[raw] = s.ID
		}
		seen[s.ID] = true

		if strings.TrimSpace(s.Title) == "" {
			issues = append(issues, Issue{BlockID: s.ID, Field: "title", Message: "blank title replaced"})
			s.Title = valueobjects.UntitledTitle
		}
		s.Title = strings.TrimSpace(s.Title)
		if !valueobjects.IsFinite(s.X) {
			issues = append(issues, Issue{BlockID: s.ID, Field: "position", Message: "non-finite x reset to 0"})
			s.X = 0
		}
		if !valueobjects.IsFinite(s.Y) {
			issues = append(issues, Issue{BlockID: s.ID, Field: "position", Message: "non-finite y reset to 0"})
			s.Y = 0
		}
		if !valueobjects.Color(s.Color).IsValid() {
			issues = append(issues, Issue{BlockID: s.ID, Field: "color", Message: fmt.Sprintf("unknown color %q replaced", s.Color)})
			s.Color = string(valueobjects.ColorBlue)
		}
		s.Connections = append([]string(nil), s.Connections...)
		kept = append(kept, s)
	}

	if limit := v.config.MaxBlocksPerBoard; limit > 0 && len(kept) > limit {
		issues = append(issues, Issue{Field: "blocks", Message: fmt.Sprintf("board holds %d blocks, over the limit of %d; new blocks are refused", len(kept), limit)})
	}

	for i := range kept {
		kept[i].Connections, issues = v.cleanConnections(kept[i], alias, seen, issues)
	}

	return kept, issues
}

func (v *DocumentValidator) cleanConnections(s entities.BlockState, alias map[string]string, ids map[string]bool, issues []Issue) ([]string, []Issue) {
	out := make([]string, 0, len(s.Connections))
	dup := make(map[string]bool, len(s.Connections))
	for _, raw := range s.Connections {
		target, ok := alias[raw]
		if !ok {
			if id, err := valueobjects.NewNodeIDFromString(raw); err == nil {
				target = id.String()
			} else {
				target = raw
			}
		}
		switch {
		case target == s.ID:
			issues = append(issues, Issue{BlockID: s.ID, Field: "connections", Message: "self connection removed"})
		case dup[target]:
			issues = append(issues, Issue{BlockID: s.ID, Field: "connections", Message: "duplicate connection to " + target + " removed"})
		case !ids[target]:
			issues = append(issues, Issue{BlockID: s.ID, Field: "connections", Message: "dangling connection to " + raw + " removed"})
		default:
			dup[target] = true
			out = append(out, target)
		}
	}
	return out, issues
}
