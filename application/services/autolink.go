package services

import (
	"sort"
	"strings"

	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"

	"go.uber.org/zap"
)

// AutoLinker proposes connections for a block based on shared words
type AutoLinker struct {
	maxLinks  int
	threshold float64
	logger    *zap.Logger
}

// NewAutoLinker creates a linker. maxLinks caps suggestions per call and
// threshold is the minimum share of the source's keywords a target must contain.
func NewAutoLinker(maxLinks int, threshold float64, logger *zap.Logger) *AutoLinker {
	if maxLinks <= 0 {
		maxLinks = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoLinker{maxLinks: maxLinks, threshold: threshold, logger: logger}
}

// Suggest returns the blocks most similar to source, best first. Blocks
// already connected to source in either direction are never suggested.
func (a *AutoLinker) Suggest(board *aggregates.Board, source valueobjects.NodeID) []valueobjects.NodeID {
	src, ok := board.Block(source)
	if !ok {
		return nil
	}
	keywords := extractKeywords(src.Title() + " " + src.Content())
	if len(keywords) == 0 {
		return nil
	}

	type candidate struct {
		block      *entities.Block
		similarity float64
	}
	var candidates []candidate

	for _, target := range board.Blocks() {
		if target.ID().Equals(source) {
			continue
		}
		if src.IsConnectedTo(target.ID()) || target.IsConnectedTo(source) {
			continue
		}
		similarity := a.similarity(keywords, target)
		if similarity >= a.threshold && similarity > 0 {
			candidates = append(candidates, candidate{block: target, similarity: similarity})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})
	if len(candidates) > a.maxLinks {
		candidates = candidates[:a.maxLinks]
	}

	out := make([]valueobjects.NodeID, len(candidates))
	for i, c := range candidates {
		out[i] = c.block.ID()
		a.logger.Debug("Suggested link",
			zap.String("source", source.String()),
			zap.String("target", c.block.ID().String()),
			zap.Float64("similarity", c.similarity),
		)
	}
	return out
}

// similarity is the share of source keywords present in the target's text
func (a *AutoLinker) similarity(keywords map[string]bool, target *entities.Block) float64 {
	words := extractKeywords(target.Title() + " " + target.Content())
	matches := 0
	for kw := range keywords {
		if words[kw] {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"from": true, "are": true, "was": true, "but": true, "not": true, "you": true,
	"into": true, "have": true, "has": true, "our": true, "your": true,
}

// extractKeywords tokenizes text into lowercase words of three or more letters
func extractKeywords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		cleaned := strings.Trim(token, ".,!?;:\"'()[]{}#@$%^&*+=<>/\\|`~-")
		if len([]rune(cleaned)) < 3 || stopWords[cleaned] {
			continue
		}
		words[cleaned] = true
	}
	return words
}
