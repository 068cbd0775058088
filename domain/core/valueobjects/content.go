package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"flowboard/domain/config"
	pkgerrors "flowboard/pkg/errors"
)

// UntitledTitle replaces a blank title on blocks read from storage
const UntitledTitle = "Untitled"

// BlockText is a value object for a block's title and body
type BlockText struct {
	title   string
	content string
}

// NewBlockTextWithConfig creates block text with validation and configuration
func NewBlockTextWithConfig(title, content string, cfg *config.CanvasConfig) (BlockText, error) {
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}

	title = strings.TrimSpace(title)

	if title == "" {
		return BlockText{}, pkgerrors.NewValidationError("title cannot be empty")
	}

	if utf8.RuneCountInString(title) > cfg.MaxTitleLength {
		return BlockText{}, pkgerrors.NewValidationError(
			fmt.Sprintf("title exceeds maximum length of %d characters", cfg.MaxTitleLength))
	}

	if utf8.RuneCountInString(content) > cfg.MaxContentLength {
		return BlockText{}, pkgerrors.NewValidationError(
			fmt.Sprintf("content exceeds maximum length of %d characters", cfg.MaxContentLength))
	}

	return BlockText{
		title:   title,
		content: content,
	}, nil
}

// RestoreBlockText rebuilds text read from storage. Length limits apply when
// text is written, not when it is read back, so nothing here is rejected.
func RestoreBlockText(title, content string) BlockText {
	title = strings.TrimSpace(title)
	if title == "" {
		title = UntitledTitle
	}
	return BlockText{title: title, content: content}
}

// Edit returns the text with the given fields replaced. Only the fields
// being replaced are checked against cfg.
func (t BlockText) Edit(title, content *string, cfg *config.CanvasConfig) (BlockText, error) {
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}
	next := t
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return BlockText{}, pkgerrors.NewValidationError("title cannot be empty")
		}
		if utf8.RuneCountInString(trimmed) > cfg.MaxTitleLength {
			return BlockText{}, pkgerrors.NewValidationError(
				fmt.Sprintf("title exceeds maximum length of %d characters", cfg.MaxTitleLength))
		}
		next.title = trimmed
	}
	if content != nil {
		if utf8.RuneCountInString(*content) > cfg.MaxContentLength {
			return BlockText{}, pkgerrors.NewValidationError(
				fmt.Sprintf("content exceeds maximum length of %d characters", cfg.MaxContentLength))
		}
		next.content = *content
	}
	return next, nil
}

// Title returns the block title
func (t BlockText) Title() string {
	return t.title
}

// Content returns the block body
func (t BlockText) Content() string {
	return t.content
}

// Equals checks if two texts are equal
func (t BlockText) Equals(other BlockText) bool {
	return t.title == other.title && t.content == other.content
}

// Summary returns a truncated one-line summary of the text
func (t BlockText) Summary(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	combined := t.title
	if t.content != "" {
		combined += ": " + strings.Join(strings.Fields(t.content), " ")
	}

	if utf8.RuneCountInString(combined) <= maxLength {
		return combined
	}

	runes := []rune(combined)
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}
