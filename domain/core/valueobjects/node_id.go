package valueobjects

import (
	"errors"

	"github.com/google/uuid"

	pkgerrors "flowboard/pkg/errors"
)

// NodeID is a value object representing a unique block identifier.
// It is generated client-side so a block is usable before any save.
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString creates a NodeID from an existing string. Any form
// uuid.Parse accepts is stored in canonical lowercase form.
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, pkgerrors.NewValidationError("node ID cannot be empty").WithCode(pkgerrors.CodeInvalidID)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return NodeID{}, pkgerrors.NewValidationError("node ID must be a valid UUID").WithCode(pkgerrors.CodeInvalidID)
	}
	return NodeID{value: parsed.String()}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string")
	}
	raw := string(data[1 : len(data)-1])
	if parsed, err := uuid.Parse(raw); err == nil {
		raw = parsed.String()
	}
	id.value = raw
	return nil
}

// BoardID identifies a persisted board document
type BoardID string

// NewBoardID creates a new random BoardID
func NewBoardID() BoardID {
	return BoardID(uuid.New().String())
}

// ParseBoardID validates a board identifier received from a caller
func ParseBoardID(id string) (BoardID, error) {
	if id == "" {
		return "", pkgerrors.NewValidationError("board ID cannot be empty").WithCode(pkgerrors.CodeInvalidID)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", pkgerrors.NewValidationError("board ID must be a valid UUID").WithCode(pkgerrors.CodeInvalidID)
	}
	return BoardID(parsed.String()), nil
}

// String returns the string representation
func (id BoardID) String() string {
	return string(id)
}
