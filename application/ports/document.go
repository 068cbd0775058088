package ports

import (
	"encoding/json"
	"strings"

	"flowboard/domain/core/entities"
	pkgerrors "flowboard/pkg/errors"
)

// Document is the serialised shape of a board's content:
// {"blocks":[{id,title,content,x,y,color,connections}]}
type Document struct {
	Blocks []entities.BlockState `json:"blocks"`
}

// EncodeDocument serialises a block list into board content
func EncodeDocument(blocks []entities.BlockState) (string, error) {
	if blocks == nil {
		blocks = []entities.BlockState{}
	}
	for i := range blocks {
		if blocks[i].Connections == nil {
			blocks[i].Connections = []string{}
		}
	}
	data, err := json.Marshal(Document{Blocks: blocks})
	if err != nil {
		return "", pkgerrors.NewInternalError("failed to encode board document").WithCause(err)
	}
	return string(data), nil
}

// DecodeDocument parses board content. Empty content is an empty board.
func DecodeDocument(content string) (Document, error) {
	if strings.TrimSpace(content) == "" {
		return Document{Blocks: []entities.BlockState{}}, nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return Document{}, pkgerrors.NewValidationError("board content is not a valid document").
			WithCode(pkgerrors.CodeInvalidInput).
			WithCause(err)
	}
	if doc.Blocks == nil {
		doc.Blocks = []entities.BlockState{}
	}
	return doc, nil
}
