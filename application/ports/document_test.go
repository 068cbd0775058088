package ports

import (
	"testing"

	"flowboard/domain/core/entities"
	pkgerrors "flowboard/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDocumentWireShape(t *testing.T) {
	content, err := EncodeDocument([]entities.BlockState{{
		ID:    "11111111-1111-4111-8111-111111111111",
		Title: "A",
		X:     1.5,
		Y:     -2,
		Color: "teal",
	}})
	require.NoError(t, err)

	assert.JSONEq(t, `{"blocks":[{
		"id":"11111111-1111-4111-8111-111111111111",
		"title":"A","content":"","x":1.5,"y":-2,"color":"teal","connections":[]}]}`, content)
}

func TestEncodeEmptyBoard(t *testing.T) {
	content, err := EncodeDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, `{"blocks":[]}`, content)
}

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantBlocks int
		wantErr    bool
	}{
		{name: "empty content", content: "", wantBlocks: 0},
		{name: "no blocks key", content: `{}`, wantBlocks: 0},
		{name: "one block", content: `{"blocks":[{"id":"x","title":"t","connections":["y"]}]}`, wantBlocks: 1},
		{name: "malformed", content: `{"blocks":[`, wantErr: true},
		{name: "wrong type", content: `{"blocks":"nope"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeDocument(tt.content)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, doc.Blocks)
			assert.Len(t, doc.Blocks, tt.wantBlocks)
		})
	}
}
