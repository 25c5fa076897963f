package storage

import (
	"encoding/json"
	"fmt"

	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

const indent = "  "

// EmptyDocument is what a backend is initialized with when nothing is stored yet.
var EmptyDocument = []byte("{\n" + indent + `"users": []` + "\n}\n")

// Encode serializes the document the way every backend stores it.
func Encode(doc *models.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", indent)
	if err != nil {
		return nil, fmt.Errorf("%w: error marshaling JSON: %w", ErrWrite, err)
	}

	return append(data, '\n'), nil
}

// Decode parses stored content into a document.
func Decode(data []byte) (*models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &doc, nil
}
