package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JSONRenderer archives the document content as <Dir>/<invoice>.json. It
// stands in wherever a layout renderer is not deployed.
type JSONRenderer struct {
	Dir string
}

// Render writes the file atomically and returns its path.
func (r JSONRenderer) Render(_ context.Context, doc Document) (string, error) {
	name := strings.TrimSpace(doc.Header.Number)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", errors.New("document: invalid invoice number for file name")
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("document: create dir: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.Dir, name+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", fmt.Errorf("document: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("document: rename: %w", err)
	}
	return path, nil
}
