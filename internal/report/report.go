// Package report renders evaluation results as JSON files and terminal
// summaries.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteJSONFile writes v as indented JSON to path, creating parent
// directories as needed.
func WriteJSONFile(path string, v any) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return WriteJSON(f, v)
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Filename builds a stable per-item file name for batch output
func Filename(index int, label string) string {
	slug := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(label), "-"), "-.")
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-.")
	}
	if slug == "" {
		return fmt.Sprintf("%04d.json", index+1)
	}
	return fmt.Sprintf("%04d-%s.json", index+1, slug)
}
