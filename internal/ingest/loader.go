package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Source is a loaded document before chunking.
type Source struct {
	Path     string
	Title    string
	Text     string
	Checksum string
}

// Supported reports whether path has an extension the loader understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".docx":
		return true
	default:
		return false
	}
}

// Load reads a document and extracts its plain text. The checksum covers the
// raw file bytes so format-only edits still trigger a reindex.
func Load(path string) (Source, error) {
	if !Supported(path) {
		return Source{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if isHidden(path) {
		return Source{}, fmt.Errorf("%w: temporary file %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read document: %w", err)
	}
	sum := sha256.Sum256(raw)

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		text, err = docxText(raw)
		if err != nil {
			return Source{}, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
		}
	default:
		if !utf8.Valid(raw) {
			return Source{}, fmt.Errorf("%w: %s is not utf-8 text", ErrUnsupportedFormat, filepath.Base(path))
		}
		text = string(raw)
	}
	return Source{
		Path:     path,
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Text:     normalizeText(text),
		Checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// isHidden skips dotfiles and Word lock files such as "~$report.docx".
func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$")
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for index, line := range lines {
		lines[index] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
