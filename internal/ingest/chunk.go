package ingest

import (
	"strings"
	"unicode"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// Split cuts text into windows of at most size runes. Cuts prefer a blank
// line, then a line break, then a space in the second half of the window.
// Consecutive chunks share up to overlap runes.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	chunks := []string{}
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}
		cut := boundaryBefore(runes, start, end)
		if piece := strings.TrimSpace(string(runes[start:cut])); piece != "" {
			chunks = append(chunks, piece)
		}
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = alignToWord(runes, next, cut)
	}
	return chunks
}

func boundaryBefore(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for _, separator := range []string{"\n\n", "\n", " "} {
		sep := []rune(separator)
		for index := end; index > floor; index-- {
			if index-len(sep) < start {
				break
			}
			if string(runes[index-len(sep):index]) == separator {
				return index
			}
		}
	}
	return end
}

// alignToWord moves an overlap start forward to the next word so chunks do
// not begin mid-word.
func alignToWord(runes []rune, index, limit int) int {
	if index == 0 || index >= limit {
		return index
	}
	if unicode.IsSpace(runes[index-1]) {
		return index
	}
	for position := index; position < limit; position++ {
		if unicode.IsSpace(runes[position]) {
			return position + 1
		}
	}
	return index
}
