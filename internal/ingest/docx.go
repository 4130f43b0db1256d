package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxDocxXMLBytes = 32 << 20

// docxText pulls paragraph text out of word/document.xml. Tables come out as
// tab-separated cells, one row per line.
func docxText(raw []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	var body *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			body = file
			break
		}
	}
	if body == nil {
		return "", errors.New("docx archive has no word/document.xml")
	}
	reader, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer reader.Close()
	return wordprocessingText(io.LimitReader(reader, maxDocxXMLBytes))
}

func wordprocessingText(reader io.Reader) (string, error) {
	decoder := xml.NewDecoder(reader)
	var out strings.Builder
	inText := false
	cellsInRow := 0
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}
		switch element := token.(type) {
		case xml.StartElement:
			switch element.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			case "tr":
				cellsInRow = 0
			case "tc":
				if cellsInRow > 0 {
					out.WriteByte('\t')
				}
				cellsInRow++
			}
		case xml.EndElement:
			switch element.Name.Local {
			case "t":
				inText = false
			case "p":
				if cellsInRow == 0 {
					out.WriteByte('\n')
				} else {
					out.WriteByte(' ')
				}
			case "tr":
				cellsInRow = 0
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(element)
			}
		}
	}
	return out.String(), nil
}
