package source

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// Parsed is the plain-text extraction of one uploaded file.
type Parsed struct {
	Text        string
	ContentType string
}

// Parse extracts plain text from an uploaded file. Plain text, markdown and
// PDF are supported; anything else is rejected with an unsupported-format
// error. Detection goes by content, not by the client-supplied filename.
func Parse(filename string, data []byte) (*Parsed, error) {
	if len(data) == 0 {
		return nil, core.NewError(
			fmt.Errorf("file %q is empty", filename),
			core.CodeUnsupportedFormat,
			map[string]any{"filename": filename},
		)
	}
	detected := mimetype.Detect(data)
	switch {
	case detected.Is("application/pdf"):
		text, err := extractPDF(data)
		if err != nil {
			return nil, core.NewError(
				fmt.Errorf("parsing pdf %q: %w", filename, err),
				core.CodeUnsupportedFormat,
				map[string]any{"filename": filename},
			)
		}
		return &Parsed{Text: text, ContentType: "application/pdf"}, nil
	case isTextual(detected, data):
		contentType := "text/plain"
		if strings.HasSuffix(strings.ToLower(filename), ".md") {
			contentType = "text/markdown"
		}
		return &Parsed{Text: string(data), ContentType: contentType}, nil
	default:
		return nil, core.NewError(
			fmt.Errorf("file %q has unsupported type %s", filename, detected.String()),
			core.CodeUnsupportedFormat,
			map[string]any{"filename": filename, "detected": detected.String()},
		)
	}
}

func isTextual(detected *mimetype.MIME, data []byte) bool {
	for mime := detected; mime != nil; mime = mime.Parent() {
		if mime.Is("text/plain") {
			return utf8.Valid(data)
		}
	}
	return false
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	for page := 1; page <= reader.NumPage(); page++ {
		p := reader.Page(page)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", fmt.Errorf("no extractable text")
	}
	return builder.String(), nil
}
