// Package extract converts uploaded binary documents into normalized
// plain text.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Extractor pulls plain text out of PDF documents. Pages whose text
// cannot be read (embedded images, scanned content) are skipped rather
// than failing the whole document.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the normalized plain text of the document.
func (e *Extractor) Extract(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("document is empty")
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}

	text := Normalize(strings.Join(pages, "\n\n"))
	if text == "" {
		return "", fmt.Errorf("document produced no text")
	}
	return text, nil
}

var (
	crlfRe      = regexp.MustCompile(`\r\n?`)
	trailingRe  = regexp.MustCompile(`[ \t]+\n`)
	spaceRunRe  = regexp.MustCompile(` {2,}`)
	manyBlankRe = regexp.MustCompile(`\n{3,}`)
)

// Normalize canonicalizes extracted text: consistent line endings,
// collapsed excess whitespace, paragraph boundaries kept as exactly one
// blank line. Paragraph boundaries are later used as preferred chunk
// split points.
func Normalize(text string) string {
	text = crlfRe.ReplaceAllString(text, "\n")
	text = strings.ReplaceAll(text, "\t", " ")
	text = trailingRe.ReplaceAllString(text, "\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = manyBlankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
