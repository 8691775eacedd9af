package rag

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	ChunkSize    = 1200
	ChunkOverlap = 200

	// Chunks of this many characters or fewer are dropped.
	minChunkLen = 10
)

const (
	MsgMissingPDF = "PDF data (base64) missing"
	MsgNoContent  = "No valid content found in the document."
	MsgBadPDF     = "Could not read the PDF document"
)

// loadPDF extracts page text; swapped in tests.
var loadPDF = func(ctx context.Context, r io.ReaderAt, size int64) ([]schema.Document, error) {
	return documentloaders.NewPDF(r, size).Load(ctx)
}

var whitespace = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// ExtractChunks returns the cleaned, overlapping text chunks of a PDF.
func ExtractChunks(ctx context.Context, pdf []byte) ([]string, error) {
	if len(pdf) == 0 {
		return nil, common.NewError(common.ErrInvalidInput, MsgMissingPDF)
	}

	pages, err := loadPDF(ctx, bytes.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		return nil, common.NewError(common.ErrInvalidInput, MsgBadPDF)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(ChunkSize),
		textsplitter.WithChunkOverlap(ChunkOverlap),
	)

	// The document is split as one text so chunks can span page breaks.
	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		texts = append(texts, page.PageContent)
	}
	parts, err := splitter.SplitText(strings.Join(texts, "\n"))
	if err != nil {
		return nil, err
	}

	var chunks []string
	for _, p := range parts {
		c := cleanText(p)
		if utf8.RuneCountInString(c) > minChunkLen {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return nil, common.NewError(common.ErrInvalidInput, MsgNoContent)
	}
	return chunks, nil
}
