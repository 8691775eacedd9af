// Package rag assembles the plain-text context that is sent to the model:
// record formatting, PDF chunking and the prompt templates.
package rag

import (
	"errors"
	"strings"
)

// ErrEmptyContext is returned when a prompt is built from a document with
// no blocks.
var ErrEmptyContext = errors.New("context document is empty")

// Document is an ordered, immutable list of text blocks built for one
// request. Methods never mutate the receiver.
type Document struct {
	blocks []string
}

// NewDocument copies the non-blank blocks into a new Document.
func NewDocument(blocks ...string) Document {
	return Document{}.Append(blocks...)
}

// Append returns a new Document with blocks added after the existing ones.
func (d Document) Append(blocks ...string) Document {
	out := make([]string, 0, len(d.blocks)+len(blocks))
	out = append(out, d.blocks...)
	for _, b := range blocks {
		if strings.TrimSpace(b) == "" {
			continue
		}
		out = append(out, b)
	}
	return Document{blocks: out}
}

// Blocks returns a copy of the blocks.
func (d Document) Blocks() []string {
	return append([]string(nil), d.blocks...)
}

func (d Document) Len() int { return len(d.blocks) }

func (d Document) IsEmpty() bool { return len(d.blocks) == 0 }

// Text joins the blocks with a blank line.
func (d Document) Text() (string, error) {
	if d.IsEmpty() {
		return "", ErrEmptyContext
	}
	return strings.Join(d.blocks, "\n\n"), nil
}
