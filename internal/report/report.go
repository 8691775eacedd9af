// Package report renders a model comparison into a PDF document.
package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/interpret"
	"github.com/go-pdf/fpdf"
)

const (
	ContentType = "application/pdf"
	FileName    = "property-comparison-report.pdf"

	margin = 50.0
	font   = "Helvetica"
)

// Renderer builds comparison reports.
type Renderer struct {
	interp   *interpret.Interpreter
	now      func() time.Time
	compress bool
}

func NewRenderer(interp *interpret.Interpreter) *Renderer {
	return &Renderer{interp: interp, now: time.Now, compress: true}
}

// Render strictly decodes raw model output and lays it out on A4 pages.
func (r *Renderer) Render(ctx context.Context, raw string) ([]byte, error) {
	c, err := r.interp.DecodeComparison(ctx, raw)
	if err != nil {
		return nil, err
	}
	return r.RenderComparison(c)
}

// RenderComparison lays out an already decoded comparison.
func (r *Renderer) RenderComparison(c *interpret.Comparison) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("Property Comparison Report", true)
	pdf.AddPage()

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	w.text(24, "B", "C", "Property Comparison Report")
	w.down(0.5)

	w.text(16, "B", "L", "Client Information")
	w.down(0.3)
	w.text(12, "", "L", "Name: "+c.Client.Name)
	w.text(12, "", "L", "Email: "+c.Client.Email)
	w.text(12, "", "L", "Phone: "+c.Client.Phone)
	w.down(1)

	w.text(16, "B", "L", "Property Comparison")
	w.down(0.5)
	w.property("Property A", c.Summary.PropertyA)
	w.property("Property B", c.Summary.PropertyB)

	w.text(16, "B", "L", "Recommendation")
	w.down(0.3)
	w.text(12, "B", "L", "Recommended Property: "+c.Summary.RecommendedProperty)
	w.down(0.3)
	w.text(10, "", "L", "Justification:")
	w.down(0.2)
	w.text(9, "", "L", c.Summary.Justification)
	w.down(1)

	q := c.FinalQuote
	w.text(16, "B", "L", "Final Quote")
	w.down(0.3)
	w.text(10, "", "L", fmt.Sprintf("Base Price: %s %s", q.BasePrice, q.Currency))
	w.text(10, "", "L", fmt.Sprintf("Discount: %s %s", q.Discount, q.Currency))
	w.text(10, "", "L", fmt.Sprintf("Agent Commission: %s %s", q.AgentCommission, q.Currency))
	w.down(0.5)
	w.text(12, "B", "L", fmt.Sprintf("Total Price: %s %s", q.TotalPrice, q.Currency))
	w.down(1)

	now := r.now()
	w.text(8, "", "C", fmt.Sprintf("Generated on: %s at %s", now.Format("2006-01-02"), now.Format("15:04:05")))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type writer struct {
	pdf  *fpdf.Fpdf
	tr   func(string) string
	size float64
}

func (w *writer) text(size float64, style, align, s string) {
	w.size = size
	w.pdf.SetFont(font, style, size)
	w.pdf.MultiCell(0, size*1.2, w.tr(s), "", align, false)
}

// down adds n lines of the current font size.
func (w *writer) down(n float64) {
	w.pdf.Ln(n * w.size * 1.2)
}

func (w *writer) property(title string, p *interpret.PropertyAssessment) {
	w.text(14, "B", "L", title)
	w.down(0.3)
	w.text(10, "", "L", "Location: "+p.Location)
	w.text(10, "", "L", "Type: "+p.Type)
	w.text(10, "", "L", "Area: "+p.Area+" m²")
	w.text(10, "", "L", "Rooms: "+p.Rooms)
	w.text(10, "", "L", "Price: "+p.Price)
	w.down(0.3)
	w.bullets("Strengths:", p.Strengths)
	w.down(0.3)
	w.bullets("Weaknesses:", p.Weaknesses)
	w.down(1)
}

func (w *writer) bullets(heading string, items []string) {
	w.text(10, "B", "L", heading)
	w.down(0.2)
	for _, it := range items {
		w.text(9, "", "L", "• "+it)
	}
}
