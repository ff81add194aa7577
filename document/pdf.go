// Package document lays contract text out as a PDF.
package document

import (
	"io"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

const (
	margin    = 72.0
	fontSize  = 12.0
	leading   = 14.0
	paraSpace = 0.2 * 72
)

var emphasis = strings.NewReplacer("**", "", "__", "", "*", "")

// Paragraphs splits text on blank lines and strips markdown emphasis.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.TrimSpace(text), "\n\n") {
		out = append(out, emphasis.Replace(p))
	}
	return out
}

// Write renders text as a US Letter PDF in Times 12pt to w.
func Write(text string, w io.Writer) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("Contract", true)
	pdf.AddPage()
	pdf.SetFont("Times", "", fontSize)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, p := range Paragraphs(text) {
		pdf.MultiCell(0, leading, tr(p), "", "L", false)
		pdf.Ln(paraSpace)
	}
	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "write pdf")
	}
	return nil
}

// RenderPDF writes the PDF for text to path.
func RenderPDF(text, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create pdf")
	}
	if err := Write(text, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return errors.Wrap(f.Close(), "close pdf")
}
