package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	pdfFont       = "body"
	pdfMonoFont   = "mono"
	pdfBodySize   = 11
	pdfLineHeight = 5.5
)

var fontStyles = [...]string{"", "B", "I"}

var headingSizes = [...]float64{0, 18, 15, 13, 12, 11, 11}

// PDFRenderer lays out itineraries with embedded UTF-8 TrueType fonts. It
// needs no external binaries.
type PDFRenderer struct {
	faces map[string][]byte // style ("", "B", "I") -> TTF
}

// NewPDFRenderer uses the Go font family, which covers Latin, Greek and
// Cyrillic scripts.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{faces: map[string][]byte{
		"":  goregular.TTF,
		"B": gobold.TTF,
		"I": goitalic.TTF,
	}}
}

// NewPDFRendererWithFont uses the TrueType file at path for every body
// style, e.g. a Noto CJK face for itineraries in Japanese or Chinese.
func NewPDFRendererWithFont(path string) (*PDFRenderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return &PDFRenderer{faces: map[string][]byte{"": data, "B": data, "I": data}}, nil
}

func (r *PDFRenderer) Name() string { return "pdf" }

func (r *PDFRenderer) Render(ctx context.Context, page Page, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	for _, style := range fontStyles {
		pdf.AddUTF8FontFromBytes(pdfFont, style, r.faces[style])
	}
	pdf.AddUTF8FontFromBytes(pdfMonoFont, "", gomono.TTF)
	if pdf.Err() {
		return fmt.Errorf("load fonts: %w", pdf.Error())
	}
	txt := printable

	pdf.SetTitle(page.Title, true)
	pdf.SetCreator("tripkit", true)
	pdf.SetCreationDate(page.Generated)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Title banner.
	pdf.SetFillColor(33, 94, 160)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(pdfFont, "B", 20)
	pdf.CellFormat(0, 14, txt(page.Title), "", 1, "C", true, 0, "")
	pdf.SetTextColor(100, 100, 100)
	pdf.SetFont(pdfFont, "I", 9)
	pdf.CellFormat(0, 8, "Generated "+page.Generated.Format("2006-01-02 15:04 MST"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()

	for _, b := range page.Blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		pdf.SetTextColor(0, 0, 0)
		switch b.Kind {
		case BlockHeading:
			level := min(max(b.Level, 1), 6)
			pdf.Ln(2)
			pdf.SetFont(pdfFont, "B", headingSizes[level])
			if level <= 2 {
				pdf.SetTextColor(33, 94, 160)
			}
			pdf.MultiCell(0, headingSizes[level]*0.5, txt(b.Text), "", "L", false)
			pdf.Ln(1)

		case BlockParagraph:
			pdf.SetFont(pdfFont, "", pdfBodySize)
			pdf.MultiCell(0, pdfLineHeight, txt(b.Text), "", "L", false)
			pdf.Ln(2)

		case BlockListItem:
			indent := 4 + float64(b.Depth)*6
			pdf.SetFont(pdfFont, "", pdfBodySize)
			pdf.SetX(left + indent)
			marker := b.Marker
			if marker == "-" {
				marker = "•"
			}
			pdf.CellFormat(6, pdfLineHeight, txt(marker), "", 0, "L", false, 0, "")
			pdf.MultiCell(0, pdfLineHeight, txt(b.Text), "", "L", false)
			pdf.Ln(0.5)

		case BlockQuote:
			pdf.SetFont(pdfFont, "I", pdfBodySize)
			pdf.SetTextColor(80, 80, 80)
			pdf.SetX(left + 6)
			pdf.MultiCell(0, pdfLineHeight, txt(b.Text), "", "L", false)
			pdf.Ln(2)

		case BlockCode:
			pdf.SetFont(pdfMonoFont, "", 9)
			pdf.SetFillColor(242, 242, 242)
			pdf.MultiCell(0, 4.5, txt(b.Text), "", "L", true)
			pdf.Ln(2)

		case BlockRule:
			y := pdf.GetY() + 2
			pdf.SetDrawColor(180, 180, 180)
			pdf.Line(left, y, pageW-right, y)
			pdf.Ln(5)
		}
	}

	pdf.Ln(6)
	pdf.SetFont(pdfFont, "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.MultiCell(0, 4, txt(Disclaimer), "", "L", false)

	if pdf.Err() {
		return fmt.Errorf("layout: %w", pdf.Error())
	}
	return pdf.Output(w)
}

// printable drops runes outside the Basic Multilingual Plane and emoji
// presentation marks, which the embedded fonts cannot address.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r == '\n':
			return r
		case r > 0xFFFF, r >= 0x2600 && r <= 0x27BF, r == 0xFE0F, r == 0x200D:
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}
