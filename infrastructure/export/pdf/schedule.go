// Package pdf renders a diagram's symbol schedule: the blueprint with
// numbered markers on the first page and a table of placed symbols.
package pdf

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"sort"
	"strconv"
	"time"

	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	"blueprint-editor/pkg/files"

	"github.com/jung-kurt/gofpdf"
)

// Schedule is the input of one export
type Schedule struct {
	DiagramID int64
	Title     string
	Nodes     []entities.Node
	// Blueprint pixel size and offset, used to place markers
	Width, Height int
	Offset        valueobjects.Position
	// Preview is the scaled blueprint; nil omits the plan page image
	Preview     image.Image
	GeneratedAt time.Time
}

// SymbolCount is one row of the per-symbol totals
type SymbolCount struct {
	SymbolID string
	Name     string
	Count    int
}

// Totals counts symbol nodes per symbol id, ordered by name
func Totals(nodes []entities.Node) []SymbolCount {
	byID := map[string]*SymbolCount{}
	for _, n := range nodes {
		if !n.IsSymbol() {
			continue
		}
		c, ok := byID[n.Data.ID]
		if !ok {
			c = &SymbolCount{SymbolID: n.Data.ID, Name: n.Data.Name}
			byID[n.Data.ID] = c
		}
		c.Count++
	}
	out := make([]SymbolCount, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].SymbolID < out[j].SymbolID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Exporter writes schedules as A4 landscape PDFs
type Exporter struct {
	author string
}

// NewExporter creates an exporter
func NewExporter(author string) *Exporter {
	return &Exporter{author: author}
}

const (
	pageW  = 842.0 // A4 landscape, points
	pageH  = 595.0
	margin = 36.0
)

// Write renders s to w
func (e *Exporter) Write(w io.Writer, s Schedule) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pageW, Ht: pageH},
		OrientationStr: "L",
	})
	pdf.SetTitle(fmt.Sprintf("%s symbol schedule", s.Title), true)
	pdf.SetAuthor(e.author, true)
	if !s.GeneratedAt.IsZero() {
		pdf.SetCreationDate(s.GeneratedAt)
	}
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)

	if err := e.planPage(pdf, s); err != nil {
		return err
	}
	e.tablePages(pdf, s)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// planPage draws the blueprint and a numbered marker per node
func (e *Exporter) planPage(pdf *gofpdf.Fpdf, s Schedule) error {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(margin, margin+4, tr(pdf, s.Title))
	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(margin, margin+18, fmt.Sprintf("Diagram %d, %d nodes", s.DiagramID, len(s.Nodes)))

	areaX, areaY := margin, margin+30
	areaW, areaH := pageW-2*margin, pageH-areaY-margin

	width, height := float64(s.Width), float64(s.Height)
	if width <= 0 || height <= 0 {
		width, height = extent(s.Nodes)
	}
	scale := areaW / width
	if h := areaH / height; h < scale {
		scale = h
	}

	if s.Preview != nil {
		var buf bytes.Buffer
		if err := files.EncodePNG(&buf, s.Preview); err != nil {
			return fmt.Errorf("encode preview: %w", err)
		}
		name := "blueprint-" + strconv.FormatInt(s.DiagramID, 10)
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
		pdf.ImageOptions(name,
			areaX+s.Offset.X*scale, areaY+s.Offset.Y*scale,
			width*scale, height*scale,
			false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("embed preview: %w", err)
		}
	} else {
		pdf.SetDrawColor(180, 180, 180)
		pdf.Rect(areaX, areaY, width*scale, height*scale, "D")
	}

	pdf.SetFont("Helvetica", "B", 7)
	for i, n := range s.Nodes {
		x := areaX + n.Position.X*scale
		y := areaY + n.Position.Y*scale
		pdf.SetFillColor(255, 255, 255)
		pdf.SetDrawColor(200, 30, 30)
		pdf.Circle(x, y, 6, "FD")
		label := strconv.Itoa(i + 1)
		pdf.Text(x-pdf.GetStringWidth(label)/2, y+2.5, label)
	}
	return nil
}

// tablePages lists every node and the per-symbol totals
func (e *Exporter) tablePages(pdf *gofpdf.Fpdf, s Schedule) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 20, "Placed symbols", "", 1, "L", false, 0, "")

	cols := []struct {
		title string
		width float64
	}{{"#", 30}, {"Node", 150}, {"Symbol", 200}, {"Type", 140}, {"X", 80}, {"Y", 80}}

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range cols {
			pdf.CellFormat(c.width, 16, c.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	for i, n := range s.Nodes {
		if pdf.GetY()+16 > pageH-margin {
			pdf.AddPage()
			header()
		}
		name := n.Data.Name
		if name == "" {
			name = n.Data.Label
		}
		row := []string{
			strconv.Itoa(i + 1),
			n.ID,
			tr(pdf, name),
			string(n.Type.Normalize()),
			strconv.FormatFloat(n.Position.X, 'f', 1, 64),
			strconv.FormatFloat(n.Position.Y, 'f', 1, 64),
		}
		for j, c := range cols {
			pdf.CellFormat(c.width, 14, row[j], "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(12)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 18, "Totals", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, t := range Totals(s.Nodes) {
		pdf.CellFormat(230, 14, tr(pdf, t.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 14, strconv.Itoa(t.Count), "1", 1, "R", false, 0, "")
	}
}

func extent(nodes []entities.Node) (float64, float64) {
	w, h := 1200.0, 800.0
	for _, n := range nodes {
		if n.Position.X+40 > w {
			w = n.Position.X + 40
		}
		if n.Position.Y+40 > h {
			h = n.Position.Y + 40
		}
	}
	return w, h
}

// tr maps UTF-8 to the cp1252 core fonts
func tr(pdf *gofpdf.Fpdf, s string) string {
	return pdf.UnicodeTranslatorFromDescriptor("")(s)
}
