package pdf

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"

	"leadflow/internal/models"
)

// HistoryReport is the input of the stage-history audit PDF.
type HistoryReport struct {
	LeadID       int64
	CurrentStage models.Stage
	Transitions  []models.TransitionRecord // newest first
	GeneratedAt  time.Time
}

// Generator: интерфейс, в тестах подменяется
type Generator interface {
	StageHistory(w io.Writer, r HistoryReport) error
}

// ReportGenerator renders reports with gofpdf. With FontPath pointing to a
// TTF with Cyrillic glyphs it embeds that font, otherwise it falls back to
// the core Helvetica font.
type ReportGenerator struct {
	FontPath string
}

func NewReportGenerator(fontPath string) *ReportGenerator {
	return &ReportGenerator{FontPath: fontPath}
}

type writer struct {
	pdf  *gofpdf.Fpdf
	font string
	tr   func(string) string
}

func (g *ReportGenerator) newDoc(title string) *writer {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetAuthor("leadflow", false)
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 18)

	w := &writer{pdf: doc, font: "Helvetica", tr: doc.UnicodeTranslatorFromDescriptor("")}
	if g.FontPath != "" {
		if _, err := os.Stat(g.FontPath); err == nil {
			doc.AddUTF8Font("DejaVu", "", g.FontPath)
			doc.AddUTF8Font("DejaVu", "B", g.FontPath)
			w.font = "DejaVu"
			w.tr = func(s string) string { return s }
		}
	}
	return w
}

// StageHistory writes the audit trail of one lead.
func (g *ReportGenerator) StageHistory(out io.Writer, r HistoryReport) error {
	w := g.newDoc(fmt.Sprintf("Lead #%d stage history", r.LeadID))
	doc := w.pdf

	doc.AliasNbPages("")
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont(w.font, "", 8)
		doc.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", doc.PageNo()), "", 0, "C", false, 0, "")
	})
	doc.AddPage()

	doc.SetFont(w.font, "B", 16)
	doc.CellFormat(0, 10, w.tr(fmt.Sprintf("Lead #%d: stage history", r.LeadID)), "", 1, "L", false, 0, "")
	doc.SetFont(w.font, "", 10)
	w.kv("Current stage", r.CurrentStage.Label())
	w.kv("Transitions", fmt.Sprintf("%d", len(r.Transitions)))
	w.kv("Generated", r.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	w.hr()

	cols := []struct {
		title string
		width float64
	}{
		{"When (UTC)", 36}, {"From", 32}, {"To", 32}, {"Actor", 22}, {"Reason", 58},
	}
	doc.SetFont(w.font, "B", 9)
	doc.SetFillColor(235, 235, 235)
	for _, c := range cols {
		doc.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont(w.font, "", 9)
	if len(r.Transitions) == 0 {
		doc.CellFormat(0, 7, "No transitions yet.", "1", 1, "C", false, 0, "")
	}
	for _, t := range r.Transitions {
		actor := t.Actor.String()
		if t.Automated {
			actor += " (auto)"
		}
		if t.Reactivation {
			actor += " *"
		}
		reason := ""
		if t.Reason != nil {
			reason = *t.Reason
		}
		row := []string{
			t.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
			t.FromStage.Label(),
			t.ToStage.Label(),
			actor,
			truncate(reason, 45),
		}
		for i, c := range cols {
			doc.CellFormat(c.width, 6, w.tr(row[i]), "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}

	doc.Ln(2)
	doc.SetFont(w.font, "", 8)
	doc.CellFormat(0, 5, "* reactivation of a closed lead", "", 1, "L", false, 0, "")

	if err := doc.Output(out); err != nil {
		return fmt.Errorf("render stage history: %w", err)
	}
	return nil
}

func (w *writer) kv(key, val string) {
	w.pdf.SetFont(w.font, "B", 10)
	w.pdf.CellFormat(35, 6, key+":", "", 0, "L", false, 0, "")
	w.pdf.SetFont(w.font, "", 10)
	w.pdf.CellFormat(0, 6, w.tr(val), "", 1, "L", false, 0, "")
}

func (w *writer) hr() {
	y := w.pdf.GetY() + 1.5
	w.pdf.SetLineWidth(0.2)
	w.pdf.Line(15, y, 195, y)
	w.pdf.SetY(y + 3)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
