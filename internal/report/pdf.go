package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/plclog/internal/common"
	"example.com/plclog/internal/convert"
	"example.com/plclog/internal/plclog"
)

// SaveSummaryPDF renders a conversion summary into a PDF document.
func SaveSummaryPDF(sum convert.Summary, lang Language, out string) error {
	pdf, err := buildSummaryPDF(sum, NewTranslator(lang))
	if err != nil {
		return err
	}
	return pdf.OutputFileAndClose(out)
}

// RenderSummaryPDF is SaveSummaryPDF into memory.
func RenderSummaryPDF(sum convert.Summary, lang Language) ([]byte, error) {
	pdf, err := buildSummaryPDF(sum, NewTranslator(lang))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildSummaryPDF(sum convert.Summary, tr Translator) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; German umlauts need the translation.
	enc := pdf.UnicodeTranslatorFromDescriptor("")
	title := tr.T("title")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("plclogctl", false)
	pdf.SetCreator("plclogctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, enc(title))
	addKeyValueSection(pdf, enc, tr.T("section.summary"), []kv{
		{tr.T("label.input"), sum.Input},
		{tr.T("label.output"), sum.Output},
		{tr.T("label.records"), strconv.FormatInt(sum.Records, 10)},
		{tr.T("label.first"), sum.FirstTimestamp},
		{tr.T("label.last"), sum.LastTimestamp},
		{tr.T("label.terminated"), yesNo(tr, sum.Terminated)},
		{tr.T("label.bytesRead"), common.FormatBytes(sum.BytesRead)},
		{tr.T("label.outputBytes"), common.FormatBytes(sum.OutputBytes)},
		{tr.T("label.duration"), sum.Duration.Round(time.Millisecond).String()},
		{tr.T("label.status"), statusLabel(tr, sum)},
	})
	addKeyValueSection(pdf, enc, tr.T("section.header"), []kv{
		{tr.T("label.logId"), fmt.Sprintf("%s (%s)", sum.LogID, sum.LogIDHex)},
		{tr.T("label.byteOrder"), sum.ByteOrder},
		{tr.T("label.version"), strconv.Itoa(int(sum.Version))},
		{tr.T("label.wordCount"), strconv.Itoa(sum.WordCount)},
		{tr.T("label.typeList"), sum.TypeList},
	})
	addColumnsSection(pdf, enc, tr, sum.TypeList)
	addWarningsSection(pdf, enc, tr, sum.Warnings)
	if err := addIntegritySection(pdf, enc, tr, sum.Output, sum.OutputSHA256); err != nil {
		return nil, err
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}
	return pdf, nil
}

type kv struct {
	label string
	value string
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSectionHeading(pdf *gofpdf.Fpdf, heading string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, heading)
	pdf.Ln(9)
}

func addKeyValueSection(pdf *gofpdf.Fpdf, enc func(string) string, heading string, items []kv) {
	addSectionHeading(pdf, enc(heading))
	pdf.SetFont("Helvetica", "", 11)
	for _, item := range items {
		pdf.CellFormat(50, 6, enc(item.label), "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 6, enc(emptyFallback(item.value, "-")), "", "L", false)
	}
	pdf.Ln(4)
}

func addColumnsSection(pdf *gofpdf.Fpdf, enc func(string) string, tr Translator, typeList string) {
	addSectionHeading(pdf, enc(tr.T("section.columns")))
	layout, err := plclog.ParseTypeList([]byte(typeList))
	if err != nil || len(layout.Fields) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr.T("value.none"), "", "L", false)
		pdf.Ln(4)
		return
	}

	headers := []string{tr.T("col.column"), tr.T("col.kind"), tr.T("col.offset"), tr.T("col.width")}
	widths := []float64{40, 50, 40, 40}
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, enc(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, f := range layout.Fields {
		values := []string{
			f.Column(),
			plclog.KindOf(f.Tag).String(),
			strconv.Itoa(f.Offset),
			strconv.Itoa(f.Width),
		}
		renderTableRow(pdf, widths, values, 5)
	}
	pdf.Ln(4)
}

func addWarningsSection(pdf *gofpdf.Fpdf, enc func(string) string, tr Translator, warnings []plclog.Warning) {
	addSectionHeading(pdf, enc(tr.T("section.warnings")))
	pdf.SetFont("Helvetica", "", 10)
	if len(warnings) == 0 {
		pdf.MultiCell(0, 6, enc(tr.T("warnings.none")), "", "L", false)
		pdf.Ln(4)
		return
	}
	for i, w := range warnings {
		line := tr.Format("warnings.item", i+1, w.Kind, w.Offset, strings.TrimSpace(w.Message))
		pdf.MultiCell(0, 5, enc(line), "", "L", false)
	}
	pdf.Ln(4)
}

func addIntegritySection(pdf *gofpdf.Fpdf, enc func(string) string, tr Translator, name, hash string) error {
	if hash == "" {
		return nil
	}
	addSectionHeading(pdf, enc(tr.T("section.integrity")))
	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, tr.T("label.sha256")+": "+hash, "", "L", false)

	png, err := DigestQR(filepath.Base(name), hash, 256)
	if err != nil {
		return err
	}
	imgName := "sha256-qr"
	pdf.RegisterImageOptionsReader(imgName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pdf.ImageOptions(imgName, pdf.GetX(), pdf.GetY()+2, 35, 35, true, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return nil
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func yesNo(tr Translator, v bool) string {
	if v {
		return tr.T("value.yes")
	}
	return tr.T("value.no")
}

func statusLabel(tr Translator, sum convert.Summary) string {
	if sum.OK() {
		return tr.T("value.ok")
	}
	return tr.Format("value.failed", sum.Error)
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
