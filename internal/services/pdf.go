package services

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

const (
	targetPDF       = "pdf"
	targetPublisher = "publisher"
)

// PDFQuoteGenerator renders quotes as PDF and publishes them.
type PDFQuoteGenerator struct {
	publisher Publisher
	business  catalog.Business
	ids       *QuoteIDs
	logger    *zap.Logger
}

func NewPDFQuoteGenerator(publisher Publisher, business catalog.Business, logger *zap.Logger) *PDFQuoteGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFQuoteGenerator{
		publisher: publisher,
		business:  business,
		ids:       NewQuoteIDs(),
		logger:    logger.Named("quotes"),
	}
}

// Generate assigns a quote number when the summary has none, renders and publishes it.
func (g *PDFQuoteGenerator) Generate(ctx context.Context, summary models.QuoteSummary) (models.QuoteDocument, models.Outcome) {
	if summary.QuoteID == "" {
		summary.QuoteID = g.ids.New(summary.IssuedAt)
	}
	data, err := RenderQuotePDF(summary, g.business)
	if err != nil {
		return models.QuoteDocument{}, models.Failed(targetPDF, err)
	}
	name := summary.QuoteID + ".pdf"
	url, err := g.publisher.Publish(ctx, name, "application/pdf", data)
	if err != nil {
		return models.QuoteDocument{}, models.Failed(targetPublisher, err)
	}
	g.logger.Info("quote published",
		zap.String("quote_id", summary.QuoteID), zap.String("phone", summary.Phone), zap.Int("bytes", len(data)))
	return models.QuoteDocument{QuoteID: summary.QuoteID, Filename: name, URL: url}, models.Succeeded(targetPDF)
}

// RenderQuotePDF lays out a one-page A4 quote.
func RenderQuotePDF(q models.QuoteSummary, business catalog.Business) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	issued := q.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	pdf.SetCreationDate(issued)
	pdf.SetTitle(tr("Cotización "+q.QuoteID), false)
	pdf.SetAuthor(tr(business.Name), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(business.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if business.Address != "" {
		pdf.CellFormat(0, 5, tr(business.Address), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr("Cotización "+q.QuoteID), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	rows := [][2]string{
		{"Fecha", issued.Format("02/01/2006")},
		{"Cliente", q.ClientName},
		{"Teléfono", q.Phone},
		{"Ubicación", q.Location},
		{"Cultivo", q.Category},
		{"Superficie", q.Surface},
		{"Campaña", q.Campaign},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, 6, tr(r[0]+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(r[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	widths := []float64{95, 20, 35, 40}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 238, 225)
	for i, h := range []string{"Producto", "Cant.", "Precio", "Subtotal"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range q.Items {
		price, sub := "a confirmar", "-"
		if it.Price != nil {
			price = money(*it.Price)
			sub = money(*it.Subtotal())
		}
		pdf.CellFormat(widths[0], 6, tr(it.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, strconv.FormatFloat(it.Qty, 'f', -1, 64), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, tr(price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, sub, "1", 1, "R", false, 0, "")
	}

	total, partial := q.Total()
	label := "Total"
	if partial {
		label = "Total (parcial, hay ítems a confirmar)"
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, tr(label), "", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, money(total), "", 1, "R", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, tr("Precios sujetos a disponibilidad y a confirmación por un asesor comercial. "+
		"Validez de la cotización: 7 días."), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quote %s: %w", q.QuoteID, err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("$ %.2f", v)
}
