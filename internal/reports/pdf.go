// Package reports renders operator-facing exports of sync runs.
package reports

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/stocklink/bomsync/internal/bom"
	"github.com/stocklink/bomsync/internal/models"
)

// SyncRunPDF renders a bulk sync run as a printable report: run totals
// followed by one row per product with outcome and before/after stock.
func SyncRunPDF(run *models.SyncRun) ([]byte, error) {
	var results []bom.SyncResult
	if len(run.Results) > 0 {
		if err := json.Unmarshal(run.Results, &results); err != nil {
			return nil, fmt.Errorf("failed to decode run results: %w", err)
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Inventory Sync Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run %s  /  Account %d", run.ID, run.AccountID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Started %s  /  Status %s", run.StartedAt.Format("2006-01-02 15:04:05"), run.Status))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Total %d    Synced %d    Skipped %d    Failed %d",
		run.Total, run.Synced, run.Skipped, run.Failed))
	pdf.Ln(12)

	// Table header
	colWidths := []float64{25, 22, 22, 24, 24, 63}
	headers := []string{"Product", "Variation", "Status", "Previous", "New", "Detail"}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(colWidths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, res := range results {
		previous := "-"
		if res.PreviousStock != nil {
			previous = fmt.Sprintf("%.0f", *res.PreviousStock)
		}
		detail := res.Reason
		if res.Status == bom.StatusSynced {
			detail = fmt.Sprintf("%d components", len(res.Components))
		}

		pdf.CellFormat(colWidths[0], 6, fmt.Sprintf("%d", res.ProductID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[1], 6, fmt.Sprintf("%d", res.VariationID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[2], 6, string(res.Status), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[3], 6, previous, "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[4], 6, fmt.Sprintf("%d", res.NewStock), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[5], 6, truncate(detail, 55), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// truncate shortens s to at most max runes. Cutting on runes keeps a
// multi-byte failure reason from being split mid-character.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
