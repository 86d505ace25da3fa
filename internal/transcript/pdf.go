package transcript

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/voxlane/voice-platform/internal/domain"
)

// RenderPDF renders a call transcript as a PDF document.
func RenderPDF(agentName string, rec *domain.CallRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Call transcript %s", rec.ID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Call Transcript")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.Cell(0, 6, fmt.Sprintf("Agent: %s", agentName))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Call ID: %s", rec.ID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Direction: %s", rec.Direction))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", rec.StartedAt.Format(time.RFC1123)))
	pdf.Ln(6)
	if rec.Duration > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Duration: %ds", rec.Duration))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	if len(rec.Transcript) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.Cell(0, 8, "No transcript recorded for this call.")
	}

	for _, turn := range rec.Transcript {
		stamp := time.Duration(turn.AtMilli) * time.Millisecond

		pdf.SetFont("Helvetica", "B", 11)
		if turn.Role == "agent" {
			pdf.SetTextColor(30, 80, 160)
		} else {
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Cell(0, 7, fmt.Sprintf("%s  [%s]", turn.Role, formatOffset(stamp)))
		pdf.Ln(6)

		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, 6, turn.Text, "", "L", false)
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render transcript PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func formatOffset(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}
