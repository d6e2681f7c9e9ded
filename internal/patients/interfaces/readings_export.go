package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	patients "thermoband-cloud/internal/patients/domain"
	telemetry "thermoband-cloud/internal/telemetry/domain"
)

// BuildReadingsPDF renders a temperature history report for a patient.
func BuildReadingsPDF(patient *patients.Patient, readings []telemetry.Reading) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Temperature Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Patient: %s", patient.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Age: %d", patient.Age))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", len(readings)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Recorded At", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Temperature (C)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, reading := range readings {
		pdf.CellFormat(60, 6, reading.RecordedAt.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, fmt.Sprintf("%.1f", reading.Temperature), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, reading.MACAddress, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReadingsXLSX renders a temperature history workbook for a patient.
func BuildReadingsXLSX(patient *patients.Patient, readings []telemetry.Reading) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "readings"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Patient")
	_ = f.SetCellValue(sheet, "B1", patient.Name)
	_ = f.SetCellValue(sheet, "A2", "Age")
	_ = f.SetCellValue(sheet, "B2", patient.Age)

	_ = f.SetCellValue(sheet, "A4", "Recorded At")
	_ = f.SetCellValue(sheet, "B4", "Temperature (C)")
	_ = f.SetCellValue(sheet, "C4", "Device")
	for i, reading := range readings {
		row := i + 5
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), reading.RecordedAt.Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), reading.Temperature)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), reading.MACAddress)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
