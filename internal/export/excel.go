// Package export renders stored invoice records as an XLSX workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/finflow/invoice-sentinel/internal/models"
)

const sheetName = "Invoices"

var headers = []string{
	"Invoice Number",
	"Vendor",
	"Invoice Date",
	"Total Amount",
	"Currency",
	"Risk Score",
	"Suspicious",
	"Submitted",
	"ERPNext Name",
	"Uploaded At",
}

// InvoicesXLSX builds a workbook with one row per invoice record.
func InvoicesXLSX(records []*models.InvoiceRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}

	for i, record := range records {
		riskScore := ""
		if record.RiskScore != nil {
			riskScore = fmt.Sprintf("%d", *record.RiskScore)
		}
		values := []interface{}{
			record.Parsed.InvoiceNumber,
			record.Parsed.VendorName,
			record.Parsed.InvoiceDate.Format("2006-01-02"),
			record.Parsed.TotalAmount,
			record.Parsed.Currency,
			riskScore,
			record.IsSuspicious,
			record.SubmittedToERPNext,
			record.ERPNextInvoiceName,
			record.UploadedAt.Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
