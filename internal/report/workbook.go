package report

import (
	"fmt"

	"github.com/david/contract-broker/internal/revenue"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	contractsSheet = "New Contracts"
)

var contractHeaders = []string{
	"ID", "Title", "Agency", "NAICS", "Value", "Deadline", "Score", "Brokerage Fee", "Created",
}

// Workbook renders the summary and the week's contracts as XLSX bytes.
func Workbook(s *Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	rows := [][]any{
		{"From", s.From.Format("2006-01-02")},
		{"To", s.To.Format("2006-01-02")},
		{"New Contracts", s.NewContracts},
		{"Revenue Generated", s.Revenue},
		{"Active Placements", s.Placements},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)

	if _, err := f.NewSheet(contractsSheet); err != nil {
		return nil, err
	}
	for i, h := range contractHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(contractsSheet, cell, h)
	}

	for i, c := range s.Contracts {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(contractsSheet, cell, v)
		}
		write(1, c.ID)
		write(2, c.Title)
		write(3, c.Agency)
		write(4, c.NAICSCode)
		if c.Value != nil {
			write(5, *c.Value)
		}
		if fee, err := revenue.Fee(c.Value); err == nil {
			write(8, fee)
		}
		if c.Deadline != nil {
			write(6, c.Deadline.Format("2006-01-02"))
		}
		if c.OpportunityScore != nil {
			write(7, *c.OpportunityScore)
		}
		write(9, c.CreatedAt.Format("2006-01-02"))
	}

	_ = f.SetColWidth(contractsSheet, "B", "B", 60)
	_ = f.SetColWidth(contractsSheet, "C", "C", 36)
	_ = f.SetColWidth(contractsSheet, "E", "E", 16)
	_ = f.SetColWidth(contractsSheet, "H", "H", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
