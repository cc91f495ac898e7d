// internal/export/excel.go
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelReportFile builds a workbook with a summary sheet for the pool
// aggregate and a proxies sheet with one row per proxy.
func ExcelReportFile(report *Report) (*excelize.File, error) {
	file := excelize.NewFile()

	const summarySheet = "Summary"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("naming summary sheet: %w", err)
	}

	summaryRows := [][]interface{}{
		{"generated_at", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"total_proxies", report.Stats.TotalProxies},
		{"healthy_proxies", report.Stats.HealthyProxies},
		{"unhealthy_proxies", report.Stats.UnhealthyProxies},
		{"dead_proxies", report.Stats.DeadProxies},
		{"total_requests", report.Stats.TotalRequests},
		{"total_successes", report.Stats.TotalSuccesses},
		{"total_failures", report.Stats.TotalFailures},
	}
	for i, row := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := file.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}

	const proxySheet = "Proxies"
	if _, err := file.NewSheet(proxySheet); err != nil {
		return nil, fmt.Errorf("creating proxies sheet: %w", err)
	}

	header := make([]interface{}, len(proxyHeader))
	for i, name := range proxyHeader {
		header[i] = name
	}
	if err := file.SetSheetRow(proxySheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, stat := range report.Proxies {
		row := proxyRow(stat)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := file.SetSheetRow(proxySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing row for %s: %w", stat.URL, err)
		}
	}

	// The URL column carries the longest values.
	if err := file.SetColWidth(proxySheet, "A", "A", 40); err != nil {
		return nil, fmt.Errorf("sizing url column: %w", err)
	}

	return file, nil
}

// WriteExcelFile renders the report to an xlsx file at path.
func WriteExcelFile(path string, report *Report) error {
	file, err := ExcelReportFile(report)
	if err != nil {
		return err
	}
	defer file.Close()
	return file.SaveAs(path)
}
