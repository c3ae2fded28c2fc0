package httpapi

import (
	"bytes"
	"fmt"

	"hydro-monitor/internal/models"

	"github.com/xuri/excelize/v2"
)

const readingsSheet = "Sensor Readings"

// ReadingsExportHeader 导出表头
var ReadingsExportHeader = []string{
	"Received At",
	"Snapshot ID",
	"Temperature (°C)",
	"Temperature Status",
	"pH",
	"pH Status",
	"EC (μS/cm)",
	"TDS (ppm)",
	"Distance (cm)",
	"Water Level (%)",
	"Motion",
	"Sound",
	"Intruder",
}

var readingsColumnWidths = []float64{20, 38, 16, 18, 8, 12, 12, 10, 14, 16, 10, 10, 10}

// GenerateReadingsExport 生成历史记录 Excel 文件；readings 为空时只有表头
func GenerateReadingsExport(readings []models.SensorReading) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 之前文件必须保持打开，不能 defer Close

	index, err := f.NewSheet(readingsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ReadingsExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(readingsSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(readingsSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(readingsSheet, name, name, readingsColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, reading := range readings {
		row := i + 2 // 第 1 行是表头
		values := []any{
			reading.ReceivedAt.UTC().Format("2006-01-02 15:04:05"),
			reading.SnapshotID,
			reading.Temperature,
			reading.TemperatureStatus,
			reading.PH,
			reading.PHStatus,
			reading.EC,
			reading.TDS,
			reading.Distance,
			reading.WaterLevel,
			yesNo(reading.Motion),
			yesNo(reading.Sound),
			yesNo(reading.Intruder),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(readingsSheet, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(readingsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
