package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"webintel-server/internal/model"
)

const (
	qnaSheet       = "Golden QnA"
	testCasesSheet = "TestCases"
)

var qnaHeaders = []string{"S.No", "Expected Golden Question", "Test case", "Expected Result", "URL"}

var testCaseHeaders = []string{
	"ID", "Question", "Expected Response", "Test Steps",
	"Variations", "Negative Case", "Entities/Slots", "Notes",
}

// Workbook renders the Q&A pairs and their test cases as a two-sheet xlsx
// document and returns the raw file bytes.
func Workbook(items []model.QAItem, cases []model.TestCase, sourceURL string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", qnaSheet)
	if err := writeQnASheet(f, items, sourceURL); err != nil {
		return nil, err
	}

	if len(cases) > 0 {
		if _, err := f.NewSheet(testCasesSheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", testCasesSheet, err)
		}
		if err := writeTestCasesSheet(f, cases); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeQnASheet(f *excelize.File, items []model.QAItem, sourceURL string) error {
	if err := writeHeader(f, qnaSheet, qnaHeaders); err != nil {
		return err
	}

	for i, item := range items {
		row := i + 2
		cells := []interface{}{
			i + 1,
			item.Question,
			fmt.Sprintf("Ask the bot: %q and compare the reply with the expected result", item.Question),
			item.ExpectedResponse,
			sourceURL,
		}
		if err := setRow(f, qnaSheet, row, cells); err != nil {
			return err
		}
	}

	f.SetColWidth(qnaSheet, "A", "A", 6)
	f.SetColWidth(qnaSheet, "B", "B", 50)
	f.SetColWidth(qnaSheet, "C", "C", 60)
	f.SetColWidth(qnaSheet, "D", "D", 70)
	f.SetColWidth(qnaSheet, "E", "E", 40)
	return nil
}

func writeTestCasesSheet(f *excelize.File, cases []model.TestCase) error {
	if err := writeHeader(f, testCasesSheet, testCaseHeaders); err != nil {
		return err
	}

	for i, tc := range cases {
		row := i + 2
		cells := []interface{}{
			tc.ID,
			tc.Question,
			tc.ExpectedResponse,
			tc.TestSteps,
			tc.Variations,
			tc.NegativeCase,
			tc.EntitiesSlots,
			tc.Notes,
		}
		if err := setRow(f, testCasesSheet, row, cells); err != nil {
			return err
		}
	}

	f.SetColWidth(testCasesSheet, "A", "A", 6)
	f.SetColWidth(testCasesSheet, "B", "C", 50)
	f.SetColWidth(testCasesSheet, "D", "F", 60)
	f.SetColWidth(testCasesSheet, "G", "H", 35)
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header cell %s: %w", cell, err)
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	for i, v := range cells {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}
	return nil
}
