package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"webintel-server/internal/model"
)

func sampleData() ([]model.QAItem, []model.TestCase) {
	items := []model.QAItem{
		{Question: "What is the price?", ExpectedResponse: "Ten dollars per month."},
		{Question: "Is there a trial?", ExpectedResponse: "Yes, 14 days."},
	}
	cases := []model.TestCase{
		{
			ID: 1, Question: items[0].Question, ExpectedResponse: items[0].ExpectedResponse,
			TestSteps: "1. Ask", Variations: "price? | cost?", NegativeCase: "neg",
			EntitiesSlots: "Ten", Notes: "n",
		},
	}
	return items, cases
}

func TestWorkbook_TwoSheets(t *testing.T) {
	items, cases := sampleData()

	data, err := Workbook(items, cases, "https://example.com/pricing")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Golden QnA", "TestCases"}, f.GetSheetList())

	rows, err := f.GetRows("Golden QnA")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, qnaHeaders, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "What is the price?", rows[1][1])
	assert.Equal(t, "Ten dollars per month.", rows[1][3])
	assert.Equal(t, "https://example.com/pricing", rows[1][4])

	tcRows, err := f.GetRows("TestCases")
	require.NoError(t, err)
	require.Len(t, tcRows, 2)
	assert.Equal(t, testCaseHeaders, tcRows[0])
	assert.Equal(t, "price? | cost?", tcRows[1][4])
}

func TestWorkbook_WithoutTestCases(t *testing.T) {
	items, _ := sampleData()

	data, err := Workbook(items, nil, "https://example.com")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Golden QnA"}, f.GetSheetList())
}

func TestWorkbook_EmptyItems(t *testing.T) {
	data, err := Workbook(nil, nil, "https://example.com")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Golden QnA")
	require.NoError(t, err)
	require.Len(t, rows, 1) // header only
}
