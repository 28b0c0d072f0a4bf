package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	input := "name,description,price\nSunset Print,A print,19.99\nOcean Mist,Another,29.99\n"

	parsed, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "description", "price"}, parsed.Headers)
	require.Len(t, parsed.Records, 2)
	assert.Equal(t, 1, parsed.Records[0].Row)
	assert.Equal(t, "Sunset Print", parsed.Records[0].Values["name"])
	assert.Equal(t, 2, parsed.Records[1].Row)
	assert.Equal(t, "29.99", parsed.Records[1].Values["price"])
}

func TestParseCSVStripsBOMAndTemplateMarkers(t *testing.T) {
	input := "\ufeffname *,price *,description\nArt,10,desc\n"

	parsed, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "price", "description"}, parsed.Headers)
}

func TestParseCSVTrimsCellWhitespace(t *testing.T) {
	input := "name,price,description\n  Art  , 10 ,desc\n"

	parsed, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "Art", parsed.Records[0].Values["name"])
	assert.Equal(t, "10", parsed.Records[0].Values["price"])
}

func TestParseCSVRaggedRows(t *testing.T) {
	// Rows shorter than the header parse with missing cells empty.
	input := "name,price,description\nArt,10\n"

	parsed, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "", parsed.Records[0].Values["description"])
}

func TestParseCSVEmptyFile(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("name,price,description\n"))
	assert.Error(t, err)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := "Products"
	f.SetSheetName("Sheet1", sheet)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"name", "price", "description"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Sunset Print", 19.99, "A print"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	parsed, err := ParseXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "price", "description"}, parsed.Headers)
	require.Len(t, parsed.Records, 1)
	assert.Equal(t, "Sunset Print", parsed.Records[0].Values["name"])
}

func TestRawRecordGetIsCaseInsensitive(t *testing.T) {
	rec := RawRecord{Values: map[string]string{"Handle": "x"}}
	assert.Equal(t, "x", rec.Get("handle"))
	assert.Equal(t, "", rec.Get("missing"))
}
