// README: Spreadsheet extraction tests (column rules, defaults, decoding).
package sheet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func header() []string {
	row := make([]string, minColumns)
	for i := range row {
		row[i] = fmt.Sprintf("H%d", i)
	}
	return row
}

func dataRow(seq, distance, address string) []string {
	row := make([]string, minColumns)
	row[colSequence] = seq
	row[colDistance] = distance
	row[colFullAddress] = address
	return row
}

func TestExtractConcreteRow(t *testing.T) {
	grid := [][]string{header(), dataRow("45", "12,5 km", "Rua X, Bairro Y, Cidade Z")}

	d := Extract(grid)

	assert.Equal(t, 12.5, d.TotalDistance)
	assert.GreaterOrEqual(t, d.Sequence, 45)
	assert.Equal(t, "Cidade Z", d.City)
	assert.Contains(t, d.Neighborhoods, "Bairro Y")
}

func TestExtractSequenceIsMaximumAcrossRows(t *testing.T) {
	grid := [][]string{
		header(),
		dataRow("3", "8 km", ""),
		dataRow("n/a", "", ""),
		dataRow("17", "", ""),
		dataRow("9", "", ""),
	}
	assert.Equal(t, 17, Extract(grid).Sequence)
}

func TestExtractSequenceDefaultsToDataRowCount(t *testing.T) {
	grid := [][]string{header(), dataRow("", "", ""), dataRow("x", "", ""), {"short"}}
	d := Extract(grid)
	assert.Equal(t, 3, d.DataRows)
	assert.Equal(t, 3, d.Sequence)
}

func TestExtractDistanceOnlyFromFirstDataRow(t *testing.T) {
	grid := [][]string{header(), dataRow("1", "abc", ""), dataRow("2", "99 km", "")}
	assert.Equal(t, 0.0, Extract(grid).TotalDistance)
}

func TestParseDistanceVariants(t *testing.T) {
	cases := map[string]float64{
		"12,5 km":   12.5,
		"7.25km":    7.25,
		"1.234,5":   1234.5,
		" 40 ":      40,
		"":          0,
		"distância": 0,
		"1.2.3":     0,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseDistance(in), "input %q", in)
	}
}

func TestExtractCityFallsBackToColumns(t *testing.T) {
	row := dataRow("4", "", "Rua sem virgula")
	row[colCity] = "Campinas"
	row[colNeighborhood] = "Cambuí"
	d := Extract([][]string{header(), row})

	assert.Equal(t, "Campinas", d.City)
	assert.Equal(t, []string{"Cambuí"}, d.Neighborhoods)
}

func TestExtractNeighborhoodsAccumulateAsSet(t *testing.T) {
	grid := [][]string{
		header(),
		dataRow("1", "", "Rua A, Centro, Santos"),
		dataRow("2", "", "Rua B, Gonzaga, Santos"),
		dataRow("3", "", "Rua C, Centro, Santos"),
	}
	d := Extract(grid)
	assert.Equal(t, "Santos", d.City)
	assert.ElementsMatch(t, []string{"Centro", "Gonzaga"}, d.Neighborhoods)
}

func TestExtractDefaultsWhenNothingFound(t *testing.T) {
	d := Extract([][]string{header(), {"too", "short"}})
	assert.Equal(t, DefaultCity, d.City)
	assert.Empty(t, d.Name)
	assert.Equal(t, 1, d.Sequence)
}

func TestExtractRouteNameFirstNonEmpty(t *testing.T) {
	a := dataRow("1", "", "")
	b := dataRow("2", "", "")
	b[colRouteName] = "AT-0042"
	c := dataRow("3", "", "")
	c[colRouteName] = "AT-0099"
	assert.Equal(t, "AT-0042", Extract([][]string{header(), a, b, c}).Name)
}

func TestExtractCapsRawRows(t *testing.T) {
	grid := [][]string{header()}
	for i := 0; i < 40; i++ {
		grid = append(grid, dataRow(fmt.Sprint(i), "", ""))
	}
	d := Extract(grid)
	assert.Len(t, d.RawRows, maxRawRows)
	assert.Equal(t, header(), d.RawRows[0])
	assert.Equal(t, 40, d.DataRows)
	assert.Equal(t, 39, d.Sequence)
}

func TestCheckExtension(t *testing.T) {
	assert.NoError(t, CheckExtension("rota.XLSX"))
	assert.NoError(t, CheckExtension("rota.xls"))
	assert.ErrorIs(t, CheckExtension("rota.csv"), ErrUnsupportedFile)
	assert.ErrorIs(t, CheckExtension("rota"), ErrUnsupportedFile)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "AT-0042", BaseName("uploads/AT-0042.xlsx"))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("broken.xlsx", []byte("not a zip archive"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "broken.xlsx", pe.File)
}

func TestParseRejectsCorruptXLS(t *testing.T) {
	// An OLE2 signature followed by a truncated header.
	ole := append([]byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}, make([]byte, 120)...)
	for name, data := range map[string][]byte{
		"garbage":   []byte("garbage"),
		"truncated": ole,
		"empty":     {},
	} {
		t.Run(name, func(t *testing.T) {
			var draft Draft
			var err error
			require.NotPanics(t, func() { draft, err = Parse("legacy.xls", data) })
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "legacy.xls", pe.File)
			assert.Empty(t, draft.RawRows)
		})
	}
}

func TestParseRejectsWrongExtensionBeforeDecoding(t *testing.T) {
	_, err := Parse("routes.pdf", []byte("whatever"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestParseXLSXWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]string{header(), dataRow("45", "12,5 km", "Rua X, Bairro Y, Cidade Z")}
	rows[1][colRouteName] = "AT-7"
	rows[1][colCity] = "ignored"
	for i, r := range rows {
		cells := make([]interface{}, len(r))
		for j, v := range r {
			cells[j] = v
		}
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+1), &cells))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	d, err := Parse("AT-7.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "AT-7", d.Name)
	assert.Equal(t, 12.5, d.TotalDistance)
	assert.Equal(t, 45, d.Sequence)
	assert.Equal(t, "Cidade Z", d.City)
}

func TestPadToHeader(t *testing.T) {
	rows := padToHeader([][]string{{"a", "b", "c"}, {"1"}, {}})
	assert.Equal(t, []string{"1", "", ""}, rows[1])
	assert.Empty(t, rows[2])
}
