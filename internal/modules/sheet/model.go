// README: Route draft extracted from an uploaded delivery spreadsheet.
package sheet

// Column positions in the carrier's route export.
const (
	colSequence     = 0
	colDistance     = 3
	colFullAddress  = 6
	colNeighborhood = 7
	colCity         = 8
	colRouteName    = 14

	// minColumns guards extraction against truncated rows.
	minColumns = 16
	// maxRawRows bounds the audit sample: header plus 19 data rows.
	maxRawRows = 20

	DefaultCity = "unspecified"
)

// Draft is the structured result of one spreadsheet, ready for the duplicate
// guard and persistence.
type Draft struct {
	Name          string
	City          string
	Neighborhoods []string
	TotalDistance float64
	Sequence      int
	RawRows       [][]string
	// DataRows counts every row after the header, including skipped ones.
	DataRows int
}
