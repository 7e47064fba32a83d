package xs

import (
	"fmt"

	"github.com/phil-mansfield/table"
)

// Column layout of a cross-section data file: whitespace-separated columns
// of energy, total, scatter, absorption, fission, and nu-bar. Lines
// starting with '#' are comments.
const (
	energyCol = iota
	totalCol
	scatterCol
	absorptionCol
	fissionCol
	nuCol
)

// ReadTableFile loads a cross-section table from a six-column text file.
func ReadTableFile(file string) (t *Table, err error) {
	colIdxs := []int{
		energyCol, totalCol, scatterCol, absorptionCol, fissionCol, nuCol,
	}
	// The table package reports read and parse failures by panicking, so
	// recover them into the error return.
	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = fmt.Errorf(
				"Could not read cross-section file '%s': %v", file, r,
			)
		}
	}()
	cols := table.TextFile(file).ReadFloat64s(colIdxs)

	t, err = NewTable(cols[0], cols[1], cols[2], cols[3], cols[4], cols[5])
	if err != nil {
		return nil, fmt.Errorf("Cross-section file '%s': %s", file, err.Error())
	}
	return t, nil
}
