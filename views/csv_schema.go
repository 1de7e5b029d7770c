package views

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"drive-logger/models"
)

// DatasetColumns is the canonical dataset layout: `img` followed by every
// signal in ControllerState key order. DatasetRow.CSVHeader produces the same
// list; this copy is kept for validation of files written by earlier runs.
var DatasetColumns = models.DatasetRow{}.CSVHeader()

// DatasetStats summarises a dataset file.
type DatasetStats struct {
	Rows      int // data rows, header excluded
	Malformed int // rows whose column count differs from the header
}

// InspectDataset counts rows and flags any with the wrong column count.
func InspectDataset(path string) (DatasetStats, error) {
	var st DatasetStats
	f, err := os.Open(path)
	if err != nil {
		return st, fmt.Errorf("inspect %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		st.Rows++
		if len(strings.Split(sc.Text(), ",")) != len(DatasetColumns) {
			st.Malformed++
		}
	}
	return st, sc.Err()
}
