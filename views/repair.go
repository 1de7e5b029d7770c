package views

import (
	"bytes"
	"fmt"
	"os"
)

// RepairTrailingRow drops a partial last row left by an interrupted write.
// If the file does not end with a newline it is truncated back to the last
// complete newline-terminated row. It reports whether anything was removed.
//
// The image that belonged to the dropped row, if any, stays on disk as an
// orphan: no row references it.
func RepairTrailingRow(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("repair read %s: %w", path, err)
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return false, nil
	}

	keep := bytes.LastIndexByte(data, '\n') + 1
	if err := os.Truncate(path, int64(keep)); err != nil {
		return false, fmt.Errorf("repair truncate %s: %w", path, err)
	}
	return true, nil
}
