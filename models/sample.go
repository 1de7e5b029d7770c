package models

// Sample pairs one frame with the controller state snapshotted right after it
// was captured. A nil *Sample on a worker queue is the stop sentinel.
type Sample struct {
	Seq   uint64 // capture order, assigned by the sampling loop
	Frame *Frame
	State ControllerState
}

// DatasetRow is one persisted training example.
// Seq is carried for logging only; the file format has no sequence column.
type DatasetRow struct {
	Seq   uint64
	Image string // image file name, relative to the image dir
	State ControllerState
}

// CSVHeader returns `img` followed by every signal name.
func (DatasetRow) CSVHeader() []string {
	return append([]string{"img"}, SignalNames()...)
}

// CSVRow returns the image name followed by every signal value.
func (r *DatasetRow) CSVRow() []string {
	return append([]string{r.Image}, r.State.CSVRow()...)
}

// NumColumns is the column count of every dataset row.
const NumColumns = NumSignals + 1
