package ingest

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"drive-logger/models"
)

// TextDecoder reads the textual form of controller updates, one
// "<signal-name> <integer-value>" pair per line. It backs the replay and
// simulated controller sources.
type TextDecoder struct {
	sc        *bufio.Scanner
	malformed uint64
}

func NewTextDecoder(r io.Reader) *TextDecoder {
	return &TextDecoder{sc: bufio.NewScanner(r)}
}

// Next returns the next well-formed update. Lines that do not parse are
// skipped and counted; unknown names yield SignalUnknown. Returns io.EOF at
// end of input.
func (d *TextDecoder) Next() (models.SignalUpdate, error) {
	for d.sc.Scan() {
		fields := strings.Fields(d.sc.Text())
		if len(fields) != 2 {
			if len(fields) > 0 {
				d.malformed++
			}
			continue
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			d.malformed++
			continue
		}
		name, ok := models.ParseSignalName(fields[0])
		if !ok {
			name = models.SignalUnknown
		}
		return models.SignalUpdate{Name: name, Value: v}, nil
	}
	if err := d.sc.Err(); err != nil {
		return models.SignalUpdate{}, err
	}
	return models.SignalUpdate{}, io.EOF
}

// Malformed returns how many lines were skipped.
func (d *TextDecoder) Malformed() uint64 { return d.malformed }

// FormatUpdate renders an update in the textual form.
func FormatUpdate(u models.SignalUpdate) string {
	return u.Name.String() + " " + strconv.Itoa(u.Value)
}
