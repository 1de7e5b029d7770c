package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"drive-logger/models"
)

// EventSize is the size of one controller record:
//
//	A0 B7 A3 04 | 5C 7D | 02  02
//	 sequence   | value | grp axis
//	   (LE)     |  (LE) |  (BE key)
const EventSize = 8

// Decoder reads fixed-size controller records from a byte stream.
type Decoder struct {
	r   io.Reader
	buf [EventSize]byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next reads one record and returns it with its normalized update.
// A record with an unknown key yields Name == SignalUnknown.
// End of stream, including a short trailing record, is reported as io.EOF.
func (d *Decoder) Next() (models.RawEvent, models.SignalUpdate, error) {
	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return models.RawEvent{}, models.SignalUpdate{}, err
	}
	ev := ParseEvent(d.buf)
	return ev, Resolve(ev), nil
}

// ParseEvent splits one 8-byte record into its fields.
func ParseEvent(b [EventSize]byte) models.RawEvent {
	return models.RawEvent{
		Sequence: binary.LittleEndian.Uint32(b[0:4]),
		Value:    binary.LittleEndian.Uint16(b[4:6]),
		Group:    b[6],
		Axis:     b[7],
	}
}

// Resolve looks up the record's signal and normalizes its value.
func Resolve(ev models.RawEvent) models.SignalUpdate {
	name := models.LookupKey(ev.Group, ev.Axis)
	return models.SignalUpdate{Name: name, Value: Normalize(name, ev.Value)}
}

// Normalize maps a raw magnitude into the signal's range:
//
//	wheel-axis        [-32767, 32767]  (32769..65535 wrap to negative)
//	clutch/brake/gas  [0, 65535]       (resting 0x7FFF → 0, full 0x8001 → 65535)
//	dpad axes         {-1, 0, 1}
//	everything else   raw value
//
// Raw 0x8000 sits outside both axis encodings; it clamps to 32767 on the
// wheel and to 0 on the pedals.
func Normalize(name models.SignalName, raw uint16) int {
	v := int(raw)
	switch name {
	case models.SignalWheelAxis:
		if v >= 32769 {
			v -= 65536
		}
		v = min(v, 32767)
	case models.SignalClutch, models.SignalBrake, models.SignalGas:
		if v >= 32769 {
			v = 98304 - v
		} else {
			v = max(32767-v, 0)
		}
	case models.SignalDpadLeftRight, models.SignalDpadUpDown:
		switch v {
		case 32769:
			v = -1
		case 32767:
			v = 1
		default:
			v = 0
		}
	}
	return v
}

// KeyString renders a record's key the way device dumps show it, e.g. "0200".
func KeyString(ev models.RawEvent) string {
	return fmt.Sprintf("%02x%02x", ev.Group, ev.Axis)
}
