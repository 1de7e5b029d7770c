package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKeyCoversEverySignal(t *testing.T) {
	keys := map[[2]byte]string{
		{0x02, 0x00}: "wheel-axis",
		{0x02, 0x01}: "clutch",
		{0x02, 0x03}: "brake",
		{0x02, 0x02}: "gas",
		{0x01, 0x05}: "paddle-left",
		{0x01, 0x04}: "paddle-right",
		{0x01, 0x07}: "wheel-button-left-1",
		{0x01, 0x14}: "wheel-button-left-2",
		{0x01, 0x15}: "wheel-button-left-3",
		{0x01, 0x06}: "wheel-button-right-1",
		{0x01, 0x12}: "wheel-button-right-2",
		{0x01, 0x13}: "wheel-button-right-3",
		{0x01, 0x01}: "shifter-button-left",
		{0x01, 0x02}: "shifter-button-right",
		{0x01, 0x03}: "shifter-button-up",
		{0x01, 0x00}: "shifter-button-down",
		{0x02, 0x04}: "dpad-left/right",
		{0x02, 0x05}: "dpad-up/down",
		{0x01, 0x0b}: "shifter-button-1",
		{0x01, 0x08}: "shifter-button-2",
		{0x01, 0x09}: "shifter-button-3",
		{0x01, 0x0a}: "shifter-button-4",
		{0x01, 0x0c}: "gear-1",
		{0x01, 0x0d}: "gear-2",
		{0x01, 0x0e}: "gear-3",
		{0x01, 0x0f}: "gear-4",
		{0x01, 0x10}: "gear-5",
		{0x01, 0x11}: "gear-6",
		{0x01, 0x16}: "gear-R",
	}
	require.Len(t, keys, NumSignals)

	seen := map[SignalName]bool{}
	for k, want := range keys {
		got := LookupKey(k[0], k[1])
		require.True(t, got.Valid(), "key %02x%02x", k[0], k[1])
		assert.Equal(t, want, got.String(), "key %02x%02x", k[0], k[1])
		seen[got] = true
	}
	assert.Len(t, seen, NumSignals)
}

func TestLookupKeyUnknown(t *testing.T) {
	s := LookupKey(0x03, 0x00)
	assert.Equal(t, SignalUnknown, s)
	assert.False(t, s.Valid())
	assert.Equal(t, "unknown", s.String())
}

func TestParseSignalName(t *testing.T) {
	for i, name := range SignalNames() {
		s, ok := ParseSignalName(name)
		require.True(t, ok, name)
		assert.Equal(t, SignalName(i), s)
	}
	_, ok := ParseSignalName("handbrake")
	assert.False(t, ok)
}

func TestControllerStateRow(t *testing.T) {
	s := NewControllerState([NumSignals]int{}).
		With(SignalWheelAxis, -120).
		With(SignalWheelButtonRight1, 1).
		With(SignalUnknown, 5)

	row := s.CSVRow()
	require.Len(t, row, NumSignals)
	assert.Equal(t, "-120", row[SignalWheelAxis])
	assert.Equal(t, "1", row[SignalWheelButtonRight1])
	assert.Equal(t, "0", row[SignalGearR])
	assert.True(t, s.ResumeButtonPressed())
	assert.False(t, s.PauseButtonPressed())
	assert.Equal(t, 0, s.Get(SignalUnknown))
}

func TestDatasetRowColumns(t *testing.T) {
	hdr := DatasetRow{}.CSVHeader()
	require.Len(t, hdr, NumColumns)
	assert.Equal(t, "img", hdr[0])
	assert.Equal(t, "wheel-axis", hdr[1])
	assert.Equal(t, "gear-R", hdr[NumColumns-1])

	r := &DatasetRow{Image: "ab12cd34_x.jpg", State: NewControllerState([NumSignals]int{})}
	row := r.CSVRow()
	require.Len(t, row, NumColumns)
	assert.Equal(t, "ab12cd34_x.jpg", row[0])
}
