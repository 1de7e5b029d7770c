package models

// ControllerState is an immutable snapshot of the latest value of every signal.
// It always carries all NumSignals values; unset signals read as 0.
type ControllerState struct {
	values [NumSignals]int
}

// NewControllerState builds a state from values in key order.
func NewControllerState(values [NumSignals]int) ControllerState {
	return ControllerState{values: values}
}

// Get returns the value of a signal, or 0 for SignalUnknown.
func (s ControllerState) Get(name SignalName) int {
	if !name.Valid() {
		return 0
	}
	return s.values[name]
}

// With returns a copy of s with one signal replaced.
func (s ControllerState) With(name SignalName, v int) ControllerState {
	if name.Valid() {
		s.values[name] = v
	}
	return s
}

// Values returns the values in key order.
func (s ControllerState) Values() [NumSignals]int { return s.values }

func (s ControllerState) WheelAxis() int { return s.values[SignalWheelAxis] }

// Pressed reports whether a button-like signal reads exactly 1.
func (s ControllerState) Pressed(name SignalName) bool { return s.Get(name) == 1 }

func (s ControllerState) ResumeButtonPressed() bool {
	return s.Pressed(SignalWheelButtonRight1)
}

func (s ControllerState) PauseButtonPressed() bool {
	return s.Pressed(SignalWheelButtonLeft1)
}

// CSVHeader returns the signal columns in key order.
func (ControllerState) CSVHeader() []string { return SignalNames() }

// CSVRow returns the values as decimal strings in key order.
func (s ControllerState) CSVRow() []string {
	row := make([]string, NumSignals)
	for i, v := range s.values {
		row[i] = itoa(v)
	}
	return row
}
