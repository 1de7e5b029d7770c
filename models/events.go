package models

// RawEvent is one fixed 8-byte controller record.
type RawEvent struct {
	Sequence uint32 // informational only
	Value    uint16
	Group    byte
	Axis     byte
}

// SignalUpdate is one decoded (name, normalized value) pair.
type SignalUpdate struct {
	Name  SignalName
	Value int
}

// ControlKind is a pause/resume request.
type ControlKind int

const (
	ControlPause ControlKind = iota
	ControlResume
)

func (k ControlKind) String() string {
	if k == ControlResume {
		return "resume"
	}
	return "pause"
}

// ControlSource tells where a control signal came from.
type ControlSource string

const (
	SourceKeyboard ControlSource = "keyboard"
	SourceButton   ControlSource = "button"
)

// ControlSignal is one entry on the flow controller's queue.
type ControlSignal struct {
	Kind   ControlKind
	Source ControlSource
}
