package models

// SignalName identifies one controller axis/button tracked in ControllerState.
// The numeric order is the ControllerState key order and the dataset column order.
type SignalName int

const (
	SignalWheelAxis SignalName = iota
	SignalClutch
	SignalBrake
	SignalGas
	SignalPaddleLeft
	SignalPaddleRight
	SignalWheelButtonLeft1
	SignalWheelButtonLeft2
	SignalWheelButtonLeft3
	SignalWheelButtonRight1
	SignalWheelButtonRight2
	SignalWheelButtonRight3
	SignalShifterButtonLeft
	SignalShifterButtonRight
	SignalShifterButtonUp
	SignalShifterButtonDown
	SignalDpadLeftRight
	SignalDpadUpDown
	SignalShifterButton1
	SignalShifterButton2
	SignalShifterButton3
	SignalShifterButton4
	SignalGear1
	SignalGear2
	SignalGear3
	SignalGear4
	SignalGear5
	SignalGear6
	SignalGearR

	// SignalUnknown labels device records whose key is not in the table.
	SignalUnknown SignalName = -1
)

// NumSignals is the size of the fixed signal set.
const NumSignals = int(SignalGearR) + 1

var signalNames = [NumSignals]string{
	"wheel-axis",
	"clutch",
	"brake",
	"gas",
	"paddle-left",
	"paddle-right",
	"wheel-button-left-1",
	"wheel-button-left-2",
	"wheel-button-left-3",
	"wheel-button-right-1",
	"wheel-button-right-2",
	"wheel-button-right-3",
	"shifter-button-left",
	"shifter-button-right",
	"shifter-button-up",
	"shifter-button-down",
	"dpad-left/right",
	"dpad-up/down",
	"shifter-button-1",
	"shifter-button-2",
	"shifter-button-3",
	"shifter-button-4",
	"gear-1",
	"gear-2",
	"gear-3",
	"gear-4",
	"gear-5",
	"gear-6",
	"gear-R",
}

// signalKeys maps the big-endian {group,axis} pair of a device record to its signal.
var signalKeys = map[uint16]SignalName{
	0x0200: SignalWheelAxis,
	0x0201: SignalClutch,
	0x0203: SignalBrake,
	0x0202: SignalGas,
	0x0105: SignalPaddleLeft,
	0x0104: SignalPaddleRight,
	0x0107: SignalWheelButtonLeft1,
	0x0114: SignalWheelButtonLeft2,
	0x0115: SignalWheelButtonLeft3,
	0x0106: SignalWheelButtonRight1,
	0x0112: SignalWheelButtonRight2,
	0x0113: SignalWheelButtonRight3,
	0x0101: SignalShifterButtonLeft,
	0x0102: SignalShifterButtonRight,
	0x0103: SignalShifterButtonUp,
	0x0100: SignalShifterButtonDown,
	0x0204: SignalDpadLeftRight,
	0x0205: SignalDpadUpDown,
	0x010b: SignalShifterButton1,
	0x0108: SignalShifterButton2,
	0x0109: SignalShifterButton3,
	0x010a: SignalShifterButton4,
	0x010c: SignalGear1,
	0x010d: SignalGear2,
	0x010e: SignalGear3,
	0x010f: SignalGear4,
	0x0110: SignalGear5,
	0x0111: SignalGear6,
	0x0116: SignalGearR,
}

var signalsByName = func() map[string]SignalName {
	m := make(map[string]SignalName, NumSignals)
	for i, n := range signalNames {
		m[n] = SignalName(i)
	}
	return m
}()

func (s SignalName) String() string {
	if s.Valid() {
		return signalNames[s]
	}
	return "unknown"
}

// Valid reports whether s is one of the fixed signals.
func (s SignalName) Valid() bool {
	return s >= 0 && int(s) < NumSignals
}

// LookupKey resolves a {group,axis} pair. Unknown pairs yield SignalUnknown.
func LookupKey(group, axis byte) SignalName {
	if s, ok := signalKeys[uint16(group)<<8|uint16(axis)]; ok {
		return s
	}
	return SignalUnknown
}

// ParseSignalName resolves a wire/CSV name such as "wheel-axis".
func ParseSignalName(name string) (SignalName, bool) {
	s, ok := signalsByName[name]
	return s, ok
}

// SignalNames returns the 29 names in ControllerState key order.
func SignalNames() []string {
	out := make([]string, NumSignals)
	copy(out, signalNames[:])
	return out
}
