package panel

type AlarmState uint8

const (
	NotPlaying AlarmState = iota
	Playing
)

func (s AlarmState) String() string {
	switch s {
	case Playing:
		return "Playing"
	default:
		return "NotPlaying"
	}
}

type ListenState uint8

const (
	NotListening ListenState = iota
	Listening
)

func (s ListenState) String() string {
	switch s {
	case Listening:
		return "Listening"
	default:
		return "NotListening"
	}
}

// State is the in-memory panel state. BuzzerOn is only meaningful once
// BuzzerKnown is set, and it is advisory: the device is the source of truth.
type State struct {
	Alarm       AlarmState
	Listening   ListenState
	BuzzerOn    bool
	BuzzerKnown bool
}
