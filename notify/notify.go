package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	mfsw "github.com/caarlos0/mfsw-panel"
	logp "github.com/charmbracelet/log"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "notify",
})

// Logger is the notify logger, exposed so the binary can change its level.
var Logger = log

// EventBuzzerUpdate is the event the device pushes when the buzzer changes.
const EventBuzzerUpdate = "buzzer_update"

var ErrMalformed = errors.New("malformed buzzer update")

// Handler receives pushed buzzer states, in arrival order.
type Handler func(on bool)

// Source is a push channel for buzzer updates. Run blocks until ctx is done.
type Source interface {
	Run(ctx context.Context, fn Handler) error
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses a {"buzzer_on": bool} payload.
func Decode(payload []byte) (bool, error) {
	var state mfsw.BuzzerState
	if err := json.Unmarshal(payload, &state); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if state.BuzzerOn == nil {
		return false, fmt.Errorf("%w: missing buzzer_on", ErrMalformed)
	}
	return *state.BuzzerOn, nil
}

// DecodeFrame parses a named event frame. ok is false for events other than
// buzzer updates.
func DecodeFrame(b []byte) (on bool, ok bool, err error) {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return false, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Event != EventBuzzerUpdate {
		return false, false, nil
	}
	if len(f.Data) == 0 {
		return false, false, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	on, err = Decode(f.Data)
	if err != nil {
		return false, false, err
	}
	return on, true, nil
}
