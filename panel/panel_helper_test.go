package panel

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	callCameraStart = "camera/start"
	callCameraStop  = "camera/stop"
	callAlarmStart  = "alarm/start"
	callAlarmStop   = "alarm/stop"
	callBuzzerStop  = "buzzer/stop"
	callBuzzerState = "buzzer/state"
	callListen      = "start"
)

type fakeAPI struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	blocks  map[string]chan struct{}
	buzzer  bool
	message string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		errs:   map[string]error{},
		blocks: map[string]chan struct{}{},
	}
}

func (f *fakeAPI) call(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	block := f.blocks[name]
	err := f.errs[name]
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeAPI) setErr(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

func (f *fakeAPI) setBlock(name string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.blocks[name] = ch
	return ch
}

func (f *fakeAPI) setBuzzer(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buzzer = on
}

func (f *fakeAPI) setMessage(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(name string) int {
	var n int
	for _, c := range f.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) StartCamera(context.Context) error { return f.call(callCameraStart) }
func (f *fakeAPI) StopCamera(context.Context) error  { return f.call(callCameraStop) }
func (f *fakeAPI) StartAlarm(context.Context) error  { return f.call(callAlarmStart) }
func (f *fakeAPI) StopAlarm(context.Context) error   { return f.call(callAlarmStop) }
func (f *fakeAPI) StopBuzzer(context.Context) error  { return f.call(callBuzzerStop) }

func (f *fakeAPI) BuzzerState(context.Context) (bool, error) {
	err := f.call(callBuzzerState)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buzzer, err
}

func (f *fakeAPI) StartListening(context.Context) (string, error) {
	err := f.call(callListen)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message, err
}

type recorder struct {
	mu       sync.Mutex
	text     map[ElementID]string
	disabled map[ElementID]bool
	visible  map[ElementID]bool
	alerts   []string
}

func newRecorder() *recorder {
	return &recorder{
		text:     map[ElementID]string{},
		disabled: map[ElementID]bool{},
		visible:  map[ElementID]bool{},
	}
}

func (r *recorder) SetText(id ElementID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text[id] = text
}

func (r *recorder) SetDisabled(id ElementID, disabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[id] = disabled
}

func (r *recorder) SetVisible(id ElementID, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible[id] = visible
}

func (r *recorder) Alert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, message)
}

func (r *recorder) Text(id ElementID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text[id]
}

func (r *recorder) Disabled(id ElementID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled[id]
}

func (r *recorder) Visible(id ElementID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible[id]
}

func (r *recorder) Alerts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.alerts...)
}

func (r *recorder) lastAlert() string {
	alerts := r.Alerts()
	if len(alerts) == 0 {
		return ""
	}
	return alerts[len(alerts)-1]
}

func startController(t *testing.T, api *fakeAPI, opts ...Option) (*Controller, *recorder) {
	t.Helper()
	view := newRecorder()
	c := New(api, view, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.ErrorIs(t, <-errs, context.Canceled)
	})
	return c, view
}

// settle waits until every click posted so far ran and every request it
// caused has been handled.
func settle(c *Controller) {
	c.State()
	c.inflight.Wait()
}

func click(c *Controller, ids ...ElementID) {
	for _, id := range ids {
		c.Click(id)
		settle(c)
	}
}
