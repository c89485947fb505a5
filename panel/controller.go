package panel

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	mfsw "github.com/caarlos0/mfsw-panel"
	logp "github.com/charmbracelet/log"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "panel",
})

// Logger is the panel logger, exposed so the binary can change its level.
var Logger = log

// SentinelPhrase, when heard by the device, triggers the alarm.
const SentinelPhrase = "El Psy Congroo"

const (
	textAlarm            = "Alarm"
	textStopAlarm        = "Stop Alarm"
	textStart            = "Start"
	textStop             = "Stop"
	textBuzzerOn         = "Buzzer is ON"
	textBuzzerOff        = "Buzzer is OFF"
	textBuzzerUnknown    = "Buzzer state unknown"
	textStartCamera      = "Start Camera"
	textStopCamera       = "Stop Camera"
	textTriggerAlarm     = "Trigger Alarm"
	textBuzzerOffButton  = "Buzzer Off"
	textConfirmYes       = "Yes"
	textConfirmNo        = "No"
	deviceUnreachableMsg = "Could not reach the device: "
)

// DeviceAPI is the device server the controller sends commands to.
type DeviceAPI interface {
	StartCamera(ctx context.Context) error
	StopCamera(ctx context.Context) error
	StartAlarm(ctx context.Context) error
	StopAlarm(ctx context.Context) error
	StopBuzzer(ctx context.Context) error
	BuzzerState(ctx context.Context) (bool, error)
	StartListening(ctx context.Context) (string, error)
}

type Option func(*Controller)

// WithBuzzerPoll refreshes the buzzer state every d. Zero disables polling.
func WithBuzzerPoll(d time.Duration) Option {
	return func(c *Controller) {
		c.poll = d
	}
}

// WithStateHook registers fn to be called, from the controller loop, after
// every state change.
func WithStateHook(fn func(State)) Option {
	return func(c *Controller) {
		c.hooks = append(c.hooks, fn)
	}
}

// Controller owns the panel state. All handlers run on the goroutine
// running Run; requests to the device run on their own goroutines and
// hand their results back to the loop.
type Controller struct {
	api      DeviceAPI
	view     View
	gate     *Gate
	state    State
	bindings map[ElementID]func()
	hooks    []func(State)
	poll     time.Duration

	ctx      context.Context
	mu       sync.Mutex
	queue    []func()
	stopped  bool
	wake     chan struct{}
	done     chan struct{}
	inflight sync.WaitGroup
}

func New(api DeviceAPI, view View, opts ...Option) *Controller {
	c := &Controller{
		api:   api,
		view:  view,
		gate:  NewGate(view),
		ctx:   context.Background(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	c.bindings = map[ElementID]func(){
		CameraStartButton:  c.onStartCamera,
		CameraStopButton:   c.onStopCamera,
		AlarmButton:        c.onAlarmButtonClick,
		TriggerAlarmButton: c.onTriggerAlarmButtonClick,
		BuzzerOffButton:    c.onBuzzerOff,
		StartButton:        c.onToggleListening,
		ConfirmYes:         c.gate.Confirm,
		ConfirmNo:          c.gate.Cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run renders the initial page, refreshes the buzzer state, and then
// processes clicks, push updates and request results until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer c.stop()

	c.render()
	c.refreshBuzzerState(false)

	var tick <-chan time.Time
	if c.poll > 0 {
		ticker := time.NewTicker(c.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping controller")
			return ctx.Err()
		case <-c.wake:
			c.drain()
		case <-tick:
			c.refreshBuzzerState(true)
		}
	}
}

func (c *Controller) drain() {
	for {
		c.mu.Lock()
		tasks := c.queue
		c.queue = nil
		c.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, task := range tasks {
			task()
		}
	}
}

func (c *Controller) stop() {
	c.mu.Lock()
	c.stopped = true
	c.queue = nil
	c.mu.Unlock()
	close(c.done)
}

// Click handles a click on the given element. It never blocks; clicks made
// before Run starts are handled, in order, once it does.
func (c *Controller) Click(id ElementID) {
	c.post(func() {
		fn, ok := c.bindings[id]
		if !ok {
			log.Debug("click on unbound element", "id", id)
			return
		}
		log.Debug("click", "id", id)
		fn()
	})
}

// PushBuzzer applies a buzzer state pushed by the device.
func (c *Controller) PushBuzzer(on bool) {
	c.post(func() {
		c.onBuzzerPushUpdate(on)
	})
}

// State returns a copy of the current state. It waits for the loop, so it
// blocks until Run is started; after Run returns it reports the final state.
func (c *Controller) State() State {
	ch := make(chan State, 1)
	if !c.post(func() { ch <- c.state }) {
		return c.state
	}
	select {
	case s := <-ch:
		return s
	case <-c.done:
		return c.state
	}
}

// post queues task for the loop. It is false once Run has returned.
func (c *Controller) post(task func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.queue = append(c.queue, task)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// request runs call in the background and hands its error to done on the
// loop. Nothing cancels an in-flight request except the loop context.
func (c *Controller) request(call func(ctx context.Context) error, done func(err error)) {
	c.inflight.Add(1)
	ctx := c.ctx
	go func() {
		err := call(ctx)
		if !c.post(func() {
			defer c.inflight.Done()
			done(err)
		}) {
			c.inflight.Done()
		}
	}()
}

func (c *Controller) changed() {
	for _, fn := range c.hooks {
		fn(c.state)
	}
}

func (c *Controller) render() {
	c.view.SetText(CameraStartButton, textStartCamera)
	c.view.SetText(CameraStopButton, textStopCamera)
	c.view.SetText(AlarmButton, textAlarm)
	c.view.SetDisabled(AlarmButton, true)
	c.view.SetText(TriggerAlarmButton, textTriggerAlarm)
	c.view.SetDisabled(TriggerAlarmButton, false)
	c.view.SetText(BuzzerOffButton, textBuzzerOffButton)
	c.view.SetDisabled(BuzzerOffButton, true)
	c.view.SetText(BuzzerStateLabel, textBuzzerUnknown)
	c.view.SetText(StartButton, textStart)
	c.view.SetText(ConfirmYes, textConfirmYes)
	c.view.SetText(ConfirmNo, textConfirmNo)
	c.view.SetVisible(ConfirmModal, false)
	c.changed()
}

// report surfaces the outcome of a request. An empty ok message means
// success is silent.
func (c *Controller) report(err error, ok, failed string) {
	var serr *mfsw.StatusError
	switch {
	case err == nil:
		if ok != "" {
			c.view.Alert(ok)
		}
	case errors.As(err, &serr):
		log.Warn("device refused command", "op", serr.Op, "status", serr.Code)
		c.view.Alert(failed)
	default:
		log.Error("could not reach the device", "err", err)
		c.view.Alert(deviceUnreachableMsg + err.Error())
	}
}

func (c *Controller) onStartCamera() {
	c.request(c.api.StartCamera, func(err error) {
		c.report(err, "Camera started!", "Failed to start the camera.")
	})
}

func (c *Controller) onStopCamera() {
	c.request(c.api.StopCamera, func(err error) {
		c.report(err, "Camera stopped!", "Failed to stop the camera.")
	})
}

func (c *Controller) onAlarmButtonClick() {
	if c.state.Alarm == Playing {
		c.stopAlarm()
	}
}

func (c *Controller) onTriggerAlarmButtonClick() {
	if c.state.Alarm == NotPlaying {
		c.triggerAlarm()
	}
}

// triggerAlarm flips the page before the device confirms, and does not
// roll back if the device fails.
func (c *Controller) triggerAlarm() {
	log.Info("triggering alarm")
	c.state.Alarm = Playing
	c.view.SetText(AlarmButton, textStopAlarm)
	c.view.SetDisabled(AlarmButton, false)
	c.view.SetDisabled(TriggerAlarmButton, true)
	c.changed()

	c.request(c.api.StartAlarm, func(err error) {
		c.report(err, "Alarm is ringing!", "Failed to start the alarm.")
	})
}

func (c *Controller) stopAlarm() {
	log.Info("stopping alarm")
	c.state.Alarm = NotPlaying
	c.view.SetText(AlarmButton, textAlarm)
	c.view.SetDisabled(AlarmButton, true)
	c.view.SetDisabled(TriggerAlarmButton, false)
	c.changed()

	c.request(c.api.StopAlarm, func(err error) {
		c.report(err, "Alarm stopped.", "Failed to stop the alarm.")
	})
}

func (c *Controller) onToggleListening() {
	if c.state.Listening == Listening {
		// stopping is local only, the device has no stop listening call.
		c.gate.Request(func() {
			c.setListening(NotListening)
		})
		return
	}

	c.setListening(Listening)
	var message string
	c.request(func(ctx context.Context) (err error) {
		message, err = c.api.StartListening(ctx)
		return
	}, func(err error) {
		if err != nil {
			c.report(err, "", "Failed to start listening.")
			return
		}
		log.Info("device heard", "message", message)
		if message == SentinelPhrase {
			c.onTriggerAlarmButtonClick()
		}
	})
}

func (c *Controller) setListening(s ListenState) {
	c.state.Listening = s
	if s == Listening {
		c.view.SetText(StartButton, textStop)
	} else {
		c.view.SetText(StartButton, textStart)
	}
	c.changed()
}

func (c *Controller) onBuzzerOff() {
	c.request(c.api.StopBuzzer, func(err error) {
		c.report(err, "Buzzer stopped.", "Failed to stop the buzzer.")
	})
}

// refreshBuzzerState queries the device. Quiet refreshes only log failures.
func (c *Controller) refreshBuzzerState(quiet bool) {
	var on bool
	c.request(func(ctx context.Context) (err error) {
		on, err = c.api.BuzzerState(ctx)
		return
	}, func(err error) {
		if err != nil {
			if quiet {
				log.Error("could not refresh buzzer state", "err", err)
				return
			}
			c.report(err, "", "Failed to get the buzzer state.")
			return
		}
		c.applyBuzzer(on)
	})
}

func (c *Controller) onBuzzerPushUpdate(on bool) {
	log.Debug("buzzer update pushed", "on", on)
	c.applyBuzzer(on)
}

func (c *Controller) applyBuzzer(on bool) {
	c.state.BuzzerOn = on
	c.state.BuzzerKnown = true
	c.view.SetDisabled(BuzzerOffButton, !on)
	if on {
		c.view.SetText(BuzzerStateLabel, textBuzzerOn)
	} else {
		c.view.SetText(BuzzerStateLabel, textBuzzerOff)
	}
	c.changed()
}
