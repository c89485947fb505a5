package main

import (
	"context"

	"github.com/caarlos0/mfsw-panel/panel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var alarmGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace:   "mfsw_panel",
	Subsystem:   "alarm",
	Name:        "playing",
	Help:        "",
	ConstLabels: map[string]string{},
})

var listeningGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace:   "mfsw_panel",
	Subsystem:   "listener",
	Name:        "listening",
	Help:        "",
	ConstLabels: map[string]string{},
})

var buzzerGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace:   "mfsw_panel",
	Subsystem:   "buzzer",
	Name:        "on",
	Help:        "",
	ConstLabels: map[string]string{},
})

var notifyCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace:   "mfsw_panel",
	Subsystem:   "notify",
	Name:        "events_total",
	Help:        "",
	ConstLabels: map[string]string{},
})

var requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "mfsw_panel",
	Subsystem:   "client",
	Name:        "requests_total",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"call"})

var requestErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "mfsw_panel",
	Subsystem:   "client",
	Name:        "request_errors_total",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"call"})

func updateGauges(state panel.State) {
	alarmGauge.Set(boolAs[float64](state.Alarm == panel.Playing))
	listeningGauge.Set(boolAs[float64](state.Listening == panel.Listening))
	if state.BuzzerKnown {
		buzzerGauge.Set(boolAs[float64](state.BuzzerOn))
	}
}

// instrumented counts every request made to the device.
type instrumented struct {
	api panel.DeviceAPI
}

func (i instrumented) observe(call string, err error) error {
	requestCounter.WithLabelValues(call).Inc()
	if err != nil {
		requestErrorCounter.WithLabelValues(call).Inc()
	}
	return err
}

func (i instrumented) StartCamera(ctx context.Context) error {
	return i.observe("camera_start", i.api.StartCamera(ctx))
}

func (i instrumented) StopCamera(ctx context.Context) error {
	return i.observe("camera_stop", i.api.StopCamera(ctx))
}

func (i instrumented) StartAlarm(ctx context.Context) error {
	return i.observe("alarm_start", i.api.StartAlarm(ctx))
}

func (i instrumented) StopAlarm(ctx context.Context) error {
	return i.observe("alarm_stop", i.api.StopAlarm(ctx))
}

func (i instrumented) StopBuzzer(ctx context.Context) error {
	return i.observe("buzzer_stop", i.api.StopBuzzer(ctx))
}

func (i instrumented) BuzzerState(ctx context.Context) (bool, error) {
	on, err := i.api.BuzzerState(ctx)
	return on, i.observe("buzzer_state", err)
}

func (i instrumented) StartListening(ctx context.Context) (string, error) {
	msg, err := i.api.StartListening(ctx)
	return msg, i.observe("start_listening", err)
}
