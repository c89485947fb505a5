package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/brutella/hap"
	"github.com/caarlos0/mfsw-panel/panel"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

type clicks []panel.ElementID

func (c *clicks) Click(id panel.ElementID) {
	*c = append(*c, id)
}

func TestHomeKitRequests(t *testing.T) {
	var got clicks
	h := setupHomeKit(&got, "aa:bb")
	require.Len(t, h.Accessories(), 3)

	for _, tt := range []struct {
		name  string
		fn    func(interface{}) int
		value interface{}
		code  int
		click panel.ElementID
	}{
		{"alarm on", req(h.Alarm.Switch.On.SetValueRequestFunc), true, hap.JsonStatusSuccess, panel.TriggerAlarmButton},
		{"alarm off", req(h.Alarm.Switch.On.SetValueRequestFunc), false, hap.JsonStatusSuccess, panel.AlarmButton},
		{"camera on", req(h.Camera.Switch.On.SetValueRequestFunc), true, hap.JsonStatusSuccess, panel.CameraStartButton},
		{"camera off", req(h.Camera.Switch.On.SetValueRequestFunc), false, hap.JsonStatusSuccess, panel.CameraStopButton},
		{"buzzer off", req(h.Buzzer.Switch.On.SetValueRequestFunc), false, hap.JsonStatusSuccess, panel.BuzzerOffButton},
		{"buzzer on", req(h.Buzzer.Switch.On.SetValueRequestFunc), true, hap.JsonStatusInvalidValueInRequest, ""},
		{"not a bool", req(h.Alarm.Switch.On.SetValueRequestFunc), 1, hap.JsonStatusInvalidValueInRequest, ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			require.Equal(t, tt.code, tt.fn(tt.value))
			if tt.click == "" {
				require.Empty(t, got)
				return
			}
			require.Equal(t, clicks{tt.click}, got)
		})
	}
}

func req(fn func(interface{}, *http.Request) (interface{}, int)) func(interface{}) int {
	return func(v interface{}) int {
		_, code := fn(v, nil)
		return code
	}
}

func TestHomeKitCameraResets(t *testing.T) {
	var got clicks
	h := setupHomeKit(&got, "")
	h.cameraReset = time.Millisecond * 10

	h.Camera.Switch.On.SetValue(true)
	require.Equal(t, hap.JsonStatusSuccess, req(h.Camera.Switch.On.SetValueRequestFunc)(true))

	require.Eventually(t, func() bool {
		return !h.Camera.Switch.On.Value()
	}, time.Second*5, time.Millisecond*5)
	require.Equal(t, clicks{panel.CameraStartButton}, got)
}

func TestHomeKitUpdate(t *testing.T) {
	var got clicks
	h := setupHomeKit(&got, "")

	h.Update(panel.State{Alarm: panel.Playing})
	require.True(t, h.Alarm.Switch.On.Value())
	require.False(t, h.Buzzer.Switch.On.Value())

	h.Update(panel.State{Alarm: panel.Playing, BuzzerKnown: true, BuzzerOn: true})
	require.True(t, h.Buzzer.Switch.On.Value())

	// an unknown buzzer state leaves the switch alone.
	h.Update(panel.State{Alarm: panel.NotPlaying})
	require.False(t, h.Alarm.Switch.On.Value())
	require.True(t, h.Buzzer.Switch.On.Value())
	require.Empty(t, got)
}

type stubAPI struct {
	err error
}

func (s stubAPI) StartCamera(context.Context) error              { return s.err }
func (s stubAPI) StopCamera(context.Context) error               { return s.err }
func (s stubAPI) StartAlarm(context.Context) error               { return s.err }
func (s stubAPI) StopAlarm(context.Context) error                { return s.err }
func (s stubAPI) StopBuzzer(context.Context) error               { return s.err }
func (s stubAPI) BuzzerState(context.Context) (bool, error)      { return true, s.err }
func (s stubAPI) StartListening(context.Context) (string, error) { return "hi", s.err }

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestInstrumented(t *testing.T) {
	ctx := context.Background()
	calls := value(t, requestCounter.WithLabelValues("alarm_start"))
	failures := value(t, requestErrorCounter.WithLabelValues("alarm_start"))

	require.NoError(t, instrumented{api: stubAPI{}}.StartAlarm(ctx))
	require.Equal(t, calls+1, value(t, requestCounter.WithLabelValues("alarm_start")))
	require.Equal(t, failures, value(t, requestErrorCounter.WithLabelValues("alarm_start")))

	boom := errors.New("boom")
	require.ErrorIs(t, instrumented{api: stubAPI{err: boom}}.StartAlarm(ctx), boom)
	require.Equal(t, calls+2, value(t, requestCounter.WithLabelValues("alarm_start")))
	require.Equal(t, failures+1, value(t, requestErrorCounter.WithLabelValues("alarm_start")))

	msg, err := instrumented{api: stubAPI{}}.StartListening(ctx)
	require.NoError(t, err)
	require.Equal(t, "hi", msg)
	on, err := instrumented{api: stubAPI{}}.BuzzerState(ctx)
	require.NoError(t, err)
	require.True(t, on)
}

func TestUpdateGauges(t *testing.T) {
	updateGauges(panel.State{Alarm: panel.Playing, Listening: panel.Listening, BuzzerKnown: true, BuzzerOn: true})
	require.Equal(t, 1.0, value(t, alarmGauge))
	require.Equal(t, 1.0, value(t, listeningGauge))
	require.Equal(t, 1.0, value(t, buzzerGauge))

	updateGauges(panel.State{})
	require.Equal(t, 0.0, value(t, alarmGauge))
	require.Equal(t, 0.0, value(t, listeningGauge))
	require.Equal(t, 1.0, value(t, buzzerGauge))
}
