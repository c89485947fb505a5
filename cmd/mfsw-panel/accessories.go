package main

import (
	"net/http"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/caarlos0/mfsw-panel/panel"
	"github.com/caarlos0/mfsw-panel/web"
)

// HomeKit exposes the panel buttons as switches. Switch writes become
// clicks, and the switches follow the panel state.
type HomeKit struct {
	Alarm  *accessory.Switch
	Camera *accessory.Switch
	Buzzer *accessory.Switch

	// cameraReset is how long the Camera switch stays on after a tap; the
	// panel does not track the camera state.
	cameraReset time.Duration
}

func setupHomeKit(clicker web.Clicker, serial string) *HomeKit {
	h := &HomeKit{
		Alarm: accessory.NewSwitch(accessory.Info{
			Name:         "Alarm",
			SerialNumber: serial,
			Manufacturer: manufacturer,
		}),
		Camera: accessory.NewSwitch(accessory.Info{
			Name:         "Camera",
			SerialNumber: serial,
			Manufacturer: manufacturer,
		}),
		Buzzer: accessory.NewSwitch(accessory.Info{
			Name:         "Buzzer",
			SerialNumber: serial,
			Manufacturer: manufacturer,
		}),
		cameraReset: time.Second,
	}
	h.Alarm.Id = 2
	h.Camera.Id = 3
	h.Buzzer.Id = 4

	h.Alarm.Switch.On.SetValueRequestFunc = alarmRequest(clicker)
	h.Camera.Switch.On.SetValueRequestFunc = h.cameraRequest(clicker)
	h.Buzzer.Switch.On.SetValueRequestFunc = buzzerRequest(clicker)
	return h
}

func (h *HomeKit) Accessories() []*accessory.A {
	return []*accessory.A{h.Alarm.A, h.Camera.A, h.Buzzer.A}
}

func (h *HomeKit) Update(state panel.State) {
	if playing := state.Alarm == panel.Playing; h.Alarm.Switch.On.Value() != playing {
		h.Alarm.Switch.On.SetValue(playing)
		log.Info("homekit alarm", "playing", playing)
	}
	if state.BuzzerKnown && h.Buzzer.Switch.On.Value() != state.BuzzerOn {
		h.Buzzer.Switch.On.SetValue(state.BuzzerOn)
		log.Info("homekit buzzer", "on", state.BuzzerOn)
	}
}

func alarmRequest(clicker web.Clicker) func(interface{}, *http.Request) (interface{}, int) {
	return func(value interface{}, _ *http.Request) (response interface{}, code int) {
		v, ok := value.(bool)
		if !ok {
			return nil, hap.JsonStatusInvalidValueInRequest
		}
		if v {
			log.Warn("triggering the alarm from homekit")
			clicker.Click(panel.TriggerAlarmButton)
		} else {
			log.Info("stopping the alarm from homekit")
			clicker.Click(panel.AlarmButton)
		}
		return nil, hap.JsonStatusSuccess
	}
}

// cameraRequest clicks start or stop, then turns the switch back off. hap
// stores the requested value after this returns, so the reset is deferred.
func (h *HomeKit) cameraRequest(clicker web.Clicker) func(interface{}, *http.Request) (interface{}, int) {
	return func(value interface{}, _ *http.Request) (response interface{}, code int) {
		v, ok := value.(bool)
		if !ok {
			return nil, hap.JsonStatusInvalidValueInRequest
		}
		if v {
			clicker.Click(panel.CameraStartButton)
			time.AfterFunc(h.cameraReset, func() {
				h.Camera.Switch.On.SetValue(false)
			})
		} else {
			clicker.Click(panel.CameraStopButton)
		}
		return nil, hap.JsonStatusSuccess
	}
}

// buzzerRequest only allows turning the buzzer off; the device turns it on.
func buzzerRequest(clicker web.Clicker) func(interface{}, *http.Request) (interface{}, int) {
	return func(value interface{}, _ *http.Request) (response interface{}, code int) {
		v, ok := value.(bool)
		if !ok || v {
			return nil, hap.JsonStatusInvalidValueInRequest
		}
		clicker.Click(panel.BuzzerOffButton)
		return nil, hap.JsonStatusSuccess
	}
}
