package main

import (
	"fmt"
	"net/url"
	"time"

	mfsw "github.com/caarlos0/mfsw-panel"
	"github.com/caarlos0/mfsw-panel/notify"
)

type Config struct {
	DeviceURL     string        `env:"DEVICE_URL"     envDefault:"http://localhost:8080"`
	DeviceTimeout time.Duration `env:"DEVICE_TIMEOUT"`
	Notify        string        `env:"NOTIFY"         envDefault:"socketio"`
	NotifyURL     string        `env:"NOTIFY_URL"`
	MQTTBroker    string        `env:"MQTT_BROKER"    envDefault:"tcp://localhost:1883"`
	MQTTTopic     string        `env:"MQTT_TOPIC"     envDefault:"mfsw/buzzer_update"`
	MQTTClientID  string        `env:"MQTT_CLIENT_ID" envDefault:"mfsw-panel"`
	MQTTUsername  string        `env:"MQTT_USERNAME"`
	MQTTPassword  string        `env:"MQTT_PASSWORD"`
	BuzzerPoll    time.Duration `env:"BUZZER_POLL"`
	Address       string        `env:"LISTEN"         envDefault:":9010"`
	HomeKit       bool          `env:"HOMEKIT"`
	HomeKitPin    string        `env:"HOMEKIT_PIN"    envDefault:"00102003"`
	HomeKitDB     string        `env:"HOMEKIT_DB"     envDefault:"./db"`
	Debug         bool          `env:"DEBUG"`
}

const (
	notifySocketIO  = "socketio"
	notifyWebSocket = "websocket"
	notifyMQTT      = "mqtt"
	notifyNone      = "none"
)

// pushURL is NOTIFY_URL, or derived from DEVICE_URL when unset: the
// socket.io endpoint for socketio, /events for websocket.
func (c Config) pushURL() (string, error) {
	if c.NotifyURL != "" {
		return c.NotifyURL, nil
	}
	if c.Notify == notifySocketIO {
		return notify.SocketIOURL(c.DeviceURL)
	}
	u, err := url.Parse(c.DeviceURL)
	if err != nil {
		return "", fmt.Errorf("invalid DEVICE_URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/events"
	u.RawQuery = ""
	return u.String(), nil
}

// source builds the push channel; nil means push updates are disabled.
func (c Config) source() (notify.Source, error) {
	switch c.Notify {
	case notifySocketIO:
		src, err := notify.NewSocketIO(c.DeviceURL)
		if err != nil {
			return nil, err
		}
		if c.NotifyURL != "" {
			// an explicit URL is used as is, query included.
			src.URL = c.NotifyURL
		}
		return src, nil
	case notifyWebSocket:
		u, err := c.pushURL()
		if err != nil {
			return nil, err
		}
		return notify.NewWebSocket(u), nil
	case notifyMQTT:
		return &notify.MQTT{
			Broker:   c.MQTTBroker,
			Topic:    c.MQTTTopic,
			ClientID: c.MQTTClientID,
			Username: c.MQTTUsername,
			Password: c.MQTTPassword,
		}, nil
	case notifyNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid NOTIFY %q: must be one of socketio, websocket, mqtt, none", c.Notify)
	}
}

func (c Config) client() (*mfsw.Client, error) {
	return mfsw.New(c.DeviceURL, c.DeviceTimeout)
}
