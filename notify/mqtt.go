package notify

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultTopic    = "mfsw/buzzer_update"
	DefaultClientID = "mfsw-panel"
)

// MQTT reads buzzer updates published on a broker topic. The payload is the
// bare {"buzzer_on": bool} object.
type MQTT struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QOS      byte

	// RetryInterval is the wait between connection attempts, 5s when unset.
	RetryInterval time.Duration
}

func (m *MQTT) Run(ctx context.Context, fn Handler) error {
	topic := m.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	clientID := m.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	retry := m.RetryInterval
	if retry <= 0 {
		retry = time.Second * 5
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(m.Username)
	opts.SetPassword(m.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(retry)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info("connected to broker", "broker", m.Broker)
		token := client.Subscribe(topic, m.QOS, messageHandler(fn))
		if token.Wait() && token.Error() != nil {
			log.Error("could not subscribe", "topic", topic, "err", token.Error())
			return
		}
		log.Debug("subscribed", "topic", topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Error("broker connection lost", "err", err)
	})

	client := mqtt.NewClient(opts)
	defer client.Disconnect(250)

	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("could not connect to broker %s: %w", m.Broker, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	<-ctx.Done()
	return ctx.Err()
}

func messageHandler(fn Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		on, err := Decode(msg.Payload())
		if err != nil {
			log.Warn("ignoring push event", "topic", msg.Topic(), "err", err)
			return
		}
		fn(on)
	}
}
