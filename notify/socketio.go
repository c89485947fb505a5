package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// SocketIOPath is where socket.io servers accept engine.io v4 connections.
const SocketIOPath = "/socket.io/"

// engine.io packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// socket.io packet types, carried inside engine.io messages.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

var errServerClosed = errors.New("server closed the push channel")

// SocketIO reads buzzer_update events from a socket.io server over the
// websocket transport, on the default namespace.
type SocketIO struct {
	URL             string
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Dialer          *websocket.Dialer
}

// NewSocketIO connects to the socket.io endpoint of the given http(s) or
// ws(s) base URL.
func NewSocketIO(base string) (*SocketIO, error) {
	u, err := SocketIOURL(base)
	if err != nil {
		return nil, err
	}
	return &SocketIO{
		URL:         u,
		MaxInterval: time.Second * 5,
		Dialer:      websocket.DefaultDialer,
	}, nil
}

// SocketIOURL returns the engine.io v4 websocket URL of a server.
func SocketIOURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid socket.io url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid socket.io url %q: unsupported scheme", base)
	}
	u.Path = SocketIOPath
	u.RawQuery = url.Values{
		"EIO":       []string{"4"},
		"transport": []string{"websocket"},
	}.Encode()
	return u.String(), nil
}

type handshake struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
}

// deadline is how long the server may stay silent before the connection
// is considered dead.
func (h handshake) deadline() time.Duration {
	return time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
}

func (s *SocketIO) Run(ctx context.Context, fn Handler) error {
	return redial(ctx, s.InitialInterval, s.MaxInterval, func(bo backoff.BackOff) error {
		return s.listen(ctx, fn, bo)
	})
}

func (s *SocketIO) listen(ctx context.Context, fn Handler, bo backoff.BackOff) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", s.URL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	var deadline time.Duration
	for {
		if deadline > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(deadline))
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("could not read from push channel: %w", err)
		}
		if len(b) == 0 {
			continue
		}

		switch b[0] {
		case eioOpen:
			var h handshake
			if err := json.Unmarshal(b[1:], &h); err != nil {
				return fmt.Errorf("invalid engine.io handshake: %w", err)
			}
			deadline = h.deadline()
			log.Debug("engine.io open", "sid", h.SID, "deadline", deadline)
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioMessage, sioConnect}); err != nil {
				return fmt.Errorf("could not join namespace: %w", err)
			}
		case eioPing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return fmt.Errorf("could not answer ping: %w", err)
			}
		case eioClose:
			return errServerClosed
		case eioMessage:
			connected, err := handlePacket(b[1:], fn)
			if err != nil {
				return err
			}
			if connected {
				bo.Reset()
				log.Info("connected to push channel", "url", s.URL)
			}
		default:
			log.Debug("ignoring engine.io packet", "packet", string(b))
		}
	}
}

// handlePacket processes one socket.io packet. connected is true once the
// server accepted the namespace connection.
func handlePacket(p []byte, fn Handler) (connected bool, err error) {
	if len(p) == 0 {
		return false, nil
	}
	kind, rest := p[0], p[1:]
	rest, ok := defaultNamespace(rest)
	if !ok {
		log.Debug("ignoring packet for another namespace", "packet", string(p))
		return false, nil
	}

	switch kind {
	case sioConnect:
		return true, nil
	case sioDisconnect:
		return false, errServerClosed
	case sioConnectError:
		return false, fmt.Errorf("push channel refused the connection: %s", rest)
	case sioEvent:
		on, ok, err := DecodeEvent(rest)
		if err != nil {
			log.Warn("ignoring push event", "err", err)
			return false, nil
		}
		if !ok {
			log.Debug("ignoring unknown event", "packet", string(p))
			return false, nil
		}
		fn(on)
		return false, nil
	default:
		log.Debug("ignoring socket.io packet", "packet", string(p))
		return false, nil
	}
}

// defaultNamespace strips the optional "/," namespace prefix. ok is false
// for packets addressed to another namespace.
func defaultNamespace(p []byte) ([]byte, bool) {
	if len(p) == 0 || p[0] != '/' {
		return p, true
	}
	ns, rest, found := bytes.Cut(p, []byte{','})
	if !found {
		return nil, string(ns) == "/"
	}
	return rest, string(ns) == "/"
}

// DecodeEvent parses the payload of a socket.io event packet, an optional
// ack id followed by a ["name", data...] array. ok is false for events
// other than buzzer updates.
func DecodeEvent(p []byte) (on bool, ok bool, err error) {
	p = bytes.TrimLeft(p, "0123456789")
	var args []json.RawMessage
	if err := json.Unmarshal(p, &args); err != nil {
		return false, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(args) == 0 {
		return false, false, fmt.Errorf("%w: missing event name", ErrMalformed)
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return false, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if name != EventBuzzerUpdate {
		return false, false, nil
	}
	if len(args) < 2 {
		return false, false, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	on, err = Decode(args[1])
	if err != nil {
		return false, false, err
	}
	return on, true, nil
}
