package mfsw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	logp "github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"github.com/j-keck/arping"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "device",
})

// Logger is the device client logger, exposed so the binary can change its level.
var Logger = log

const DefaultURL = "http://localhost:8080"

const (
	pathCameraStart = "/camera/start"
	pathCameraStop  = "/camera/stop"
	pathAlarmStart  = "/alarm/start"
	pathAlarmStop   = "/alarm/stop"
	pathBuzzerStop  = "/buzzer/stop"
	pathBuzzerState = "/buzzer/state"
	pathListenStart = "/start"
)

var ErrMissingField = errors.New("missing field in device response")

// StatusError is returned when the device answered with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("could not %s: device returned status %d", e.Op, e.Code)
}

// Client talks to the device server's REST endpoints.
type Client struct {
	http *resty.Client
	base *url.URL
}

// New creates a client for the device at baseURL. A zero timeout means
// requests never time out on their own.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse device url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("could not parse device url: unsupported scheme %q", u.Scheme)
	}

	r := resty.New()
	r.SetBaseURL(u.String())
	r.SetHeader("Accept", "application/json")
	if timeout > 0 {
		r.SetTimeout(timeout)
	}

	return &Client{
		http: r,
		base: u,
	}, nil
}

// Host returns the device hostname, without port.
func (c *Client) Host() string {
	return c.base.Hostname()
}

// URL returns the device base URL.
func (c *Client) URL() *url.URL {
	u := *c.base
	return &u
}

func (c *Client) StartCamera(ctx context.Context) error {
	_, err := c.get(ctx, "start the camera", pathCameraStart)
	return err
}

func (c *Client) StopCamera(ctx context.Context) error {
	_, err := c.get(ctx, "stop the camera", pathCameraStop)
	return err
}

func (c *Client) StartAlarm(ctx context.Context) error {
	_, err := c.get(ctx, "start the alarm", pathAlarmStart)
	return err
}

func (c *Client) StopAlarm(ctx context.Context) error {
	_, err := c.get(ctx, "stop the alarm", pathAlarmStop)
	return err
}

func (c *Client) StopBuzzer(ctx context.Context) error {
	_, err := c.get(ctx, "stop the buzzer", pathBuzzerStop)
	return err
}

func (c *Client) BuzzerState(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, "get the buzzer state", pathBuzzerState)
	if err != nil {
		return false, err
	}
	var state BuzzerState
	if err := json.Unmarshal(body, &state); err != nil {
		return false, fmt.Errorf("could not get the buzzer state: %w", err)
	}
	if state.BuzzerOn == nil {
		return false, fmt.Errorf("could not get the buzzer state: %w: buzzer_on", ErrMissingField)
	}
	return *state.BuzzerOn, nil
}

func (c *Client) StartListening(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "start listening", pathListenStart)
	if err != nil {
		return "", err
	}
	var msg ListenResult
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("could not start listening: %w", err)
	}
	return msg.Message, nil
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	log.Debug("request", "path", path)
	resp, err := c.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("could not %s: %w", op, err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Op: op, Code: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// MacAddress resolves the hardware address of the given host through ARP.
// It needs raw socket capabilities, and only works for hosts in the local
// network.
func MacAddress(host string) (string, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return "", fmt.Errorf("could not get the mac address: %w", err)
		}
		for _, candidate := range ips {
			if candidate.To4() != nil {
				ip = candidate
				break
			}
		}
	}
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("could not get the mac address: no ipv4 address for %q", host)
	}
	hw, _, err := arping.Ping(ip)
	if err != nil {
		return "", fmt.Errorf("could not get the mac address: %w", err)
	}
	return hw.String(), nil
}
