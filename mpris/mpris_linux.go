//go:build linux

package mpris

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

type Client struct {
	conn *dbus.Conn
}

func New() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("mpris: session bus: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) players(app string) ([]string, error) {
	var names []string
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("mpris: list names: %w", err)
	}
	var out []string
	for _, n := range names {
		if matches(n, app) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (c *Client) status(name string) (string, error) {
	v, err := c.conn.Object(name, objectPath).GetProperty(playerIface + ".PlaybackStatus")
	if err != nil {
		return "", err
	}
	s, _ := v.Value().(string)
	return s, nil
}

// Pause pauses every player of app that is currently playing.
func (c *Client) Pause(app string) (bool, error) {
	names, err := c.players(app)
	if err != nil {
		return false, err
	}
	paused := false
	for _, n := range names {
		st, err := c.status(n)
		if err != nil || st != "Playing" {
			continue
		}
		if err := c.conn.Object(n, objectPath).Call(playerIface+".Pause", 0).Err; err != nil {
			return paused, fmt.Errorf("mpris: pause %s: %w", n, err)
		}
		paused = true
	}
	return paused, nil
}

func (c *Client) Resume(app string) error {
	names, err := c.players(app)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := c.conn.Object(n, objectPath).Call(playerIface+".Play", 0).Err; err != nil {
			return fmt.Errorf("mpris: play %s: %w", n, err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
