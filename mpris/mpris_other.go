//go:build !linux

package mpris

type Client struct{}

func New() (*Client, error) { return nil, ErrUnsupported }

func (c *Client) Pause(app string) (bool, error) { return false, ErrUnsupported }
func (c *Client) Resume(app string) error        { return ErrUnsupported }
func (c *Client) Close() error                   { return nil }
