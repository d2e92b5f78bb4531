package manifold

import "time"

// SetNow fija el reloj del cliente en tests.
func (c *Client) SetNow(now time.Time) {
	c.now = func() time.Time { return now }
}
