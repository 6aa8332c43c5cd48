package couchdb

import (
	"context"
	"time"
)

// CheckStatus checks that we can talk to CouchDB, and returns the latency or
// an error if it is not the case.
func (c *Client) CheckStatus(ctx context.Context) (time.Duration, error) {
	before := time.Now()
	if err := c.makeRequest(ctx, "GET", "_up", nil, nil); err != nil {
		return 0, err
	}
	return time.Since(before), nil
}
