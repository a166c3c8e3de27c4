package stub

import (
	"context"
	"errors"
	"sync"

	"vsr-power-lab/internal/solana"
)

// WSClient implements solana.WSClient with notifications pushed by tests.
type WSClient struct {
	mu     sync.Mutex
	subs   []chan solana.ProgramNotification
	closed bool
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{}
}

// SubscribeProgram registers a subscriber channel.
func (c *WSClient) SubscribeProgram(_ context.Context, _ string, _ *solana.ProgramAccountsOpts) (<-chan solana.ProgramNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("client closed")
	}
	ch := make(chan solana.ProgramNotification, 64)
	c.subs = append(c.subs, ch)
	return ch, nil
}

// Push delivers n to every subscriber.
func (c *WSClient) Push(n solana.ProgramNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		ch <- n
	}
}

// Subscribers returns the number of active subscriptions.
func (c *WSClient) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close closes all subscriber channels.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	return nil
}
