package domain_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/zhirschtritt/userposts/internal/domain"
	"github.com/zhirschtritt/userposts/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingConsumer struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (c *recordingConsumer) Consume(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, e)
	return nil
}

func (c *recordingConsumer) Start(context.Context) {}
func (c *recordingConsumer) Stop()                 {}

func (c *recordingConsumer) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

// stubDirectory answers lookups from a fixed set of users, or fails every lookup with err.
type stubDirectory struct {
	mu    sync.Mutex
	users map[int64]domain.UserSnapshot
	err   error
	calls int
}

func (d *stubDirectory) Lookup(_ context.Context, id int64) (*domain.UserSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func ptr(s string) *string { return &s }
