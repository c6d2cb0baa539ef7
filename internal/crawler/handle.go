package crawler

import (
	"context"
	"time"

	"cryptocrawl/models"
)

// Handle tracks one crawl running in the background.
type Handle struct {
	done chan struct{}
	err  error
}

// Wait blocks until the crawl finishes and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Done exposes completion for select loops.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start launches Crawl in the background and returns immediately.
func (c *Crawler) Start(ctx context.Context, msgType models.MessageType, market models.MarketType, symbols []string, duration time.Duration) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = c.Crawl(ctx, msgType, market, symbols, duration)
	}()
	return h
}
