package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how often the check-in page refreshes the queue.
const DefaultPollInterval = 30 * time.Second

// QueueFetcher loads a patient's queue status. *Client implements it.
type QueueFetcher interface {
	QueueStatus(ctx context.Context, appointmentID string) (*QueueStatus, error)
}

// QueuePoller refreshes the queue status of one selected appointment on an
// interval. Selecting another appointment or stopping discards responses
// still in flight for the previous selection.
type QueuePoller struct {
	fetcher  QueueFetcher
	interval time.Duration
	onUpdate func(appointmentID string, status *QueueStatus, err error)

	generation atomic.Uint64
	mu         sync.Mutex
	cancel     context.CancelFunc
	deliver    sync.Mutex
}

// NewQueuePoller creates a stopped poller. A zero interval uses DefaultPollInterval.
func NewQueuePoller(fetcher QueueFetcher, interval time.Duration, onUpdate func(appointmentID string, status *QueueStatus, err error)) *QueuePoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &QueuePoller{fetcher: fetcher, interval: interval, onUpdate: onUpdate}
}

// Select starts polling appointmentID right away and then on every tick,
// replacing any previous selection. Polling ends when ctx is done.
func (p *QueuePoller) Select(ctx context.Context, appointmentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	gen := p.generation.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(ctx, gen, appointmentID)
}

// Stop ends polling. Responses that arrive afterwards are dropped.
func (p *QueuePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation.Add(1)
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *QueuePoller) run(ctx context.Context, gen uint64, appointmentID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		status, err := p.fetcher.QueueStatus(ctx, appointmentID)
		p.publish(gen, appointmentID, status, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *QueuePoller) publish(gen uint64, appointmentID string, status *QueueStatus, err error) {
	p.deliver.Lock()
	defer p.deliver.Unlock()
	if p.generation.Load() != gen {
		return
	}
	p.onUpdate(appointmentID, status, err)
}
