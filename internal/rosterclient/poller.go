package rosterclient

import (
	"context"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
)

const DefaultPollInterval = 10 * time.Second

// Poller emits a poll event for the active scope on every tick. It covers
// events missed while the push session was down.
type Poller struct {
	Interval time.Duration
	Scope    func() int
	Handle   EventHandler
	// Ensure, when set, runs before each poll event so an abandoned push
	// session can be brought back.
	Ensure func(communityID int)
}

// Run blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scope := p.Scope()
			if scope <= 0 {
				continue
			}
			if p.Ensure != nil {
				p.Ensure(scope)
			}
			p.Handle(attendance.PollEvent(scope))
		}
	}
}
