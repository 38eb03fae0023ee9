package logger

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"orion/internal/transport"
)

// TelegramConfig configures the optional mirror sink that forwards
// high-severity console lines to a chat.
type TelegramConfig struct {
	Enabled    bool
	ChatID     int64
	ThreadID   int
	MinLevel   string // least severe level still mirrored; default WARN
	RatePerSec int
}

// Mirror pushes rendered lines to a chat through a bounded queue. The log
// path is never blocked: over-rate or over-queue lines are dropped.
type Mirror struct {
	sender  transport.Sender
	target  transport.ChatTarget
	min     Level
	limiter *rate.Limiter

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewMirror(cfg TelegramConfig, sender transport.Sender) *Mirror {
	min := LevelWarn
	if cfg.MinLevel != "" {
		min = ParseLevel(cfg.MinLevel)
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Mirror{
		sender:  sender,
		target:  transport.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID},
		min:     min,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		queue:   make(chan string, 64),
	}
}

func (m *Mirror) Start() {
	m.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.worker(ctx)
		}()
	})
}

func (m *Mirror) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
}

func (m *Mirror) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-m.queue:
			if m.sender == nil || m.target.ChatID == 0 {
				continue
			}
			_ = m.sender.SendText(ctx, m.target, line, &transport.SendOptions{DisablePreview: true})
		}
	}
}

func (m *Mirror) publish(level Level, line string) {
	if level > m.min {
		return
	}
	if !m.limiter.Allow() {
		return
	}
	select {
	case m.queue <- line:
	default:
		// queue full, drop
	}
}
