// Package maintenance schedules periodic upkeep of the log database:
// WAL checkpointing and query-planner statistics refresh. The work itself
// lives in logdb; this package only owns the cron trigger.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"orion/internal/logger"
)

// Store is the upkeep side of the log database. *logdb.Store satisfies it.
type Store interface {
	Maintain(ctx context.Context) error
}

type Config struct {
	Enabled bool
	Spec    string // cron spec or descriptor, default "@hourly"
}

func (c Config) withDefaults() Config {
	if c.Spec == "" {
		c.Spec = "@hourly"
	}
	return c
}

// Service runs Store.Maintain on a cron schedule.
type Service struct {
	mu     sync.Mutex
	log    logger.Facade
	store  Store
	parser cron.Parser

	c    *cron.Cron
	spec string
}

func New(store Store, log logger.Facade) *Service {
	return &Service{
		store: store,
		log:   log,
		// SecondOptional allows both 5-field and 6-field (with seconds) specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Apply starts, retunes or stops the schedule according to cfg.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked(ctx)
		return
	}
	if s.c != nil && s.spec == cfg.Spec {
		return
	}
	s.stopLocked(ctx)
	s.startLocked(ctx, cfg)
}

func (s *Service) startLocked(ctx context.Context, cfg Config) {
	sched, err := s.parser.Parse(cfg.Spec)
	if err != nil {
		s.log.Warn(ctx, "maintenance spec rejected: "+err.Error())
		return
	}

	c := cron.New(cron.WithParser(s.parser))
	c.Schedule(sched, cron.FuncJob(s.run))
	c.Start()

	s.c = c
	s.spec = cfg.Spec
	s.log.Info(ctx, "maintenance scheduled: "+cfg.Spec)
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	if err := s.store.Maintain(ctx); err != nil {
		s.log.Exception(ctx, "log db maintenance failed", err)
		return
	}
	s.log.Debug(ctx, "log db maintenance done in "+time.Since(start).Round(time.Millisecond).String())
}

// Stop halts the schedule, waiting for an in-flight run up to ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.c == nil {
		return
	}
	c := s.c
	s.c = nil
	s.spec = ""

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
}
