package cache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronLogger routes scheduler messages into slog. cron reports every
// wake-up through Info, so those go to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// Sweepable is anything that can purge its expired entries
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically purges expired entries from registered caches
type Sweeper struct {
	cron    *cron.Cron
	logger  *slog.Logger
	targets map[string]Sweepable
}

// NewSweeper creates a sweeper; overlapping runs are skipped
func NewSweeper(logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	cronLog := cronLogger{logger: logger}
	return &Sweeper{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
		),
		logger:  logger,
		targets: make(map[string]Sweepable),
	}
}

// Register adds a named cache to every sweep
func (s *Sweeper) Register(name string, target Sweepable) {
	s.targets[name] = target
}

// Start schedules sweeps at the given interval
func (s *Sweeper) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("cache: sweep interval must be positive, got %s", interval)
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("cache: failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("cache sweeper started", "interval", interval, "caches", len(s.targets))
	return nil
}

// RunOnce sweeps every registered cache and returns the total purged
func (s *Sweeper) RunOnce() int {
	total := 0
	for name, target := range s.targets {
		removed := target.Sweep()
		if removed > 0 {
			s.logger.Debug("cache sweep", "cache", name, "expired", removed)
		}
		total += removed
	}
	return total
}

// Stop halts scheduling and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
