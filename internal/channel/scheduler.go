package channel

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/activeobjects-uk/nanoclaw/internal/logging"
)

// minInterval is the finest granularity cron.Every supports.
const minInterval = time.Second

// CronScheduler runs recurring jobs on robfig/cron. Runs of the same job
// never overlap and a panicking job is logged instead of crashing the
// process.
type CronScheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	logger  *slog.Logger
}

// NewCronScheduler creates a scheduler. A nil logger uses the global one.
func NewCronScheduler(logger *slog.Logger) *CronScheduler {
	if logger == nil {
		logger = logging.WithComponent("scheduler")
	}
	cl := cronLogger{logger: logger}
	return &CronScheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			// Recover sits inside SkipIfStillRunning so a panicking run still
			// hands back the skip token.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		logger: logger,
	}
}

// Every schedules fn at a constant interval. cron.Every only supports whole
// seconds, so the interval is clamped to one second and rounded down.
func (s *CronScheduler) Every(interval time.Duration, fn func()) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("failed to schedule: nil job")
	}
	interval = s.effectiveInterval(interval)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))
	if !s.running {
		s.cron.Start()
		s.running = true
	}

	s.logger.Debug("job scheduled", "entry", id, "interval", interval, "next_run", s.cron.Entry(id).Next)

	var once sync.Once
	return func() {
		once.Do(func() { s.cron.Remove(id) })
	}, nil
}

// effectiveInterval returns the interval cron will actually run at,
// warning when it differs from the requested one.
func (s *CronScheduler) effectiveInterval(interval time.Duration) time.Duration {
	switch {
	case interval < minInterval:
		s.logger.Warn("poll interval below cron granularity, clamping", "interval", interval, "effective", minInterval)
		return minInterval
	case interval%minInterval != 0:
		effective := interval.Truncate(minInterval)
		s.logger.Warn("poll interval is not a whole number of seconds, rounding down", "interval", interval, "effective", effective)
		return effective
	}
	return interval
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *CronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Debug("scheduler stopped")
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
