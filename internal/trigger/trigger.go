// Package trigger runs the check cycle on a cron schedule.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Config controls when the job fires.
type Config struct {
	Spec         string         // cron expression, seconds field optional
	Location     *time.Location // zone the expression is evaluated in
	AllowOverlap bool           // start a run even if the previous one is still going
	RunAtStart   bool           // fire once immediately on Run
}

// Trigger fires a job on a cron schedule.
type Trigger struct {
	cfg      Config
	schedule cron.Schedule
	job      func(ctx context.Context)
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	stopped bool
	wrapped cron.Job
	runs    sync.WaitGroup // startup and Fire runs
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates the cron expression and wraps job. Unless AllowOverlap is
// set, a firing is skipped while the previous run is still in progress.
func New(cfg Config, job func(ctx context.Context), logger *slog.Logger) (*Trigger, error) {
	sched, err := parser.Parse(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", cfg.Spec, err)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	t := &Trigger{
		cfg:      cfg,
		schedule: sched,
		job:      job,
		logger:   logger,
		ctx:      context.Background(),
	}

	cl := cronLogger{logger}
	wrappers := []cron.JobWrapper{cron.Recover(cl)}
	if !cfg.AllowOverlap {
		wrappers = append(wrappers, cron.SkipIfStillRunning(cl))
	}
	t.wrapped = cron.NewChain(wrappers...).Then(cron.FuncJob(func() { t.job(t.runContext()) }))
	return t, nil
}

// Next returns the next firing time after now.
func (t *Trigger) Next(now time.Time) time.Time {
	return t.schedule.Next(now.In(t.cfg.Location))
}

// Fire runs the job once in the background under the same overlap policy
// as scheduled runs. Run waits for it on shutdown. Fire is a no-op once Run
// has begun stopping.
func (t *Trigger) Fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		t.logger.Debug("Trigger stopped, ignoring fire")
		return
	}
	t.spawn()
}

// spawn starts a tracked run. Callers hold t.mu.
func (t *Trigger) spawn() {
	t.runs.Add(1)
	go func() {
		defer t.runs.Done()
		t.wrapped.Run()
	}()
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// in-flight runs, scheduled or fired, to finish. Jobs receive ctx.
func (t *Trigger) Run(ctx context.Context) {
	c := cron.New(cron.WithLocation(t.cfg.Location), cron.WithLogger(cronLogger{t.logger}))
	c.Schedule(t.schedule, t.wrapped)

	t.mu.Lock()
	t.ctx = ctx
	if t.cfg.RunAtStart {
		t.spawn()
	}
	t.mu.Unlock()
	c.Start()
	t.logger.Info("Trigger started",
		"spec", t.cfg.Spec,
		"tz", t.cfg.Location.String(),
		"allow_overlap", t.cfg.AllowOverlap,
		"next", t.Next(time.Now()))

	<-ctx.Done()
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	<-c.Stop().Done()
	t.runs.Wait()
	t.logger.Info("Trigger stopped")
}

func (t *Trigger) runContext() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctx
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
