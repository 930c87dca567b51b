package reconcile

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  *Sweeper
	schedule string
	timeout  time.Duration
	log      *zap.Logger
}

// NewScheduler runs the sweeper on a cron spec such as "@every 5m". A run
// still in progress when the next one is due causes that one to be skipped.
func NewScheduler(sweeper *Sweeper, schedule string, timeout time.Duration, log *zap.Logger) *Scheduler {
	cl := cronLogger{l: log.Sugar()}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	return &Scheduler{cron: c, sweeper: sweeper, schedule: schedule, timeout: timeout, log: log}
}

// Start registers the sweep and starts the scheduler. An empty schedule
// disables reconciliation.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.log.Info("reconciliation sweep disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.log.Info("scheduled reconciliation sweep", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		s.log.Error("reconciliation sweep failed", zap.Error(err))
	}
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
