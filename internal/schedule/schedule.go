// Package schedule repeats a job on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sud-bedwatch/bedwatch/internal/logger"
)

// Scheduler runs one job on a standard 5-field cron expression
type Scheduler struct {
	expr     string
	sched    cron.Schedule
	location *time.Location
	log      *logger.Logger
}

// New validates expr (minute hour dom month dow, or a descriptor such as
// "@hourly") and returns a scheduler evaluating it in location.
func New(expr string, location *time.Location, log *logger.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if location == nil {
		location = time.Local
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Scheduler{
		expr:     expr,
		sched:    sched,
		location: location,
		log:      log,
	}, nil
}

// LoadLocation resolves a timezone name; empty means local time
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Next returns the first activation after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t.In(s.location))
}

// Run calls job on every tick until ctx is cancelled. A tick that arrives
// while the previous job is still running is skipped. Run returns once the
// running job, if any, has finished.
func (s *Scheduler) Run(ctx context.Context, job func(context.Context)) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger{s.log}),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)

	c.Schedule(s.sched, cron.FuncJob(func() {
		job(ctx)
	}))

	s.log.Info("Scheduler started", logger.Fields{
		"cron":     s.expr,
		"timezone": s.location.String(),
		"next_run": s.Next(time.Now()).Format(time.RFC3339),
	})

	c.Start()
	<-ctx.Done()

	s.log.Info("Scheduler stopping", logger.Fields{"reason": ctx.Err().Error()})
	<-c.Stop().Done()

	return nil
}

// cronLogger adapts Logger to cron's logging interface
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, pairs(keysAndValues), err)
}

func pairs(keysAndValues []interface{}) logger.Fields {
	fields := make(logger.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
