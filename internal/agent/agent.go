// Package agent runs the collection loop: wait for the next interval
// boundary, collect a snapshot, send it, repeat until shut down.
//
// Cycles run strictly one after another on the goroutine that called Run, so
// at most one collection and one report are ever in flight. Failures are
// contained to the cycle they happen in.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/Dicklesworthstone/agent_monitor/internal/model"
	"github.com/Dicklesworthstone/agent_monitor/internal/report"
	"github.com/Dicklesworthstone/agent_monitor/internal/sampler"
	"github.com/Dicklesworthstone/agent_monitor/internal/schedule"
)

// Backoff is the pause after an unexpected error before scheduling resumes.
const Backoff = 10 * time.Second

var ErrAlreadyRunning = errors.New("agent is already running")

type Collector interface {
	Collect(ctx context.Context) (model.Snapshot, error)
}

type Reporter interface {
	Report(ctx context.Context, snap model.Snapshot) error
}

// UnexpectedError wraps any error or panic that is neither a collection nor a
// delivery failure.
type UnexpectedError struct {
	State State
	Err   error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error while %s: %v", e.State, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

type Agent struct {
	collector Collector
	reporter  Reporter
	scheduler schedule.Scheduler
	logger    logrus.FieldLogger
	backoff   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	running *abool.AtomicBool
	state   stateBox

	// last boundary a cycle was started for
	last time.Time
}

func New(collector Collector, reporter Reporter, scheduler schedule.Scheduler, logger logrus.FieldLogger) *Agent {
	return &Agent{
		collector: collector,
		reporter:  reporter,
		scheduler: scheduler,
		logger:    logger,
		backoff:   Backoff,
		now:       time.Now,
		sleep:     sleepCtx,
		newID:     uuid.NewString,
		running:   abool.New(),
	}
}

// State reports what the loop is currently doing. Safe for concurrent use.
func (a *Agent) State() State { return a.state.Load() }

// Run loops until ctx is cancelled and then returns nil. Only one Run may be
// active per Agent; a second concurrent call returns ErrAlreadyRunning.
func (a *Agent) Run(ctx context.Context) error {
	if !a.running.SetToIf(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.UnSet()

	for ctx.Err() == nil {
		err := a.cycle(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		a.logger.WithError(err).Errorf("unexpected error, resuming in %s", a.backoff)
		a.setState(Waiting)
		if a.sleep(ctx, a.backoff) != nil {
			break
		}
	}

	a.setState(Stopped)
	a.logger.Info("agent stopped")
	return nil
}

// cycle runs one Waiting -> Collecting -> Sending pass. Collection and
// delivery failures are logged here and end the cycle normally; anything else
// is returned as *UnexpectedError.
func (a *Agent) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &UnexpectedError{State: a.State(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	a.setState(Waiting)
	now := a.now()
	next := a.scheduler.NextAfter(now, a.last)
	wait := next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	a.logger.Debugf("next collection in %s", wait.Round(time.Millisecond))
	if a.sleep(ctx, wait) != nil {
		return nil
	}
	a.last = next

	id := a.newID()
	log := a.logger.WithField("cycle", id)

	a.setState(Collecting)
	snap, err := a.collector.Collect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		var collErr *sampler.CollectionError
		if errors.As(err, &collErr) {
			log.WithError(err).Error("metric collection failed, nothing sent this cycle")
			return nil
		}
		return &UnexpectedError{State: Collecting, Err: err}
	}

	a.setState(Sending)
	err = a.reporter.Report(report.WithRequestID(ctx, id), snap)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown while sending, metrics dropped")
			return nil
		}
		var delErr *report.DeliveryError
		if errors.As(err, &delErr) {
			if delErr.StatusCode != 0 {
				log = log.WithField("status", delErr.StatusCode)
			}
			log.WithError(err).Error("sending metrics failed")
			return nil
		}
		return &UnexpectedError{State: Sending, Err: err}
	}

	log.Info("metrics sent")
	return nil
}

func (a *Agent) setState(s State) {
	a.state.Store(s)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
