// Package scheduler runs the back-office jobs on cron schedules and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var ErrUnknownJob = errors.New("unknown job")

type JobFunc func(ctx context.Context) error

type job struct {
	spec string
	fn   JobFunc
	mu   sync.Mutex
}

// Runner owns a UTC cron and a named job table. Scheduled runs skip a tick
// while the previous run of the same job is still going; panics are recovered.
type Runner struct {
	cron   *cron.Cron
	jobs   map[string]*job
	logger *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(logger *logrus.Logger) *Runner {
	cl := cron.PrintfLogger(logger)
	return &Runner{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// Register adds a job. An empty spec registers it for on-demand runs only.
func (r *Runner) Register(name, spec string, fn JobFunc) error {
	if _, dup := r.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	j := &job{spec: spec, fn: fn}
	if spec != "" {
		if _, err := r.cron.AddFunc(spec, func() { r.execute(r.baseContext(), name, j) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
		}
	}
	r.jobs[name] = j
	r.logger.WithFields(logrus.Fields{"job": name, "spec": spec}).Debug("job registered")
	return nil
}

func (r *Runner) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.cron.Start()
	r.logger.WithField("jobs", r.Names()).Info("scheduler started")
}

// Stop halts the cron, cancels running jobs and waits for them to return.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.cron.Stop().Done()
	r.logger.Info("scheduler stopped")
}

// RunNow executes a job synchronously, waiting for any in-flight run of it.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	j, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return r.execute(ctx, name, j)
}

func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for n := range r.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Next reports the next scheduled time of each cron job.
func (r *Runner) Next() map[string]time.Time {
	out := make(map[string]time.Time)
	for name, j := range r.jobs {
		if j.spec == "" {
			continue
		}
		sched, err := cron.ParseStandard(j.spec)
		if err != nil {
			continue
		}
		out[name] = sched.Next(time.Now().UTC())
	}
	return out
}

func (r *Runner) baseContext() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

func (r *Runner) execute(ctx context.Context, name string, j *job) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	log := r.logger.WithField("job", name)
	start := time.Now()
	log.Info("job started")
	err := j.fn(ctx)
	log = log.WithField("elapsed", time.Since(start).Round(time.Millisecond))
	if err != nil {
		log.WithError(err).Error("job failed")
		return err
	}
	log.Info("job finished")
	return nil
}
