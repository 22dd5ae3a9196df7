package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one unit of scheduled work. It must return once ctx is done.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron specs. A job never overlaps with itself: a tick that fires
// while the previous run is still going is skipped.
type Scheduler struct {
	cronEngine *cron.Cron
	logger     *logrus.Entry
	baseCtx    context.Context
	cancel     context.CancelFunc
	jobs       []registeredJob

	mu sync.Mutex // orders Start's engine start against Stop
}

type registeredJob struct {
	name    string
	timeout time.Duration
	run     func()
}

func NewScheduler(logger *logrus.Entry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// AddJob registers job under spec ("@every 2m", "*/10 * * * *", ...). Each run gets its
// own context bounded by timeout.
func (s *Scheduler) AddJob(name, spec string, timeout time.Duration, job Job) error {
	rj := registeredJob{name: name, timeout: timeout}
	rj.run = func() { s.execute(rj, job) }

	if _, err := s.cronEngine.AddJob(spec, cron.FuncJob(rj.run)); err != nil {
		return fmt.Errorf("could not add %s job with spec %q: %w", name, spec, err)
	}
	s.jobs = append(s.jobs, rj)
	return nil
}

// Start starts the cron engine. With runAtStart every job also runs once right away,
// sequentially, before the first tick. A Stop during that initial run cancels it, and
// the engine is then never started.
func (s *Scheduler) Start(runAtStart bool) {
	s.logger.Info("Starting scheduler...")
	if runAtStart {
		for _, rj := range s.jobs {
			if s.baseCtx.Err() != nil {
				break
			}
			rj.run()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx.Err() != nil {
		s.logger.Info("Scheduler stopped during the initial run, cron engine not started.")
		return
	}
	s.cronEngine.Start()
	s.logger.Infof("Scheduler started with %d jobs.", len(s.jobs))
}

// RunOnce executes every registered job a single time without starting the cron engine.
func (s *Scheduler) RunOnce() {
	for _, rj := range s.jobs {
		rj.run()
	}
}

func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	s.mu.Lock()
	s.cancel()                 // Running jobs see their context cancelled.
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	s.mu.Unlock()
	<-ctx.Done() // Wait for graceful shutdown
	s.logger.Info("Scheduler gracefully stopped.")
}

func (s *Scheduler) execute(rj registeredJob, job Job) {
	ctx := s.baseCtx
	if rj.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rj.timeout)
		defer cancel()
	}

	entry := s.logger.WithField("job", rj.name)
	startedAt := time.Now()
	entry.Debug("Job triggered")
	if err := job(ctx); err != nil {
		entry.WithError(err).Errorf("Job failed after %s", time.Since(startedAt).Round(time.Millisecond))
		return
	}
	entry.Debugf("Job finished in %s", time.Since(startedAt).Round(time.Millisecond))
}
