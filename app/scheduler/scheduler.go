package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rankpulse/rankpulse/app/cfg"
	"github.com/rankpulse/rankpulse/app/config"
	"github.com/rankpulse/rankpulse/app/database"
	"github.com/rankpulse/rankpulse/app/pipeline"
	"github.com/rankpulse/rankpulse/app/tasks"
)

type SchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task tasks.TaskInterface) error
	RunNow(pullID int64) error
	RunInOneMinute(pullID int64) error
}

var _ SchedulerInterface = (*Scheduler)(nil)

// Scheduler owns the recurring pull timers and the worker pool executing
// tasks. Each scheduled pull is a one-shot timer that fires a PullTask,
// records bookkeeping, and re-arms itself. A pull that is already running
// when its timer fires is skipped rather than stacked.
type Scheduler struct {
	configCache *config.ConfigCache
	pipeline    *pipeline.Pipeline
	projects    database.ProjectRepository
	keywords    database.KeywordRepository
	pulls       database.PullRepository

	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan tasks.TaskInterface

	mu       sync.Mutex
	inFlight map[int64]bool
	timers   map[int64]*time.Timer

	now func() time.Time
}

func NewScheduler(configCache *config.ConfigCache, p *pipeline.Pipeline,
	projects database.ProjectRepository, keywords database.KeywordRepository,
	pulls database.PullRepository) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		pipeline:    p,
		projects:    projects,
		keywords:    keywords,
		pulls:       pulls,
		workerCount: cfg.Get().WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan tasks.TaskInterface, 100),
		inFlight:    make(map[int64]bool),
		timers:      make(map[int64]*time.Timer),
		now:         time.Now,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.bootstrap()
	}()
}

// Stop cancels the scheduler context and waits for the workers to drain.
// The task queue is left open: a retry goroutine sleeping through shutdown
// must be able to attempt its enqueue without hitting a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[int64]*time.Timer)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task tasks.TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RunNow triggers a one-shot execution of a scheduled pull immediately,
// independent of its recurring cadence.
func (s *Scheduler) RunNow(pullID int64) error {
	pull, err := s.pulls.GetPull(pullID)
	if err != nil {
		return fmt.Errorf("failed to get scheduled pull: %w", err)
	}
	if pull == nil {
		return fmt.Errorf("scheduled pull %d not found", pullID)
	}

	return s.firePull(pull.ID)
}

// RunInOneMinute arms an extra one-shot timer for a pull exactly one minute
// out. The recurring timer is untouched.
func (s *Scheduler) RunInOneMinute(pullID int64) error {
	pull, err := s.pulls.GetPull(pullID)
	if err != nil {
		return fmt.Errorf("failed to get scheduled pull: %w", err)
	}
	if pull == nil {
		return fmt.Errorf("scheduled pull %d not found", pullID)
	}

	time.AfterFunc(time.Minute, func() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		if err := s.firePull(pull.ID); err != nil {
			slog.Error("Delayed pull trigger failed", "pull_id", pull.ID, "error", err)
		}
	})

	slog.Info("Delayed pull scheduled", "pull_id", pull.ID, "delay", time.Minute)

	return nil
}

// bootstrap syncs project configs into the database, reconciles the
// scheduled pull records, and arms a timer per pull. Runs once at startup.
func (s *Scheduler) bootstrap() {
	for _, projectConfig := range s.configCache.GetConfigs() {
		task := tasks.NewSyncProjectConfigTask(projectConfig, s.projects, s.keywords)
		task.Start()
		if err := task.Execute(s.ctx); err != nil {
			slog.Error("Failed to sync project config", "project", projectConfig.Name, "error", err)
		}
	}

	if err := s.reconcilePulls(); err != nil {
		slog.Error("Failed to reconcile scheduled pulls", "error", err)
	}

	pulls, err := s.pulls.GetPulls()
	if err != nil {
		slog.Error("Failed to load scheduled pulls", "error", err)
		return
	}

	now := s.now()
	for _, pull := range pulls {
		nextPull := pull.NextPull

		// Overdue pulls are recomputed forward from now instead of firing
		// a burst of missed jobs at startup.
		if !nextPull.After(now) {
			nextPull = CalculateNextPull(pull.Frequency, now)
			if err := s.pulls.UpdateNextPull(pull.ID, nextPull); err != nil {
				slog.Error("Failed to roll overdue pull forward", "pull_id", pull.ID, "error", err)
				continue
			}
			slog.Info("Rolled overdue pull forward", "pull_id", pull.ID, "next_pull", nextPull)
		}

		s.armTimer(pull.ID, nextPull)
	}

	slog.Info("Scheduler started", "pulls", len(pulls), "workers", s.workerCount)
}

// reconcilePulls ensures one scheduled pull per project config with an
// enabled schedule. Existing pulls keep their cadence unless the configured
// frequency changed.
func (s *Scheduler) reconcilePulls() error {
	existing, err := s.pulls.GetPulls()
	if err != nil {
		return fmt.Errorf("failed to get scheduled pulls: %w", err)
	}

	byProject := make(map[int64]database.ScheduledPull)
	for _, pull := range existing {
		if pull.TagID == 0 {
			byProject[pull.ProjectID] = pull
		}
	}

	for _, projectConfig := range s.configCache.GetConfigs() {
		if !projectConfig.Schedule.Enabled {
			continue
		}

		project, err := s.projects.GetProjectByName(projectConfig.Name)
		if err != nil {
			return fmt.Errorf("failed to get project %q: %w", projectConfig.Name, err)
		}
		if project == nil {
			slog.Warn("Project config not synced, skipping schedule", "project", projectConfig.Name)
			continue
		}

		frequency := database.PullFrequency(projectConfig.Schedule.Frequency)

		if pull, ok := byProject[project.ID]; ok {
			if pull.Frequency == frequency {
				continue
			}
		}

		nextPull := CalculateNextPull(frequency, s.now())
		if _, err := s.pulls.UpsertPull(project.ID, 0, frequency, nextPull); err != nil {
			return fmt.Errorf("failed to upsert scheduled pull for %q: %w", projectConfig.Name, err)
		}

		slog.Info("Scheduled pull registered", "project", projectConfig.Name, "frequency", frequency, "next_pull", nextPull)
	}

	return nil
}

func (s *Scheduler) armTimer(pullID int64, at time.Time) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[pullID]; ok {
		timer.Stop()
	}

	s.timers[pullID] = time.AfterFunc(delay, func() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.firePull(pullID); err != nil {
			slog.Error("Scheduled pull failed to fire", "pull_id", pullID, "error", err)
			// Re-arm anyway so one bad fire does not kill the cadence.
			s.rearm(pullID)
		}
	})
}

// firePull enqueues the PullTask for a pull unless one is already running.
// Completion bookkeeping and re-arming happen in the task's callback.
func (s *Scheduler) firePull(pullID int64) error {
	s.mu.Lock()
	if s.inFlight[pullID] {
		s.mu.Unlock()
		slog.Warn("Pull already in flight, skipping", "pull_id", pullID)
		return nil
	}
	s.inFlight[pullID] = true
	s.mu.Unlock()

	pull, err := s.pulls.GetPull(pullID)
	if err != nil || pull == nil {
		s.clearInFlight(pullID)
		if err != nil {
			return fmt.Errorf("failed to get scheduled pull: %w", err)
		}
		return fmt.Errorf("scheduled pull %d not found", pullID)
	}

	project, err := s.projects.GetProject(pull.ProjectID)
	if err != nil || project == nil {
		s.clearInFlight(pullID)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		return fmt.Errorf("project %d not found", pull.ProjectID)
	}

	siteURL := ""
	if projectConfig, err := s.configCache.GetConfig(project.Name); err == nil {
		siteURL = projectConfig.GSCSiteURL
	}

	task := tasks.NewPullTask(project.Name, pull.ProjectID, pull.TagID, siteURL, s.pipeline,
		func(result *pipeline.Result, taskErr error) {
			s.completePull(pull.ID, pull.Frequency, taskErr)
		})

	if err := s.EnqueueTask(task); err != nil {
		s.clearInFlight(pullID)
		return fmt.Errorf("failed to enqueue pull task: %w", err)
	}

	return nil
}

// completePull records the run, recomputes next_pull, and re-arms.
func (s *Scheduler) completePull(pullID int64, frequency database.PullFrequency, taskErr error) {
	s.clearInFlight(pullID)

	now := s.now()
	nextPull := CalculateNextPull(frequency, now)

	if err := s.pulls.UpdatePullRun(pullID, now, nextPull); err != nil {
		slog.Error("Failed to record pull run", "pull_id", pullID, "error", err)
	}

	if taskErr != nil {
		slog.Error("Pull completed with error", "pull_id", pullID, "error", taskErr)
	}

	select {
	case <-s.ctx.Done():
		return
	default:
	}

	s.armTimer(pullID, nextPull)
}

func (s *Scheduler) rearm(pullID int64) {
	pull, err := s.pulls.GetPull(pullID)
	if err != nil || pull == nil {
		return
	}
	next := CalculateNextPull(pull.Frequency, s.now())
	if err := s.pulls.UpdateNextPull(pullID, next); err != nil {
		slog.Error("Failed to persist re-armed pull", "pull_id", pullID, "error", err)
	}
	s.armTimer(pullID, next)
}

func (s *Scheduler) clearInFlight(pullID int64) {
	s.mu.Lock()
	delete(s.inFlight, pullID)
	s.mu.Unlock()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task tasks.TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 15*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "project", task.GetProjectName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
