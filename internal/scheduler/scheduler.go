package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/metrics"
	"github.com/adpulse/go-expiry-service/internal/repository"
	apperr "github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// JobRunner abstracts the delivery job so the sweep can be tested without
// a directory or relay.
type JobRunner interface {
	Run(ctx context.Context, req domain.RunJobRequest) (*domain.JobResult, error)
}

// ExpirySweeper periodically walks the profiles and stages every reminder
// that has come due into the delivery queue. The sweep never sends; the
// queue stays a viewable, cancelable list until an operator runs the job.
// Enqueue deduplication makes repeat sweeps idempotent.
type ExpirySweeper struct {
	cron     *cron.Cron
	schedule string
	profiles *repository.ProfileRepository
	queue    *repository.QueueRepository
	job      JobRunner
	log      *logger.Logger
	now      func() time.Time
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(schedule string, profiles *repository.ProfileRepository, queue *repository.QueueRepository, job JobRunner, log *logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		cron:     cron.New(),
		schedule: schedule,
		profiles: profiles,
		queue:    queue,
		job:      job,
		log:      log,
		now:      time.Now,
	}
}

// Start registers the sweep with cron and begins ticking.
func (s *ExpirySweeper) Start() error {
	s.log.Info("Starting expiry sweeper", "schedule", s.schedule)
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the sweeper.
func (s *ExpirySweeper) Stop() {
	s.log.Info("Stopping expiry sweeper")
	s.cron.Stop()
}

// Sweep runs one staging pass over all profiles. A paused queue suspends
// the whole sweep; paused profiles are skipped; dry-run profiles log their
// plan without staging anything.
func (s *ExpirySweeper) Sweep() {
	if s.queue.Paused() {
		s.log.Info("Delivery queue paused, skipping sweep")
		return
	}

	ctx := context.Background()
	for _, p := range s.profiles.List() {
		if p.Status == domain.ProfileStatusPaused {
			continue
		}

		preview, err := s.job.Run(ctx, domain.RunJobRequest{ProfileID: p.ID, Mode: domain.JobModePreview})
		if err != nil {
			if apperr.Is(err, apperr.CodeJobAlreadyRunning) {
				s.log.Warn("Job already running, sweep deferred", "profile", p.Name)
				return
			}
			s.log.Error("Sweep failed for profile", "error", err, "profile", p.Name)
			continue
		}

		if p.Status == domain.ProfileStatusDryRun {
			s.log.Info("Dry-run profile plan", "profile", p.Name, "due", len(preview.PreviewData))
			continue
		}

		s.stage(p, preview.PreviewData)
	}
	s.updateQueueGauge()
}

// stage enqueues one pending task per due target. Targets already staged
// for the same profile and offset are left untouched.
func (s *ExpirySweeper) stage(p domain.NotificationProfile, rows []domain.JobPreviewRow) {
	scheduledFor := s.scheduledFor(p).UTC().Format(time.RFC3339)
	for _, row := range rows {
		item := domain.QueueItem{
			Recipient:    row.Email,
			ScheduledFor: scheduledFor,
			ProfileID:    p.ID,
			ProfileName:  p.Name,
			Offset:       row.DaysLeft,
			Status:       domain.QueueItemStatusPending,
		}
		if err := s.queue.Enqueue(item); err != nil {
			s.log.Error("Failed to stage delivery task", "error", err, "recipient", row.Email)
		}
	}
	if len(rows) > 0 {
		s.log.Info("Staged due reminders", "profile", p.Name, "due", len(rows))
	}
}

// scheduledFor resolves a profile's preferred delivery time to a concrete
// timestamp today. No preference, or a malformed one, means now.
func (s *ExpirySweeper) scheduledFor(p domain.NotificationProfile) time.Time {
	now := s.now()
	if p.PreferredTime == "" {
		return now
	}
	t, err := time.Parse("15:04", p.PreferredTime)
	if err != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}

func (s *ExpirySweeper) updateQueueGauge() {
	metrics.QueueSize.Set(float64(len(s.queue.State().Items)))
}
