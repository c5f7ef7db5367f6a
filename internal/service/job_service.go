package service

import (
	"context"
	"sync"
	"time"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/metrics"
	"github.com/adpulse/go-expiry-service/internal/repository"
	apperr "github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// DirectoryFactory builds a directory client for the given credentials.
// The job resolves the active environment at run time, so the client
// cannot be fixed at construction.
type DirectoryFactory func(cfg domain.GraphConfig) DirectoryClient

// MailerFactory builds a mailer bound to the given relay configuration.
type MailerFactory func(cfg domain.SMTPConfig) Mailer

// JobService runs delivery jobs. At most one job runs per process; a start
// while another job is in flight is refused, never queued.
type JobService struct {
	profiles  *repository.ProfileRepository
	envs      *repository.EnvironmentRepository
	history   *repository.HistoryRepository
	queue     *repository.QueueRepository
	expiry    *ExpiryService
	cadence   *CadenceService
	scope     *ScopeService
	email     *EmailService
	directory DirectoryFactory
	mailer    MailerFactory
	log       *logger.Logger

	delay time.Duration
	sleep func(time.Duration)
	now   func() time.Time

	mu      sync.Mutex
	running bool
}

// JobOption configures a JobService.
type JobOption func(*JobService)

// WithJobSleep replaces the inter-message pause for tests.
func WithJobSleep(fn func(time.Duration)) JobOption {
	return func(s *JobService) { s.sleep = fn }
}

// WithJobClock replaces the wall clock for tests.
func WithJobClock(fn func() time.Time) JobOption {
	return func(s *JobService) { s.now = fn }
}

// NewJobService creates a new job service
func NewJobService(
	profiles *repository.ProfileRepository,
	envs *repository.EnvironmentRepository,
	history *repository.HistoryRepository,
	queue *repository.QueueRepository,
	expiry *ExpiryService,
	cadence *CadenceService,
	scope *ScopeService,
	email *EmailService,
	directory DirectoryFactory,
	mailer MailerFactory,
	delay time.Duration,
	log *logger.Logger,
	opts ...JobOption,
) *JobService {
	s := &JobService{
		profiles:  profiles,
		envs:      envs,
		history:   history,
		queue:     queue,
		expiry:    expiry,
		cadence:   cadence,
		scope:     scope,
		email:     email,
		directory: directory,
		mailer:    mailer,
		delay:     delay,
		sleep:     time.Sleep,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether a job is currently in flight.
func (s *JobService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *JobService) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *JobService) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

type plannedSend struct {
	user   domain.DirectoryUser
	offset int
}

// Run executes one delivery job. Preview renders the plan without sending
// or recording anything; test routes every message to the caller's address;
// live sends to the real recipients and records each outcome.
func (s *JobService) Run(ctx context.Context, req domain.RunJobRequest) (*domain.JobResult, error) {
	if !s.tryStart() {
		metrics.JobRejections.Inc()
		return nil, apperr.NewJobAlreadyRunningError()
	}
	defer s.finish()

	start := s.now()
	defer func() {
		metrics.JobDuration.WithLabelValues(string(req.Mode)).Observe(s.now().Sub(start).Seconds())
	}()

	profile, err := s.resolveProfile(req)
	if err != nil {
		return nil, err
	}
	if req.Mode == domain.JobModeTest && req.TestEmail == "" {
		return nil, apperr.NewValidationError("testEmail is required in test mode", nil)
	}

	env := s.envs.GetActive()
	client := s.directory(env.Graph)

	targets, err := s.scope.ResolveDirectory(ctx, profile.AssignedGroups, client)
	if err != nil {
		return nil, err
	}

	plan := s.buildPlan(profile, targets, env.Graph.DefaultExpiryDays)
	s.log.Info("Delivery job planned",
		"profile", profile.Name, "mode", string(req.Mode),
		"targets", len(targets), "due", len(plan))

	if req.Mode == domain.JobModePreview {
		return s.previewResult(plan), nil
	}
	return s.deliver(profile, plan, env.SMTP, req), nil
}

func (s *JobService) resolveProfile(req domain.RunJobRequest) (domain.NotificationProfile, error) {
	if req.Profile != nil {
		return *req.Profile, nil
	}
	if req.ProfileID == "" {
		return domain.NotificationProfile{}, apperr.NewValidationError("profileId or profile is required", nil)
	}
	return s.profiles.Get(req.ProfileID)
}

// buildPlan normalizes every target and keeps those due under the cadence.
// Principals without a usable timestamp are dropped with a warning rather
// than failing the whole job.
func (s *JobService) buildPlan(profile domain.NotificationProfile, targets []domain.DirectoryUser, expiryDays int) []plannedSend {
	now := s.now()
	sentLog := s.history.SentLog()

	var plan []plannedSend
	for _, t := range targets {
		rec, err := s.expiry.Normalize(t, expiryDays, now)
		if err != nil {
			s.log.Warn("Skipping principal without usable timestamp", "user", t.UserPrincipalName)
			continue
		}
		s.expiry.Apply(&t, rec)
		due, offset := s.cadence.IsDue(rec, profile.Cadence.DaysBefore, sentLog, profile.ID, t.UserPrincipalName)
		if !due {
			continue
		}
		plan = append(plan, plannedSend{user: t, offset: offset})
	}
	return plan
}

func (s *JobService) previewResult(plan []plannedSend) *domain.JobResult {
	rows := make([]domain.JobPreviewRow, 0, len(plan))
	for _, p := range plan {
		expiry := ""
		if p.user.PasswordExpiryDate != nil {
			expiry = *p.user.PasswordExpiryDate
		}
		rows = append(rows, domain.JobPreviewRow{
			User:       p.user.DisplayName,
			Email:      p.user.UserPrincipalName,
			DaysLeft:   p.user.PasswordExpiresInDays,
			ExpiryDate: expiry,
			Action:     "send",
		})
	}
	return &domain.JobResult{Success: true, PreviewData: rows}
}

// deliver sends the planned messages in order. Failures are recorded and
// the job moves on; the inter-message pause applies after failures too so
// a flapping relay is not hammered. Pausing the queue mid-run skips the
// remaining targets without marking them failed.
func (s *JobService) deliver(profile domain.NotificationProfile, plan []plannedSend, smtpCfg domain.SMTPConfig, req domain.RunJobRequest) *domain.JobResult {
	mailer := s.mailer(smtpCfg)
	result := &domain.JobResult{}

	for i, p := range plan {
		if s.queue.Paused() {
			result.Skipped += len(plan) - i
			s.log.Warn("Delivery paused, skipping remaining targets", "remaining", len(plan)-i)
			break
		}

		to, cc := s.email.Recipients(profile.Recipients, &p.user)
		if req.Mode == domain.JobModeTest {
			to, cc = req.TestEmail, nil
		}
		if to == "" {
			result.Skipped++
			s.log.Warn("No recipient for target, skipping", "user", p.user.UserPrincipalName)
			continue
		}

		msg := OutboundMessage{
			To:          to,
			CC:          cc,
			Subject:     s.email.RenderTemplate(profile.SubjectLine, &p.user),
			Body:        s.email.RenderTemplate(profile.EmailTemplate, &p.user),
			ReadReceipt: profile.Recipients.ReadReceipt,
		}

		entry := domain.AuditEntry{
			Timestamp:   s.now().UTC().Format(time.RFC3339),
			Recipient:   to,
			ProfileID:   profile.ID,
			ProfileName: profile.Name,
			Offset:      p.offset,
		}
		if err := mailer.Send(msg); err != nil {
			result.Failed++
			entry.Status = domain.AuditStatusFailed
			entry.Error = err.Error()
			metrics.NotificationsSent.WithLabelValues(profile.Name, "failed").Inc()
			s.log.Error("Failed to send reminder", "error", err, "recipient", to)
		} else {
			result.Sent++
			entry.Status = domain.AuditStatusSent
			metrics.NotificationsSent.WithLabelValues(profile.Name, "sent").Inc()
		}
		if err := s.history.Append(entry); err != nil {
			s.log.Error("Failed to record delivery", "error", err, "recipient", to)
		}

		s.sleep(s.delay)
	}

	result.Success = result.Failed == 0
	return result
}
