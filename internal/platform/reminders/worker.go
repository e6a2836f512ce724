// Package reminders runs the periodic job that sends appointment reminder
// messages and marks appointments as reminded.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/admin"
	"github.com/clinicore/clinicore/internal/domain/messaging"
	"github.com/clinicore/clinicore/internal/domain/scheduling"
	"github.com/clinicore/clinicore/internal/platform/db"
)

type appointmentSource interface {
	ListDueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*scheduling.Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

type messageSender interface {
	Send(ctx context.Context, in messaging.SendInput) (*messaging.Message, error)
	Resend(ctx context.Context, id uuid.UUID) (*messaging.Message, error)
	LatestFailed(ctx context.Context, kind, key, value string) (*messaging.Message, error)
}

type orgLister interface {
	List(ctx context.Context) ([]*admin.Organization, error)
}

type userDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*admin.User, error)
}

type Config struct {
	// Interval between scans.
	Interval time.Duration
	// Lead is how far ahead of the appointment the reminder goes out.
	Lead time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.Lead <= 0 {
		c.Lead = 24 * time.Hour
	}
	return c
}

type Worker struct {
	pool         *pgxpool.Pool
	orgs         orgLister
	appointments appointmentSource
	users        userDirectory
	messages     messageSender
	cfg          Config
	log          zerolog.Logger
	scheduler    *gocron.Scheduler
}

func NewWorker(pool *pgxpool.Pool, orgs orgLister, appointments appointmentSource,
	users userDirectory, messages messageSender, cfg Config, log zerolog.Logger) *Worker {
	return &Worker{
		pool:         pool,
		orgs:         orgs,
		appointments: appointments,
		users:        users,
		messages:     messages,
		cfg:          cfg.withDefaults(),
		log:          log.With().Str("component", "reminders").Logger(),
	}
}

// Start schedules the periodic scan. It returns immediately; the scheduler
// runs in its own goroutine until Stop is called.
func (w *Worker) Start() error {
	w.scheduler = gocron.NewScheduler(time.Local)
	if _, err := w.scheduler.Every(int(w.cfg.Interval.Minutes())).Minutes().Do(w.runOnce); err != nil {
		return err
	}
	w.scheduler.StartAsync()
	w.log.Info().Dur("interval", w.cfg.Interval).Dur("lead", w.cfg.Lead).Msg("reminder worker started")
	return nil
}

func (w *Worker) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}

func (w *Worker) runOnce() {
	if err := w.Run(context.Background()); err != nil {
		w.log.Error().Err(err).Msg("reminder scan failed")
	}
}

// Run performs one scan across all active organizations.
func (w *Worker) Run(ctx context.Context) error {
	orgs, err := w.orgs.List(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, org := range orgs {
		if !org.Active {
			continue
		}
		if err := w.runOrg(ctx, org.Slug, now); err != nil {
			w.log.Error().Err(err).Str("org", org.Slug).Msg("reminder scan failed for org")
		}
	}
	return nil
}

// runOrg scans a single org schema. Failed sends stay unmarked so the next
// scan retries them.
func (w *Worker) runOrg(ctx context.Context, slug string, now time.Time) error {
	orgCtx, release, err := db.WithOrgConn(ctx, w.pool, slug)
	if err != nil {
		return err
	}
	defer release()

	due, err := w.appointments.ListDueForReminder(orgCtx, now, w.cfg.Lead)
	if err != nil {
		return err
	}
	for _, appt := range due {
		if err := w.remind(orgCtx, appt, now); err != nil {
			w.log.Error().Err(err).
				Str("org", slug).
				Str("appointment_id", appt.ID.String()).
				Msg("reminder not sent")
		}
	}
	return nil
}

func (w *Worker) remind(ctx context.Context, appt *scheduling.Appointment, now time.Time) error {
	// A reminder that failed to deliver on an earlier scan is resent on
	// its existing row rather than minting a new message per attempt.
	prev, err := w.messages.LatestFailed(ctx, messaging.KindAppointmentReminder,
		"appointment_id", appt.ID.String())
	if err != nil {
		return err
	}

	var m *messaging.Message
	if prev != nil {
		m, err = w.messages.Resend(ctx, prev.ID)
	} else {
		dentist, derr := w.users.GetByID(ctx, appt.DentistID)
		if derr != nil {
			return fmt.Errorf("dentist lookup: %w", derr)
		}
		m, err = w.messages.Send(ctx, messaging.SendInput{
			PatientID: appt.PatientID,
			Kind:      messaging.KindAppointmentReminder,
			Data: map[string]string{
				"date":         appt.StartsAt.Format("02/01/2006"),
				"time":         appt.StartsAt.Format("15:04"),
				"dentist_name": dentist.FullName,
			},
			Metadata: map[string]string{"appointment_id": appt.ID.String()},
		})
	}
	if err != nil {
		return err
	}
	if m.Status != messaging.StatusSent {
		w.log.Warn().
			Str("appointment_id", appt.ID.String()).
			Str("message_id", m.ID.String()).
			Msg("reminder message failed, will retry next scan")
		return nil
	}
	return w.appointments.MarkReminderSent(ctx, appt.ID, now)
}
