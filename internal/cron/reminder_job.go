package cron

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/restaurant-reservation/internal/logger"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
)

const (
	reminderJobName       = "reservation_reminder"
	defaultReminderWindow = time.Hour
	defaultSendTimeout    = 10 * time.Second
	reminderTimeLayout    = "03:04 PM"
)

// ReminderStore is the persistence the reminder job needs.
type ReminderStore interface {
	DueReminders(ctx context.Context, from, to time.Time) ([]model.ReminderTarget, error)
	MarkReminded(ctx context.Context, id uint64, at time.Time) (bool, error)
}

// ReminderSender hands a reminder to the notification collaborator.
type ReminderSender interface {
	SendReminder(ctx context.Context, msg queue.ReminderRequested) error
}

type reminderRecorder interface {
	RecordReminder(result string)
}

type ReminderJobParams struct {
	Store       ReminderStore
	Sender      ReminderSender
	Logger      *logger.Logger
	Now         func() time.Time
	Location    *time.Location
	Window      time.Duration
	SendTimeout time.Duration
	Concurrency int
	Recorder    reminderRecorder
}

// ReminderJob dispatches one reminder per ACTIVE reservation starting
// within the next window.  reminded_at is set only after a successful send,
// so failed sends are retried on a later tick.
type ReminderJob struct {
	store       ReminderStore
	sender      ReminderSender
	logg        *logger.Logger
	now         func() time.Time
	loc         *time.Location
	window      time.Duration
	sendTimeout time.Duration
	concurrency int
	recorder    reminderRecorder
}

func NewReminderJob(p ReminderJobParams) (*ReminderJob, error) {
	if p.Store == nil || p.Sender == nil {
		return nil, fmt.Errorf("reminder job requires a store and a sender")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.Window <= 0 {
		p.Window = defaultReminderWindow
	}
	if p.SendTimeout <= 0 {
		p.SendTimeout = defaultSendTimeout
	}
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	return &ReminderJob{
		store:       p.Store,
		sender:      p.Sender,
		logg:        p.Logger,
		now:         p.Now,
		loc:         p.Location,
		window:      p.Window,
		sendTimeout: p.SendTimeout,
		concurrency: p.Concurrency,
		recorder:    p.Recorder,
	}, nil
}

func (j *ReminderJob) Name() string { return reminderJobName }

func (j *ReminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	due, err := j.store.DueReminders(ctx, now, now.Add(j.window))
	if err != nil {
		return fmt.Errorf("load due reminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, target := range due {
		g.Go(func() error {
			if j.remind(gctx, target) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"due":    len(due),
		"sent":   sent.Load(),
		"failed": failed.Load(),
	}), "reminder dispatch finished")
	return nil
}

// remind sends one reminder and marks it.  Errors are logged against the
// reservation and never abort the batch.
func (j *ReminderJob) remind(ctx context.Context, t model.ReminderTarget) bool {
	rctx := j.logg.WithFields(ctx, map[string]any{
		"reservation_id": t.ReservationID,
		"restaurant_id":  t.RestaurantID,
	})

	sendCtx, cancel := context.WithTimeout(ctx, j.sendTimeout)
	err := j.sender.SendReminder(sendCtx, queue.ReminderRequested{
		ReservationID: t.ReservationID,
		To:            t.UserEmail,
		Name:          t.UserName,
		Restaurant:    t.RestaurantName,
		Time:          t.StartAt.In(j.loc).Format(reminderTimeLayout),
		StartAt:       t.StartAt.UTC().Format(time.RFC3339),
	})
	cancel()
	if err != nil {
		j.logg.Error(rctx, "reminder send failed", err)
		j.record("failed")
		return false
	}

	marked, err := j.store.MarkReminded(context.WithoutCancel(ctx), t.ReservationID, j.now().UTC())
	if err != nil {
		j.logg.Error(rctx, "mark reminded failed", err)
		j.record("unmarked")
		return false
	}
	if !marked {
		j.logg.Warn(rctx, "reservation already reminded by another sweep")
	}
	j.record("sent")
	return true
}

func (j *ReminderJob) record(result string) {
	if j.recorder != nil {
		j.recorder.RecordReminder(result)
	}
}
