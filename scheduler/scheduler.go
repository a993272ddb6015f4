package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"listingdesk/logging"
	"listingdesk/models"
	"listingdesk/storage"
)

// Scheduler publishes paid listings whose scheduled publish date has
// arrived. It runs on a cron expression and can be triggered manually.
type Scheduler struct {
	gw      storage.Gateway
	expr    string
	cron    *cron.Cron
	trigger chan struct{}
	stopCh  chan struct{}
	now     func() time.Time
}

func New(gw storage.Gateway, expr string) *Scheduler {
	return &Scheduler{
		gw:      gw,
		expr:    expr,
		cron:    cron.New(),
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.expr == "" {
		logging.Infof("No publish schedule configured, sweeps run only when triggered")
	} else {
		logging.Infof("Starting publish scheduler with cron: %s", s.expr)
		_, err := s.cron.AddFunc(s.expr, func() { s.run(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	}

	go func() {
		for {
			select {
			case <-s.trigger:
				s.run(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Trigger queues a sweep without waiting for the next cron tick.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	close(s.stopCh)
}

func (s *Scheduler) run(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		logging.Errorf("Publish sweep error: %v", err)
		return
	}
	if n > 0 {
		logging.Infof("Publish sweep: %d listings published", n)
	}
}

// Sweep publishes every draft or pending property whose details are paid,
// scheduled, and due. It returns the number of properties published.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	rows, err := s.gw.Select(ctx, storage.CollectionDetails, storage.Filter{
		storage.Eq("publish_option", models.PublishScheduled),
		storage.Eq("payment_status", models.PaymentStatusCompleted),
	})
	if err != nil {
		return 0, fmt.Errorf("load scheduled details: %w", err)
	}
	details, err := storage.DecodeAll[models.PropertyDetail](rows)
	if err != nil {
		return 0, err
	}

	due := Due(details, s.now())
	if len(due) == 0 {
		return 0, nil
	}

	published, err := s.gw.Update(ctx, storage.CollectionProperties,
		storage.Filter{
			storage.In("id", due...),
			storage.In("status", models.PropertyStatusDraft, models.PropertyStatusPending),
		},
		storage.Record{"status": models.PropertyStatusPublished})
	if err != nil {
		return 0, fmt.Errorf("publish due listings: %w", err)
	}
	return len(published), nil
}

// Due returns the property ids whose publish date is at or before now.
// Details without a date never publish on their own.
func Due(details []models.PropertyDetail, now time.Time) []string {
	var ids []string
	for _, d := range details {
		if d.PublishOption != models.PublishScheduled || d.PaymentStatus != models.PaymentStatusCompleted {
			continue
		}
		if d.PublishDate == nil || d.PublishDate.After(now) {
			continue
		}
		ids = append(ids, d.PropertyID)
	}
	return ids
}
