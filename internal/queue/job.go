// Package queue moves dispatch work onto SQS and consumes it in a worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/charter-notify/internal/dispatch"
)

// JobType names the business event a job carries.
type JobType string

const (
	JobBookingConfirmed JobType = "booking_confirmed"
	JobBookingCancelled JobType = "booking_cancelled"
	JobReminder         JobType = "reminder"
	JobCampaign         JobType = "campaign"
)

// Job is the queue payload. Exactly one of Booking or Campaign is set.
type Job struct {
	ID       string             `json:"id"`
	Type     JobType            `json:"type"`
	SiteID   string             `json:"site_id"`
	Booking  *dispatch.Booking  `json:"booking,omitempty"`
	Campaign *dispatch.Campaign `json:"campaign,omitempty"`
}

func (j Job) validate() error {
	if j.SiteID == "" {
		return errors.New("queue: job site id required")
	}
	switch j.Type {
	case JobBookingConfirmed, JobBookingCancelled, JobReminder:
		if j.Booking == nil {
			return fmt.Errorf("queue: %s job requires a booking", j.Type)
		}
	case JobCampaign:
		if j.Campaign == nil {
			return errors.New("queue: campaign job requires a campaign")
		}
	default:
		return fmt.Errorf("queue: unknown job type %q", j.Type)
	}
	return nil
}

type sender interface {
	Send(ctx context.Context, body string) error
}

// Publisher encodes jobs onto the queue.
type Publisher struct {
	queue sender
}

func NewPublisher(q sender) *Publisher {
	return &Publisher{queue: q}
}

// Enqueue validates and sends the job, assigning an id when missing.
func (p *Publisher) Enqueue(ctx context.Context, job Job) (string, error) {
	if p == nil || p.queue == nil {
		return "", errors.New("queue: publisher not configured")
	}
	if err := job.validate(); err != nil {
		return "", err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: encode job: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return "", err
	}
	return job.ID, nil
}
