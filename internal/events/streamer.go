// Package events streams job lifecycle events to Kinesis. The stream is the
// platform's audit trail; failures are logged and never block the state
// transition that produced them.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"prereno-backend/internal/storage"

	"github.com/aws/aws-sdk-go-v2/service/kinesis"
)

type Streamer struct {
	client     *kinesis.Client
	streamName string
}

type JobEvent struct {
	JobID            string         `json:"job_id"`
	EventType        string         `json:"event_type"` // created, booked, offer_accepted, offer_countered, payment_confirmed, ready_for_review, completed, cancelled
	Timestamp        time.Time      `json:"timestamp"`
	Status           storage.Status `json:"status"`
	Category         string         `json:"category"`
	City             string         `json:"city"`
	PostalCode       string         `json:"postal_code"`
	ClientID         string         `json:"client_id"`
	ClientPriceCents int64          `json:"client_price_cents"`
	ProviderNetCents int64          `json:"provider_net_cents"`
}

func NewStreamer(client *kinesis.Client, streamName string) *Streamer {
	return &Streamer{
		client:     client,
		streamName: streamName,
	}
}

func (s *Streamer) StreamJobEvent(eventType string, job *storage.Job) {
	if s == nil || s.client == nil {
		return // event streaming not enabled
	}

	event := JobEvent{
		JobID:            job.ID,
		EventType:        eventType,
		Timestamp:        time.Now().UTC(),
		Status:           job.Status,
		Category:         job.Category,
		City:             job.City,
		PostalCode:       job.PostalCode,
		ClientID:         job.ClientID,
		ClientPriceCents: job.ClientPriceCents,
		ProviderNetCents: job.ProviderNetCents,
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal job event", "job_id", job.ID, "error", err)
		return
	}

	_, err = s.client.PutRecord(context.TODO(), &kinesis.PutRecordInput{
		StreamName:   &s.streamName,
		Data:         data,
		PartitionKey: &job.ID,
	})

	if err != nil {
		slog.Error("Failed to stream job event", "job_id", job.ID, "event_type", eventType, "error", err)
	} else {
		slog.Debug("Streamed job event", "job_id", job.ID, "event_type", eventType)
	}
}
