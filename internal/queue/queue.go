// Package queue carries asynchronous detection tasks and change
// notifications over redis. Delivery is at-least-once: consumers must be
// idempotent.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"horse.fit/polyglot/internal/payloadschema"
)

const (
	detectionListKey = "polyglot:queue:detections"
	changedChannel   = "polyglot:events:translation-changed"

	// DetectionTaskVersion pins the payload schema consumed by the worker.
	DetectionTaskVersion = "v1"
)

// TranslationChanged is published whenever a post's cached translation state
// moves, so live viewers can refresh the affordance.
type TranslationChanged struct {
	PostUUID     string `json:"post_uuid"`
	DetectedLang string `json:"detected_lang,omitempty"`
	Cleared      bool   `json:"cleared,omitempty"`
}

type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// NewClient dials redis from a connection URL.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// EnqueueDetection pushes one detection task. Fire-and-forget callers treat
// errors as log-only.
func (q *Queue) EnqueueDetection(ctx context.Context, postUUID, reason string) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("queue is not initialized")
	}

	payload, err := json.Marshal(payloadschema.DetectionTask{
		PayloadVersion: DetectionTaskVersion,
		PostUUID:       postUUID,
		Reason:         reason,
	})
	if err != nil {
		return fmt.Errorf("marshal detection task: %w", err)
	}

	if err := q.client.RPush(ctx, detectionListKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue detection task: %w", err)
	}
	return nil
}

// DequeueDetection blocks up to timeout for the next validated task. Returns
// (nil, nil) when the wait times out; invalid payloads are dropped with an
// error so the worker can log and continue.
func (q *Queue) DequeueDetection(ctx context.Context, timeout time.Duration) (*payloadschema.DetectionTask, error) {
	if q == nil || q.client == nil {
		return nil, fmt.Errorf("queue is not initialized")
	}

	values, err := q.client.BLPop(ctx, timeout, detectionListKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue detection task: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply length %d", len(values))
	}

	task, err := payloadschema.ValidateDetectionTaskPayload(json.RawMessage(values[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid detection task payload: %w", err)
	}
	return task, nil
}

// PublishTranslationChanged emits a state-change notification.
func (q *Queue) PublishTranslationChanged(ctx context.Context, event TranslationChanged) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("queue is not initialized")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	if err := q.client.Publish(ctx, changedChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}
