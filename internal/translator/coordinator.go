package translator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/langdetect"
	"horse.fit/polyglot/internal/locks"
	"horse.fit/polyglot/internal/queue"
	"horse.fit/polyglot/internal/render"
)

// DetectionStore is the persistence surface the coordinator needs.
// *db.Pool satisfies it.
type DetectionStore interface {
	GetPostByUUID(ctx context.Context, postUUID string) (*db.PostRecord, error)
	GetDetection(ctx context.Context, postID int64) (*db.DetectionRecord, error)
	UpsertDetection(ctx context.Context, params db.UpsertDetectionParams) error
}

// ChangePublisher announces translation state changes to subscribers.
// *queue.Queue satisfies it.
type ChangePublisher interface {
	PublishTranslationChanged(ctx context.Context, event queue.TranslationChanged) error
}

// DetectionCoordinator runs language detection for queued posts. At most
// one process detects a given post at a time; the redis lease makes the
// exclusion hold across the whole fleet, not just one worker.
type DetectionCoordinator struct {
	store     DetectionStore
	registry  *Registry
	locker    *locks.Locker
	publisher ChangePublisher
	logger    zerolog.Logger
	timeout   time.Duration
}

func NewDetectionCoordinator(store DetectionStore, registry *Registry, locker *locks.Locker, publisher ChangePublisher, logger zerolog.Logger, timeout time.Duration) *DetectionCoordinator {
	return &DetectionCoordinator{
		store:     store,
		registry:  registry,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

func detectionLockName(postUUID string) string {
	return "detect:" + postUUID
}

// ProcessDetection detects and records the language of one post. Posts
// that vanished, sit in an excluded category, carry too little text, or
// are already detected at the current revision are skipped without error.
// Provider failures are logged and swallowed so one flaky upstream cannot
// wedge the queue; the task simply gets re-enqueued on the next view.
func (c *DetectionCoordinator) ProcessDetection(ctx context.Context, settings Settings, postUUID string) error {
	if !settings.Enabled {
		c.logger.Debug().Str("post_uuid", postUUID).Msg("detection skipped, translation disabled")
		return nil
	}

	post, err := c.store.GetPostByUUID(ctx, postUUID)
	if err != nil {
		return fmt.Errorf("loading post %s: %w", postUUID, err)
	}
	if post == nil {
		c.logger.Debug().Str("post_uuid", postUUID).Msg("detection skipped, post gone")
		return nil
	}
	if settings.CategoryExcluded(post.CategoryID) {
		return nil
	}

	text := render.ExtractText(post.CookedBody)
	if !langdetect.HasDetectableText(text) {
		c.logger.Debug().Str("post_uuid", postUUID).Msg("detection skipped, not enough text")
		return nil
	}

	current, err := c.store.GetDetection(ctx, post.PostID)
	if err != nil {
		return fmt.Errorf("loading detection for post %d: %w", post.PostID, err)
	}
	if current != nil && current.PostRevision == post.Revision {
		return nil
	}

	lease, acquired, err := c.locker.Acquire(ctx, detectionLockName(postUUID))
	if err != nil {
		return fmt.Errorf("acquiring detection lease: %w", err)
	}
	if !acquired {
		c.logger.Debug().Str("post_uuid", postUUID).Msg("detection already in flight elsewhere")
		return nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn().Err(err).Str("post_uuid", postUUID).Msg("releasing detection lease")
		}
	}()

	// Another process may have finished between the check and the lease.
	current, err = c.store.GetDetection(ctx, post.PostID)
	if err != nil {
		return fmt.Errorf("reloading detection for post %d: %w", post.PostID, err)
	}
	if current != nil && current.PostRevision == post.Revision {
		return nil
	}

	provider, err := c.registry.Get(settings.Provider)
	if err != nil {
		c.logger.Warn().Err(err).Str("post_uuid", postUUID).Msg("detection skipped")
		return nil
	}

	detectCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	detected, err := provider.Detect(detectCtx, text)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("post_uuid", postUUID).
			Str("provider", provider.Name()).
			Msg("language detection failed")
		return nil
	}

	err = c.store.UpsertDetection(ctx, db.UpsertDetectionParams{
		PostID:       post.PostID,
		DetectedLang: detected,
		ProviderName: provider.Name(),
		PostRevision: post.Revision,
	})
	if err != nil {
		return fmt.Errorf("storing detection for post %d: %w", post.PostID, err)
	}

	c.logger.Info().
		Str("post_uuid", postUUID).
		Str("detected_lang", detected).
		Str("provider", provider.Name()).
		Msg("language detected")

	event := queue.TranslationChanged{PostUUID: postUUID, DetectedLang: detected}
	if err := c.publisher.PublishTranslationChanged(ctx, event); err != nil {
		c.logger.Warn().Err(err).Str("post_uuid", postUUID).Msg("publishing detection event")
	}
	return nil
}
