package translator

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/language"
	"horse.fit/polyglot/internal/queue"
	"horse.fit/polyglot/internal/render"
)

// Viewer identifies the requester on the translate path. UserID is zero
// for guests.
type Viewer struct {
	UserID        int64
	Authenticated bool
	Trusted       bool
	Locale        string
}

// Result is the outcome of one translate request.
type Result struct {
	Text         string
	DetectedLang string
	TargetLang   string
	ProviderName string
	Cached       bool
	LatencyMs    int64
}

// TranslationStore is the persistence surface the manager needs.
// *db.Pool satisfies it.
type TranslationStore interface {
	DetectionStore
	LookupTranslation(ctx context.Context, postID int64, targetLang string) (*db.TranslationRecord, error)
	UpsertTranslation(ctx context.Context, params db.UpsertTranslationParams) error
}

// Limiter is the per-user rate limit check. *RateLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, userID int64, limit int) (bool, error)
}

// Manager serves explicit translate requests: it checks preconditions in
// a fixed order, serves from the cache when the cached row matches the
// post's current revision, and otherwise calls the configured provider
// and stores the result.
type Manager struct {
	store     TranslationStore
	registry  *Registry
	limiter   Limiter
	publisher ChangePublisher
	logger    zerolog.Logger
	timeout   time.Duration
}

func NewManager(store TranslationStore, registry *Registry, limiter Limiter, publisher ChangePublisher, logger zerolog.Logger, timeout time.Duration) *Manager {
	return &Manager{
		store:     store,
		registry:  registry,
		limiter:   limiter,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

// Translate runs the synchronous translate path for one post on behalf
// of viewer. Precondition failures return the sentinel errors from this
// package; provider failures return *ProviderError.
func (m *Manager) Translate(ctx context.Context, settings Settings, viewer Viewer, postUUID string) (*Result, error) {
	if !settings.Enabled {
		return nil, ErrFeatureDisabled
	}
	if !viewer.Authenticated && !settings.AllowGuests {
		return nil, ErrAuthRequired
	}
	if viewer.Authenticated && !viewer.Trusted {
		allowed, err := m.limiter.Allow(ctx, viewer.UserID, settings.RateLimitPerMinute)
		if err != nil {
			return nil, fmt.Errorf("checking rate limit: %w", err)
		}
		if !allowed {
			return nil, ErrRateLimited
		}
	}

	post, err := m.store.GetPostByUUID(ctx, postUUID)
	if err != nil {
		return nil, fmt.Errorf("loading post %s: %w", postUUID, err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if settings.CategoryExcluded(post.CategoryID) {
		return nil, ErrForbidden
	}

	text := render.ExtractText(post.CookedBody)
	if settings.MaxPostLength > 0 && utf8.RuneCountInString(text) > settings.MaxPostLength {
		return nil, ErrContentTooLong
	}

	target := language.NormalizeCode(viewer.Locale)
	if target == "" {
		target = "en"
	}

	cached, err := m.store.LookupTranslation(ctx, post.PostID, target)
	if err != nil {
		return nil, fmt.Errorf("looking up cached translation: %w", err)
	}
	if cached != nil && cached.PostRevision == post.Revision {
		return &Result{
			Text:         cached.TranslatedText,
			DetectedLang: cached.DetectedLang,
			TargetLang:   target,
			ProviderName: cached.ProviderName,
			Cached:       true,
		}, nil
	}

	provider, err := m.registry.Get(settings.Provider)
	if err != nil {
		return nil, err
	}

	source := ""
	detection, err := m.store.GetDetection(ctx, post.PostID)
	if err != nil {
		return nil, fmt.Errorf("loading detection: %w", err)
	}
	if detection != nil && detection.PostRevision == post.Revision {
		source = detection.DetectedLang
	}

	translateCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := provider.Translate(translateCtx, TranslateRequest{
		Text:       text,
		SourceLang: source,
		TargetLang: target,
	})
	if err != nil {
		return nil, err
	}

	latency := int(resp.LatencyMs)
	err = m.store.UpsertTranslation(ctx, db.UpsertTranslationParams{
		PostID:         post.PostID,
		TargetLang:     target,
		DetectedLang:   resp.DetectedLang,
		TranslatedText: resp.Text,
		ProviderName:   resp.ProviderName,
		LatencyMS:      &latency,
		PostRevision:   post.Revision,
	})
	if err != nil {
		return nil, fmt.Errorf("storing translation: %w", err)
	}

	// A translate call that had to detect on the fly fills the detection
	// cache too, sparing a later queued detection.
	if source == "" && resp.DetectedLang != "" {
		err = m.store.UpsertDetection(ctx, db.UpsertDetectionParams{
			PostID:       post.PostID,
			DetectedLang: resp.DetectedLang,
			ProviderName: resp.ProviderName,
			PostRevision: post.Revision,
		})
		if err != nil {
			return nil, fmt.Errorf("storing detection: %w", err)
		}
	}

	event := queue.TranslationChanged{PostUUID: postUUID, DetectedLang: resp.DetectedLang}
	if err := m.publisher.PublishTranslationChanged(ctx, event); err != nil {
		m.logger.Warn().Err(err).Str("post_uuid", postUUID).Msg("publishing translation event")
	}

	m.logger.Info().
		Str("post_uuid", postUUID).
		Str("target_lang", target).
		Str("provider", resp.ProviderName).
		Int64("latency_ms", resp.LatencyMs).
		Msg("post translated")

	return &Result{
		Text:         resp.Text,
		DetectedLang: resp.DetectedLang,
		TargetLang:   target,
		ProviderName: resp.ProviderName,
		LatencyMs:    resp.LatencyMs,
	}, nil
}
