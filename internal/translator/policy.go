package translator

import (
	"context"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/language"
	"horse.fit/polyglot/internal/render"
)

// Visibility is the translate affordance decision for one post and viewer.
type Visibility string

const (
	// VisibilityHidden shows no translate affordance.
	VisibilityHidden Visibility = "hidden"
	// VisibilityShowButton shows an active translate affordance.
	VisibilityShowButton Visibility = "show_button"
	// VisibilityShowButtonPromptLogin shows the affordance but clicking
	// prompts the guest to log in.
	VisibilityShowButtonPromptLogin Visibility = "show_button_prompt_login"
)

// Enqueuer schedules asynchronous detection work. *queue.Queue satisfies it.
type Enqueuer interface {
	EnqueueDetection(ctx context.Context, postUUID, reason string) error
}

// Policy decides whether a viewer sees the translate affordance on a
// post. Evaluating a post with no cached detection schedules detection as
// a side effect, so the affordance appears on a later refresh.
type Policy struct {
	registry *Registry
	enqueuer Enqueuer
	logger   zerolog.Logger
}

func NewPolicy(registry *Registry, enqueuer Enqueuer, logger zerolog.Logger) *Policy {
	return &Policy{registry: registry, enqueuer: enqueuer, logger: logger}
}

// Evaluate applies the decision ladder, first match wins. detection may
// be nil when no detection is cached.
func (p *Policy) Evaluate(ctx context.Context, settings Settings, viewer Viewer, post *db.PostRecord, detection *db.DetectionRecord) Visibility {
	if !settings.Enabled {
		return VisibilityHidden
	}

	viewerLocale := language.NormalizeCode(viewer.Locale)
	if viewerLocale == "" {
		viewerLocale = "en"
	}

	// Posts translated by another subsystem already cover some locales.
	for _, covered := range post.TranslatedLocales {
		if language.NormalizeCode(covered) == viewerLocale {
			return VisibilityHidden
		}
	}

	if settings.CategoryExcluded(post.CategoryID) {
		return VisibilityHidden
	}

	if settings.MaxPostLength > 0 {
		text := render.ExtractText(post.CookedBody)
		if utf8.RuneCountInString(text) > settings.MaxPostLength {
			return VisibilityHidden
		}
	}

	if !viewer.Authenticated && !settings.AllowGuests {
		return VisibilityShowButtonPromptLogin
	}

	if detection == nil || detection.PostRevision != post.Revision {
		if err := p.enqueuer.EnqueueDetection(ctx, post.PostUUID, "viewed"); err != nil {
			p.logger.Warn().Err(err).Str("post_uuid", post.PostUUID).Msg("scheduling detection")
		}
		return VisibilityHidden
	}

	provider, err := p.registry.Get(settings.Provider)
	if err != nil {
		p.logger.Warn().Err(err).Msg("visibility check with unknown provider")
		return VisibilityHidden
	}

	viewerMapped, ok := provider.ToProviderLocale(viewerLocale)
	if !ok {
		return VisibilityHidden
	}
	detectedMapped, ok := provider.ToProviderLocale(language.NormalizeCode(detection.DetectedLang))
	if ok && detectedMapped == viewerMapped {
		return VisibilityHidden
	}
	return VisibilityShowButton
}
