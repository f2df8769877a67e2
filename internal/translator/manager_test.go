package translator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
)

type managerFixture struct {
	manager   *Manager
	store     *stubStore
	provider  *stubProvider
	limiter   *stubLimiter
	publisher *stubPublisher
}

func newManagerFixture() *managerFixture {
	store := newStubStore()
	provider := newStubProvider("local")
	provider.detectLang = "fr"
	registry := NewRegistry()
	registry.Register(provider)
	limiter := &stubLimiter{allowed: true}
	publisher := &stubPublisher{}
	manager := NewManager(store, registry, limiter, publisher, zerolog.Nop(), 20*time.Second)
	return &managerFixture{
		manager:   manager,
		store:     store,
		provider:  provider,
		limiter:   limiter,
		publisher: publisher,
	}
}

func (f *managerFixture) addPost(post *db.PostRecord) *db.PostRecord {
	f.store.posts[post.PostUUID] = post
	return post
}

func frenchPost() *db.PostRecord {
	return &db.PostRecord{
		PostID:     42,
		PostUUID:   "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		CategoryID: 3,
		CookedBody: "<p>Bonjour tout le monde, ceci est un message de test.</p>",
		Revision:   1,
	}
}

func memberViewer() Viewer {
	return Viewer{UserID: 7, Authenticated: true, Locale: "en"}
}

func TestTranslateFeatureDisabled(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	settings := enabledSettings()
	settings.Enabled = false

	_, err := f.manager.Translate(context.Background(), settings, memberViewer(), post.PostUUID)
	if !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected ErrFeatureDisabled, got %v", err)
	}
}

func TestTranslateGuestRequiresAuth(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	settings := enabledSettings()
	settings.AllowGuests = false

	_, err := f.manager.Translate(context.Background(), settings, Viewer{Locale: "en"}, post.PostUUID)
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if f.provider.translateCalls != 0 {
		t.Fatalf("provider must not be called for unauthenticated viewers")
	}
}

func TestTranslateRateLimited(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	f.limiter.allowed = false

	_, err := f.manager.Translate(context.Background(), enabledSettings(), memberViewer(), post.PostUUID)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if f.provider.translateCalls != 0 {
		t.Fatalf("provider must not be called past the rate limit")
	}
}

func TestTranslateTrustedSkipsRateLimit(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	f.limiter.allowed = false

	viewer := memberViewer()
	viewer.Trusted = true
	if _, err := f.manager.Translate(context.Background(), enabledSettings(), viewer, post.PostUUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.limiter.calls != 0 {
		t.Fatalf("limiter must not be consulted for trusted viewers")
	}
}

func TestTranslatePostNotFound(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()

	_, err := f.manager.Translate(context.Background(), enabledSettings(), memberViewer(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestTranslateExcludedCategoryForbidden(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	settings := enabledSettings()
	settings.ExcludedCategories = []int64{post.CategoryID}

	_, err := f.manager.Translate(context.Background(), settings, memberViewer(), post.PostUUID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestTranslateContentTooLong(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := frenchPost()
	post.CookedBody = "<p>" + strings.Repeat("mot ", 100) + "</p>"
	f.addPost(post)
	settings := enabledSettings()
	settings.MaxPostLength = 50

	_, err := f.manager.Translate(context.Background(), settings, memberViewer(), post.PostUUID)
	if !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
}

func TestTranslateUnknownProvider(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	settings := enabledSettings()
	settings.Provider = "bing"

	_, err := f.manager.Translate(context.Background(), settings, memberViewer(), post.PostUUID)
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestTranslateServesProviderResult(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())

	result, err := f.manager.Translate(context.Background(), enabledSettings(), memberViewer(), post.PostUUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DetectedLang != "fr" {
		t.Fatalf("detected lang = %q, want fr", result.DetectedLang)
	}
	if result.TargetLang != "en" {
		t.Fatalf("target lang = %q, want en", result.TargetLang)
	}
	if result.Text == "" {
		t.Fatalf("expected non-empty translation")
	}
	if result.Cached {
		t.Fatalf("first translation must not be marked cached")
	}
	if len(f.store.upsertedTranslations) != 1 {
		t.Fatalf("expected one stored translation, got %d", len(f.store.upsertedTranslations))
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("expected one change event, got %d", len(f.publisher.events))
	}
}

func TestTranslateServesCachedResult(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	f.store.translations[translationKey(post.PostID, "en")] = &db.TranslationRecord{
		PostID:         post.PostID,
		TargetLang:     "en",
		DetectedLang:   "fr",
		TranslatedText: "Hello everyone, this is a test message.",
		ProviderName:   "local",
		PostRevision:   post.Revision,
	}

	result, err := f.manager.Translate(context.Background(), enabledSettings(), memberViewer(), post.PostUUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Cached {
		t.Fatalf("expected cached result")
	}
	if f.provider.translateCalls != 0 {
		t.Fatalf("provider must not be called on a cache hit")
	}
}

func TestTranslateIgnoresStaleCache(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := frenchPost()
	post.Revision = 2
	f.addPost(post)
	f.store.translations[translationKey(post.PostID, "en")] = &db.TranslationRecord{
		PostID:         post.PostID,
		TargetLang:     "en",
		DetectedLang:   "fr",
		TranslatedText: "old translation",
		ProviderName:   "local",
		PostRevision:   1,
	}

	result, err := f.manager.Translate(context.Background(), enabledSettings(), memberViewer(), post.PostUUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Fatalf("stale cache row must not be served")
	}
	if f.provider.translateCalls != 1 {
		t.Fatalf("provider calls = %d, want 1", f.provider.translateCalls)
	}
	stored := f.store.translations[translationKey(post.PostID, "en")]
	if stored.PostRevision != post.Revision {
		t.Fatalf("stored revision = %d, want %d", stored.PostRevision, post.Revision)
	}
}

func TestTranslateFillsMissingDetection(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())

	if _, err := f.manager.Translate(context.Background(), enabledSettings(), memberViewer(), post.PostUUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	detection := f.store.detections[post.PostID]
	if detection == nil || detection.DetectedLang != "fr" {
		t.Fatalf("detection = %+v, want fr at current revision", detection)
	}
	if detection.PostRevision != post.Revision {
		t.Fatalf("detection revision = %d, want %d", detection.PostRevision, post.Revision)
	}
}

func TestTranslateUsesCachedDetectionAsSource(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	f.store.detections[post.PostID] = &db.DetectionRecord{
		PostID:       post.PostID,
		DetectedLang: "fr",
		ProviderName: "local",
		PostRevision: post.Revision,
	}

	if _, err := f.manager.Translate(context.Background(), enabledSettings(), memberViewer(), post.PostUUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.provider.lastRequest.SourceLang != "fr" {
		t.Fatalf("source lang = %q, want fr", f.provider.lastRequest.SourceLang)
	}
}

func TestTranslateSurfacesProviderError(t *testing.T) {
	t.Parallel()

	f := newManagerFixture()
	post := f.addPost(frenchPost())
	f.provider.translateErr = &ProviderError{
		Provider: "local",
		Kind:     ProviderUnavailable,
		Message:  "connection refused",
	}

	_, err := f.manager.Translate(context.Background(), enabledSettings(), memberViewer(), post.PostUUID)
	providerErr, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if providerErr.Kind != ProviderUnavailable {
		t.Fatalf("kind = %s, want unavailable", providerErr.Kind)
	}
	if len(f.store.upsertedTranslations) != 0 {
		t.Fatalf("nothing must be stored on provider failure")
	}
}
