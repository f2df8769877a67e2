package translator

import (
	"context"
	"fmt"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/queue"
)

type stubProvider struct {
	name           string
	detectLang     string
	detectErr      error
	translateResp  *TranslateResponse
	translateErr   error
	detectCalls    int
	translateCalls int
	lastRequest    TranslateRequest
	locales        localeTable
}

func newStubProvider(name string) *stubProvider {
	return &stubProvider{name: name, locales: newLocaleTable(nil)}
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Detect(_ context.Context, _ string) (string, error) {
	s.detectCalls++
	if s.detectErr != nil {
		return "", s.detectErr
	}
	return s.detectLang, nil
}

func (s *stubProvider) Translate(_ context.Context, req TranslateRequest) (*TranslateResponse, error) {
	s.translateCalls++
	s.lastRequest = req
	if s.translateErr != nil {
		return nil, s.translateErr
	}
	if s.translateResp != nil {
		resp := *s.translateResp
		return &resp, nil
	}
	return &TranslateResponse{
		Text:         "translated: " + req.Text,
		DetectedLang: s.detectLang,
		TargetLang:   req.TargetLang,
		ProviderName: s.name,
	}, nil
}

func (s *stubProvider) ToProviderLocale(locale string) (string, bool) {
	return s.locales.toProvider(locale)
}

func (s *stubProvider) SupportedLocales() []string {
	return s.locales.list()
}

type stubStore struct {
	posts        map[string]*db.PostRecord
	detections   map[int64]*db.DetectionRecord
	translations map[string]*db.TranslationRecord

	upsertedDetections   []db.UpsertDetectionParams
	upsertedTranslations []db.UpsertTranslationParams
}

func newStubStore() *stubStore {
	return &stubStore{
		posts:        make(map[string]*db.PostRecord),
		detections:   make(map[int64]*db.DetectionRecord),
		translations: make(map[string]*db.TranslationRecord),
	}
}

func translationKey(postID int64, targetLang string) string {
	return fmt.Sprintf("%d/%s", postID, targetLang)
}

func (s *stubStore) GetPostByUUID(_ context.Context, postUUID string) (*db.PostRecord, error) {
	return s.posts[postUUID], nil
}

func (s *stubStore) GetDetection(_ context.Context, postID int64) (*db.DetectionRecord, error) {
	return s.detections[postID], nil
}

func (s *stubStore) UpsertDetection(_ context.Context, params db.UpsertDetectionParams) error {
	s.upsertedDetections = append(s.upsertedDetections, params)
	s.detections[params.PostID] = &db.DetectionRecord{
		PostID:       params.PostID,
		DetectedLang: params.DetectedLang,
		ProviderName: params.ProviderName,
		PostRevision: params.PostRevision,
	}
	return nil
}

func (s *stubStore) LookupTranslation(_ context.Context, postID int64, targetLang string) (*db.TranslationRecord, error) {
	return s.translations[translationKey(postID, targetLang)], nil
}

func (s *stubStore) UpsertTranslation(_ context.Context, params db.UpsertTranslationParams) error {
	s.upsertedTranslations = append(s.upsertedTranslations, params)
	s.translations[translationKey(params.PostID, params.TargetLang)] = &db.TranslationRecord{
		PostID:         params.PostID,
		TargetLang:     params.TargetLang,
		DetectedLang:   params.DetectedLang,
		TranslatedText: params.TranslatedText,
		ProviderName:   params.ProviderName,
		PostRevision:   params.PostRevision,
	}
	return nil
}

type stubPublisher struct {
	events []queue.TranslationChanged
}

func (s *stubPublisher) PublishTranslationChanged(_ context.Context, event queue.TranslationChanged) error {
	s.events = append(s.events, event)
	return nil
}

type stubEnqueuer struct {
	enqueued []string
}

func (s *stubEnqueuer) EnqueueDetection(_ context.Context, postUUID, _ string) error {
	s.enqueued = append(s.enqueued, postUUID)
	return nil
}

type stubLimiter struct {
	allowed bool
	calls   int
}

func (s *stubLimiter) Allow(_ context.Context, _ int64, _ int) (bool, error) {
	s.calls++
	return s.allowed, nil
}
