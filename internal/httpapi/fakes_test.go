package httpapi

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/queue"
	"horse.fit/polyglot/internal/translator"
)

type fakeAuthStore struct {
	sessions           map[string]*db.AuthSession
	usersByUsername    map[string]*db.AuthUser
	usersByID          map[int64]*db.AuthUser
	createSessionID    string
	createSessionCalls int
	deleteSessionCalls []string
	getSessionCalls    int
	touchSessionCalls  int
	setLastLoginCalls  int
	setLangCalls       []string
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		sessions:        map[string]*db.AuthSession{},
		usersByUsername: map[string]*db.AuthUser{},
		usersByID:       map[int64]*db.AuthUser{},
	}
}

func (s *fakeAuthStore) GetSession(_ context.Context, sessionID string) (*db.AuthSession, error) {
	s.getSessionCalls++
	row, exists := s.sessions[sessionID]
	if !exists {
		return nil, db.ErrNoRows
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakeAuthStore) DeleteSession(_ context.Context, sessionID string) error {
	s.deleteSessionCalls = append(s.deleteSessionCalls, sessionID)
	delete(s.sessions, sessionID)
	return nil
}

func (s *fakeAuthStore) TouchSession(_ context.Context, sessionID string, seenAt time.Time) error {
	s.touchSessionCalls++
	row, exists := s.sessions[sessionID]
	if !exists {
		return db.ErrNoRows
	}
	row.LastSeenAt = seenAt
	return nil
}

func (s *fakeAuthStore) GetUserByUsername(_ context.Context, username string) (*db.AuthUser, error) {
	row, exists := s.usersByUsername[strings.TrimSpace(strings.ToLower(username))]
	if !exists {
		return nil, db.ErrNoRows
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakeAuthStore) GetUserByID(_ context.Context, userID int64) (*db.AuthUser, error) {
	row, exists := s.usersByID[userID]
	if !exists {
		return nil, db.ErrNoRows
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakeAuthStore) CreateSession(_ context.Context, userID int64, expiresAt, now time.Time) (string, error) {
	s.createSessionCalls++
	sessionID := s.createSessionID
	if sessionID == "" {
		sessionID = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	}
	s.sessions[sessionID] = &db.AuthSession{
		SessionID:  sessionID,
		UserID:     userID,
		ExpiresAt:  expiresAt,
		LastSeenAt: now,
	}
	return sessionID, nil
}

func (s *fakeAuthStore) SetUserLastLogin(_ context.Context, userID int64, loginAt time.Time) error {
	s.setLastLoginCalls++
	row, exists := s.usersByID[userID]
	if !exists {
		return db.ErrNoRows
	}
	copyTime := loginAt
	row.LastLoginAt = &copyTime
	return nil
}

func (s *fakeAuthStore) SetUserPreferredLang(_ context.Context, userID int64, lang string) error {
	s.setLangCalls = append(s.setLangCalls, lang)
	row, exists := s.usersByID[userID]
	if !exists {
		return db.ErrNoRows
	}
	row.PreferredLang = lang
	return nil
}

type fakePostStore struct {
	postsByUUID       map[string]*db.PostRecord
	detections        map[int64]*db.DetectionRecord
	clearCalls        []int64
	appendLocaleCalls []string
	updateBodyCalls   int
	createdPosts      []db.CreatePostParams
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{
		postsByUUID: map[string]*db.PostRecord{},
		detections:  map[int64]*db.DetectionRecord{},
	}
}

func (s *fakePostStore) GetPostByUUID(_ context.Context, postUUID string) (*db.PostRecord, error) {
	row, exists := s.postsByUUID[postUUID]
	if !exists {
		return nil, nil
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakePostStore) CreatePost(_ context.Context, params db.CreatePostParams) (*db.PostRecord, error) {
	s.createdPosts = append(s.createdPosts, params)
	post := &db.PostRecord{
		PostID:     int64(len(s.createdPosts)),
		PostUUID:   "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb",
		CategoryID: params.CategoryID,
		AuthorID:   params.AuthorID,
		RawBody:    params.RawBody,
		CookedBody: params.CookedBody,
		Revision:   1,
	}
	s.postsByUUID[post.PostUUID] = post
	return post, nil
}

func (s *fakePostStore) UpdatePostBody(_ context.Context, postID int64, rawBody, cookedBody string) (*db.PostRecord, error) {
	s.updateBodyCalls++
	for _, row := range s.postsByUUID {
		if row.PostID == postID {
			row.RawBody = rawBody
			row.CookedBody = cookedBody
			row.Revision++
			copyRow := *row
			return &copyRow, nil
		}
	}
	return nil, nil
}

func (s *fakePostStore) GetDetection(_ context.Context, postID int64) (*db.DetectionRecord, error) {
	return s.detections[postID], nil
}

func (s *fakePostStore) ClearTranslationState(_ context.Context, postID int64) error {
	s.clearCalls = append(s.clearCalls, postID)
	delete(s.detections, postID)
	return nil
}

func (s *fakePostStore) AppendTranslatedLocale(_ context.Context, postID int64, locale string) error {
	s.appendLocaleCalls = append(s.appendLocaleCalls, locale)
	return nil
}

type fakeManager struct {
	result      *translator.Result
	err         error
	calls       int
	lastViewer  translator.Viewer
	lastUUID    string
	lastEnabled bool
}

func (m *fakeManager) Translate(_ context.Context, settings translator.Settings, viewer translator.Viewer, postUUID string) (*translator.Result, error) {
	m.calls++
	m.lastViewer = viewer
	m.lastUUID = postUUID
	m.lastEnabled = settings.Enabled
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type fakePolicy struct {
	visibility translator.Visibility
}

func (p *fakePolicy) Evaluate(_ context.Context, _ translator.Settings, _ translator.Viewer, _ *db.PostRecord, _ *db.DetectionRecord) translator.Visibility {
	return p.visibility
}

type fakeEnqueuer struct {
	reasons []string
	uuids   []string
}

func (e *fakeEnqueuer) EnqueueDetection(_ context.Context, postUUID, reason string) error {
	e.uuids = append(e.uuids, postUUID)
	e.reasons = append(e.reasons, reason)
	return nil
}

type fakePublisher struct {
	events []queue.TranslationChanged
}

func (p *fakePublisher) PublishTranslationChanged(_ context.Context, event queue.TranslationChanged) error {
	p.events = append(p.events, event)
	return nil
}

type serverFixture struct {
	server    *Server
	authStore *fakeAuthStore
	postStore *fakePostStore
	manager   *fakeManager
	policy    *fakePolicy
	enqueuer  *fakeEnqueuer
	publisher *fakePublisher
	settings  translator.Settings
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		authStore: newFakeAuthStore(),
		postStore: newFakePostStore(),
		manager:   &fakeManager{},
		policy:    &fakePolicy{visibility: translator.VisibilityShowButton},
		enqueuer:  &fakeEnqueuer{},
		publisher: &fakePublisher{},
		settings:  translator.Settings{Enabled: true, Provider: "local", AllowGuests: true},
	}

	registry := translator.NewRegistry()
	f.server = &Server{
		logger:    zerolog.Nop(),
		opts:      Options{SessionCookie: "polyglot_session", SessionTTL: time.Hour},
		settings:  translator.SettingsFunc(func() translator.Settings { return f.settings }),
		manager:   f.manager,
		policy:    f.policy,
		registry:  registry,
		enqueuer:  f.enqueuer,
		publisher: f.publisher,
		authStore: f.authStore,
		postStore: f.postStore,
	}
	return f
}

func newJSONContext(method, path, body string) (*echo.Echo, echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e, e.NewContext(req, rec), rec
}
