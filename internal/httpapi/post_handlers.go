package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/language"
	"horse.fit/polyglot/internal/queue"
	"horse.fit/polyglot/internal/render"
	"horse.fit/polyglot/internal/translator"
)

type postStore interface {
	GetPostByUUID(ctx context.Context, postUUID string) (*db.PostRecord, error)
	CreatePost(ctx context.Context, params db.CreatePostParams) (*db.PostRecord, error)
	UpdatePostBody(ctx context.Context, postID int64, rawBody, cookedBody string) (*db.PostRecord, error)
	GetDetection(ctx context.Context, postID int64) (*db.DetectionRecord, error)
	ClearTranslationState(ctx context.Context, postID int64) error
	AppendTranslatedLocale(ctx context.Context, postID int64, locale string) error
}

func (s *Server) postDataStore() postStore {
	if s == nil {
		return nil
	}
	if s.postStore != nil {
		return s.postStore
	}
	if s.pool == nil {
		return nil
	}
	return s.pool
}

type postResponse struct {
	PostUUID          string     `json:"post_uuid"`
	CategoryID        int64      `json:"category_id"`
	AuthorID          *int64     `json:"author_id,omitempty"`
	RawBody           string     `json:"raw_body"`
	CookedBody        string     `json:"cooked_body"`
	Revision          int        `json:"revision"`
	TranslatedLocales []string   `json:"translated_locales,omitempty"`
	DetectedLang      string     `json:"detected_lang,omitempty"`
	CanTranslate      string     `json:"can_translate"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type createPostRequest struct {
	CategoryID int64  `json:"category_id"`
	RawBody    string `json:"raw_body"`
	CookedBody string `json:"cooked_body"`
}

func (s *Server) handleCreatePost(c echo.Context) error {
	store := s.postDataStore()
	if store == nil {
		return internalError(c, "Failed to create post")
	}

	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	var req createPostRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if strings.TrimSpace(req.RawBody) == "" {
		return failValidation(c, map[string]string{"raw_body": "is required"})
	}

	cooked := req.CookedBody
	if strings.TrimSpace(cooked) == "" {
		cooked = render.CookPlainText(req.RawBody)
	}

	authorID := principal.UserID
	post, err := store.CreatePost(c.Request().Context(), db.CreatePostParams{
		CategoryID: req.CategoryID,
		AuthorID:   &authorID,
		RawBody:    req.RawBody,
		CookedBody: cooked,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("create post failed")
		return internalError(c, "Failed to create post")
	}

	settings := s.settings.TranslatorSettings()
	if settings.Enabled && !settings.CategoryExcluded(post.CategoryID) {
		if err := s.enqueuer.EnqueueDetection(c.Request().Context(), post.PostUUID, "created"); err != nil {
			s.logger.Warn().Err(err).Str("post_uuid", post.PostUUID).Msg("scheduling detection")
		}
	}

	viewer := viewerFromContext(c)
	return successWithStatus(c, 201, map[string]any{
		"post": s.buildPostResponse(c.Request().Context(), settings, viewer, post),
	})
}

func (s *Server) handleGetPost(c echo.Context) error {
	store := s.postDataStore()
	if store == nil {
		return internalError(c, "Failed to load post")
	}

	postUUID := strings.TrimSpace(c.Param("post_uuid"))
	if postUUID == "" {
		return failValidation(c, map[string]string{"post_uuid": "is required"})
	}

	post, err := store.GetPostByUUID(c.Request().Context(), postUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("post_uuid", postUUID).Msg("load post failed")
		return internalError(c, "Failed to load post")
	}
	if post == nil {
		return failNotFound(c, "Post not found")
	}

	settings := s.settings.TranslatorSettings()
	viewer := viewerFromContext(c)
	return success(c, map[string]any{
		"post": s.buildPostResponse(c.Request().Context(), settings, viewer, post),
	})
}

type updatePostBodyRequest struct {
	RawBody    string `json:"raw_body"`
	CookedBody string `json:"cooked_body"`
}

// handleUpdatePostBody edits the body and invalidates all cached
// translation state: the old detection and translations describe text
// that no longer exists.
func (s *Server) handleUpdatePostBody(c echo.Context) error {
	store := s.postDataStore()
	if store == nil {
		return internalError(c, "Failed to update post")
	}

	postUUID := strings.TrimSpace(c.Param("post_uuid"))
	if postUUID == "" {
		return failValidation(c, map[string]string{"post_uuid": "is required"})
	}

	var req updatePostBodyRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if strings.TrimSpace(req.RawBody) == "" {
		return failValidation(c, map[string]string{"raw_body": "is required"})
	}

	post, err := store.GetPostByUUID(c.Request().Context(), postUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("post_uuid", postUUID).Msg("load post failed")
		return internalError(c, "Failed to update post")
	}
	if post == nil {
		return failNotFound(c, "Post not found")
	}

	cooked := req.CookedBody
	if strings.TrimSpace(cooked) == "" {
		cooked = render.CookPlainText(req.RawBody)
	}

	updated, err := store.UpdatePostBody(c.Request().Context(), post.PostID, req.RawBody, cooked)
	if err != nil {
		s.logger.Error().Err(err).Str("post_uuid", postUUID).Msg("update post body failed")
		return internalError(c, "Failed to update post")
	}
	if updated == nil {
		return failNotFound(c, "Post not found")
	}

	if err := store.ClearTranslationState(c.Request().Context(), updated.PostID); err != nil {
		s.logger.Error().Err(err).Str("post_uuid", postUUID).Msg("clear translation state failed")
		return internalError(c, "Failed to update post")
	}

	event := queue.TranslationChanged{PostUUID: updated.PostUUID, Cleared: true}
	if err := s.publisher.PublishTranslationChanged(c.Request().Context(), event); err != nil {
		s.logger.Warn().Err(err).Str("post_uuid", postUUID).Msg("publishing clear event")
	}

	settings := s.settings.TranslatorSettings()
	if settings.Enabled && !settings.CategoryExcluded(updated.CategoryID) {
		if err := s.enqueuer.EnqueueDetection(c.Request().Context(), updated.PostUUID, "edited"); err != nil {
			s.logger.Warn().Err(err).Str("post_uuid", updated.PostUUID).Msg("scheduling detection")
		}
	}

	viewer := viewerFromContext(c)
	return success(c, map[string]any{
		"post": s.buildPostResponse(c.Request().Context(), settings, viewer, updated),
	})
}

type markTranslatedRequest struct {
	Locale string `json:"locale"`
}

// handleMarkTranslated records a locale covered by an external
// translation workflow, hiding the translate affordance for viewers of
// that locale.
func (s *Server) handleMarkTranslated(c echo.Context) error {
	store := s.postDataStore()
	if store == nil {
		return internalError(c, "Failed to update post")
	}

	postUUID := strings.TrimSpace(c.Param("post_uuid"))
	if postUUID == "" {
		return failValidation(c, map[string]string{"post_uuid": "is required"})
	}

	var req markTranslatedRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	locale := language.NormalizeCode(req.Locale)
	if locale == "" {
		return failValidation(c, map[string]string{"locale": "must be a valid locale code"})
	}

	post, err := store.GetPostByUUID(c.Request().Context(), postUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("post_uuid", postUUID).Msg("load post failed")
		return internalError(c, "Failed to update post")
	}
	if post == nil {
		return failNotFound(c, "Post not found")
	}

	if err := store.AppendTranslatedLocale(c.Request().Context(), post.PostID, locale); err != nil {
		s.logger.Error().Err(err).Str("post_uuid", postUUID).Msg("append translated locale failed")
		return internalError(c, "Failed to update post")
	}

	return success(c, map[string]any{
		"post_uuid": post.PostUUID,
		"locale":    locale,
	})
}

func (s *Server) buildPostResponse(ctx context.Context, settings translator.Settings, viewer translator.Viewer, post *db.PostRecord) postResponse {
	store := s.postDataStore()

	var detection *db.DetectionRecord
	if store != nil {
		loaded, err := store.GetDetection(ctx, post.PostID)
		if err != nil {
			s.logger.Error().Err(err).Str("post_uuid", post.PostUUID).Msg("load detection failed")
		} else {
			detection = loaded
		}
	}

	resp := postResponse{
		PostUUID:          post.PostUUID,
		CategoryID:        post.CategoryID,
		AuthorID:          post.AuthorID,
		RawBody:           post.RawBody,
		CookedBody:        post.CookedBody,
		Revision:          post.Revision,
		TranslatedLocales: post.TranslatedLocales,
		CanTranslate:      string(s.policy.Evaluate(ctx, settings, viewer, post, detection)),
		CreatedAt:         post.CreatedAt.UTC(),
		UpdatedAt:         post.UpdatedAt.UTC(),
	}
	if detection != nil && detection.PostRevision == post.Revision {
		resp.DetectedLang = detection.DetectedLang
	}
	return resp
}
