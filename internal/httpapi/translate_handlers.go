package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/translator"
)

type translateResponse struct {
	PostUUID     string `json:"post_uuid"`
	DetectedLang string `json:"detected_lang"`
	TargetLang   string `json:"target_lang"`
	Translation  string `json:"translation"`
	Provider     string `json:"provider"`
	Cached       bool   `json:"cached"`
}

func (s *Server) handleTranslate(c echo.Context) error {
	postUUID := strings.TrimSpace(c.Param("post_uuid"))
	if postUUID == "" {
		return failValidation(c, map[string]string{"post_uuid": "is required"})
	}

	settings := s.settings.TranslatorSettings()
	viewer := viewerFromContext(c)

	result, err := s.manager.Translate(c.Request().Context(), settings, viewer, postUUID)
	if err != nil {
		return s.translateError(c, err)
	}

	return success(c, translateResponse{
		PostUUID:     postUUID,
		DetectedLang: result.DetectedLang,
		TargetLang:   result.TargetLang,
		Translation:  result.Text,
		Provider:     result.ProviderName,
		Cached:       result.Cached,
	})
}

func (s *Server) translateError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, translator.ErrFeatureDisabled):
		return fail(c, http.StatusForbidden, "Translation is disabled", nil)
	case errors.Is(err, translator.ErrAuthRequired):
		return fail(c, http.StatusUnauthorized, "Log in to translate posts", nil)
	case errors.Is(err, translator.ErrRateLimited):
		return fail(c, http.StatusTooManyRequests, "Too many translation requests, try again in a minute", nil)
	case errors.Is(err, translator.ErrPostNotFound):
		return failNotFound(c, "Post not found")
	case errors.Is(err, translator.ErrForbidden):
		return fail(c, http.StatusForbidden, "This post cannot be translated", nil)
	case errors.Is(err, translator.ErrContentTooLong):
		return fail(c, http.StatusRequestEntityTooLarge, "Post is too long to translate", nil)
	case errors.Is(err, translator.ErrUnknownProvider):
		return fail(c, http.StatusUnprocessableEntity, "Translation provider is not available", nil)
	}

	if providerErr, ok := translator.AsProviderError(err); ok {
		s.logger.Warn().
			Err(err).
			Str("provider", providerErr.Provider).
			Str("kind", string(providerErr.Kind)).
			Msg("translation provider failed")
		return fail(c, http.StatusUnprocessableEntity, providerErr.Message, map[string]any{
			"provider": providerErr.Provider,
			"kind":     string(providerErr.Kind),
		})
	}

	s.logger.Error().Err(err).Msg("translate request failed")
	return internalError(c, "Failed to translate post")
}
