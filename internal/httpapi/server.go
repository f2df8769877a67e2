package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/globaltime"
	"horse.fit/polyglot/internal/translator"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SessionCookie   string
	SessionTTL      time.Duration
	SessionSecure   bool
	CORSOrigins     []string
}

// translationService is the synchronous translate path.
// *translator.Manager satisfies it.
type translationService interface {
	Translate(ctx context.Context, settings translator.Settings, viewer translator.Viewer, postUUID string) (*translator.Result, error)
}

// visibilityService decides the translate affordance. *translator.Policy
// satisfies it.
type visibilityService interface {
	Evaluate(ctx context.Context, settings translator.Settings, viewer translator.Viewer, post *db.PostRecord, detection *db.DetectionRecord) translator.Visibility
}

type Server struct {
	pool      *db.Pool
	logger    zerolog.Logger
	opts      Options
	settings  translator.SettingsSource
	manager   translationService
	policy    visibilityService
	registry  *translator.Registry
	enqueuer  translator.Enqueuer
	publisher translator.ChangePublisher

	// Test seams, nil outside tests.
	authStore authStore
	postStore postStore
}

func NewServer(pool *db.Pool, logger zerolog.Logger, settings translator.SettingsSource, manager *translator.Manager, policy *translator.Policy, registry *translator.Registry, enqueuer translator.Enqueuer, publisher translator.ChangePublisher, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	sessionCookie := strings.TrimSpace(opts.SessionCookie)
	if sessionCookie == "" {
		sessionCookie = "polyglot_session"
	}
	sessionTTL := opts.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 168 * time.Hour
	}
	corsOrigins := opts.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	return &Server{
		pool:      pool,
		logger:    logger,
		settings:  settings,
		manager:   manager,
		policy:    policy,
		registry:  registry,
		enqueuer:  enqueuer,
		publisher: publisher,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			SessionCookie:   sessionCookie,
			SessionTTL:      sessionTTL,
			SessionSecure:   opts.SessionSecure,
			CORSOrigins:     corsOrigins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("polyglot api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("polyglot api server stopped")
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.opts.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/languages", s.handleLanguages)

	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/logout", s.handleLogout)
	api.GET("/auth/me", s.handleMe, s.requireAuth())
	api.PUT("/users/me/language", s.handlePutMyLanguage, s.requireAuth())

	api.POST("/posts", s.handleCreatePost, s.requireAuth())
	api.GET("/posts/:post_uuid", s.handleGetPost, s.withViewer())
	api.PUT("/posts/:post_uuid/body", s.handleUpdatePostBody, s.requireAuth())
	api.POST("/posts/:post_uuid/translated-locales", s.handleMarkTranslated, s.requireAuth())
	api.POST("/posts/:post_uuid/translate", s.handleTranslate, s.withViewer())

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "polyglot",
		"time":    globaltime.UTC(),
	})
}

// handleLanguages lists the locales the active provider can translate
// into, so clients can render a locale picker.
func (s *Server) handleLanguages(c echo.Context) error {
	settings := s.settings.TranslatorSettings()

	provider, err := s.registry.Get(settings.Provider)
	if err != nil {
		return success(c, map[string]any{
			"provider": settings.Provider,
			"items":    []languageOption{},
		})
	}

	locales := provider.SupportedLocales()
	items := make([]languageOption, 0, len(locales))
	for _, code := range locales {
		items = append(items, languageOption{
			Code: code,
			Name: translator.LanguageLabel(code),
		})
	}
	return success(c, map[string]any{
		"provider": provider.Name(),
		"items":    items,
	})
}

type languageOption struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
