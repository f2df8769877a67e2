package translator

import "context"

// TranslateRequest is one translation call against a provider. SourceLang
// may be empty when the source language is unknown; providers that cannot
// translate without it must detect first.
type TranslateRequest struct {
	Text       string
	SourceLang string
	TargetLang string
}

// TranslateResponse is the provider's answer. DetectedLang is the ISO
// 639-1 code the provider detected (or was given), TargetLang echoes the
// normalized request target.
type TranslateResponse struct {
	Text         string
	DetectedLang string
	TargetLang   string
	ProviderName string
	LatencyMs    int64
}

// Provider is one backing translation service. Detect and Translate
// return *ProviderError for external failures so callers can map the
// failure kind without knowing which provider ran.
type Provider interface {
	Name() string

	// Detect returns the ISO 639-1 code of the dominant language of text.
	Detect(ctx context.Context, text string) (string, error)

	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)

	// ToProviderLocale maps a normalized ISO 639-1 code to the provider's
	// own locale vocabulary. The second return is false when the provider
	// cannot serve the locale.
	ToProviderLocale(locale string) (string, bool)

	// SupportedLocales lists the normalized locales this provider can
	// translate into, sorted.
	SupportedLocales() []string
}
