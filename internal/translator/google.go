package translator

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

const googleProviderName = "google"

// GoogleProvider translates through the Google Cloud Translation API.
type GoogleProvider struct {
	client  *translate.Client
	locales localeTable
}

// NewGoogleProvider builds a provider backed by the given service
// account credentials file.
func NewGoogleProvider(ctx context.Context, credentialsFile string) (*GoogleProvider, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, &ProviderError{
			Provider: googleProviderName,
			Kind:     ProviderUnavailable,
			Message:  "creating translation client",
			Cause:    err,
		}
	}
	return &GoogleProvider{client: client, locales: newLocaleTable(googleLocaleOverrides)}, nil
}

func (p *GoogleProvider) Name() string { return googleProviderName }

func (p *GoogleProvider) Detect(ctx context.Context, text string) (string, error) {
	detections, err := p.client.DetectLanguage(ctx, []string{text})
	if err != nil {
		return "", &ProviderError{
			Provider: googleProviderName,
			Kind:     classifyGoogleError(err),
			Message:  "detecting language",
			Cause:    err,
		}
	}
	if len(detections) == 0 || len(detections[0]) == 0 {
		return "", &ProviderError{
			Provider: googleProviderName,
			Kind:     ProviderBadResponse,
			Message:  "detection returned no candidates",
		}
	}
	best := detections[0][0]
	for _, candidate := range detections[0][1:] {
		if candidate.Confidence > best.Confidence {
			best = candidate
		}
	}
	base, _ := best.Language.Base()
	return base.String(), nil
}

func (p *GoogleProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	target, ok := p.locales.toProvider(req.TargetLang)
	if !ok {
		return nil, &ProviderError{
			Provider: googleProviderName,
			Kind:     ProviderBadResponse,
			Message:  "unsupported target locale " + req.TargetLang,
		}
	}
	targetTag, err := language.Parse(target)
	if err != nil {
		return nil, &ProviderError{
			Provider: googleProviderName,
			Kind:     ProviderBadResponse,
			Message:  "parsing target locale " + target,
			Cause:    err,
		}
	}

	opts := &translate.Options{Format: translate.Text}
	if req.SourceLang != "" {
		if source, ok := p.locales.toProvider(req.SourceLang); ok {
			if tag, err := language.Parse(source); err == nil {
				opts.Source = tag
			}
		}
	}

	start := time.Now()
	translations, err := p.client.Translate(ctx, []string{req.Text}, targetTag, opts)
	if err != nil {
		return nil, &ProviderError{
			Provider: googleProviderName,
			Kind:     classifyGoogleError(err),
			Message:  "translating text",
			Cause:    err,
		}
	}
	if len(translations) == 0 || translations[0].Text == "" {
		return nil, &ProviderError{
			Provider: googleProviderName,
			Kind:     ProviderBadResponse,
			Message:  "translation returned no text",
		}
	}

	detected := req.SourceLang
	if translations[0].Source != (language.Tag{}) {
		base, _ := translations[0].Source.Base()
		detected = base.String()
	}
	return &TranslateResponse{
		Text:         translations[0].Text,
		DetectedLang: detected,
		TargetLang:   req.TargetLang,
		ProviderName: googleProviderName,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *GoogleProvider) ToProviderLocale(locale string) (string, bool) {
	return p.locales.toProvider(locale)
}

func (p *GoogleProvider) SupportedLocales() []string {
	return p.locales.list()
}

// Close releases the underlying API client.
func (p *GoogleProvider) Close() error {
	return p.client.Close()
}

func classifyGoogleError(err error) ProviderErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return ProviderQuotaExceeded
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "400"):
		return ProviderBadResponse
	default:
		return ProviderUnavailable
	}
}
