package translator

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const (
	microsoftProviderName = "microsoft"
	microsoftEndpoint     = "https://api.cognitive.microsofttranslator.com"
	microsoftAPIVersion   = "3.0"
)

// MicrosoftProvider translates through the Azure Translator REST API.
type MicrosoftProvider struct {
	apiKey   string
	region   string
	endpoint string
	client   httpPoster
	locales  localeTable
}

func NewMicrosoftProvider(apiKey, region string) *MicrosoftProvider {
	return &MicrosoftProvider{
		apiKey:   apiKey,
		region:   region,
		endpoint: microsoftEndpoint,
		client:   defaultPoster{client: newRESTClient()},
		locales:  newLocaleTable(microsoftLocaleOverrides),
	}
}

func (p *MicrosoftProvider) Name() string { return microsoftProviderName }

func (p *MicrosoftProvider) headers() map[string]string {
	headers := map[string]string{"Ocp-Apim-Subscription-Key": p.apiKey}
	if p.region != "" {
		headers["Ocp-Apim-Subscription-Region"] = p.region
	}
	return headers
}

type microsoftTextItem struct {
	Text string `json:"Text"`
}

type microsoftDetectResult struct {
	Language string  `json:"language"`
	Score    float64 `json:"score"`
}

func (p *MicrosoftProvider) Detect(ctx context.Context, text string) (string, error) {
	endpoint := p.endpoint + "/detect?api-version=" + microsoftAPIVersion
	var results []microsoftDetectResult
	err := p.client.post(ctx, microsoftProviderName, endpoint, p.headers(), []microsoftTextItem{{Text: text}}, &results)
	if err != nil {
		return "", err
	}
	if len(results) == 0 || results[0].Language == "" {
		return "", &ProviderError{
			Provider: microsoftProviderName,
			Kind:     ProviderBadResponse,
			Message:  "detection returned no language",
		}
	}
	// Strip script subtags like zh-Hans back down to the base code.
	lang := results[0].Language
	if idx := strings.IndexByte(lang, '-'); idx > 0 {
		lang = lang[:idx]
	}
	return strings.ToLower(lang), nil
}

type microsoftTranslation struct {
	Text string `json:"text"`
	To   string `json:"to"`
}

type microsoftTranslateResult struct {
	DetectedLanguage *microsoftDetectResult `json:"detectedLanguage"`
	Translations     []microsoftTranslation `json:"translations"`
}

func (p *MicrosoftProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	target, ok := p.locales.toProvider(req.TargetLang)
	if !ok {
		return nil, &ProviderError{
			Provider: microsoftProviderName,
			Kind:     ProviderBadResponse,
			Message:  "unsupported target locale " + req.TargetLang,
		}
	}

	query := url.Values{}
	query.Set("api-version", microsoftAPIVersion)
	query.Set("to", target)
	if req.SourceLang != "" {
		if source, ok := p.locales.toProvider(req.SourceLang); ok {
			query.Set("from", source)
		}
	}
	endpoint := p.endpoint + "/translate?" + query.Encode()

	start := time.Now()
	var results []microsoftTranslateResult
	err := p.client.post(ctx, microsoftProviderName, endpoint, p.headers(), []microsoftTextItem{{Text: req.Text}}, &results)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || len(results[0].Translations) == 0 || results[0].Translations[0].Text == "" {
		return nil, &ProviderError{
			Provider: microsoftProviderName,
			Kind:     ProviderBadResponse,
			Message:  "translation returned no text",
		}
	}

	detected := req.SourceLang
	if results[0].DetectedLanguage != nil && results[0].DetectedLanguage.Language != "" {
		detected = results[0].DetectedLanguage.Language
		if idx := strings.IndexByte(detected, '-'); idx > 0 {
			detected = detected[:idx]
		}
		detected = strings.ToLower(detected)
	}
	return &TranslateResponse{
		Text:         results[0].Translations[0].Text,
		DetectedLang: detected,
		TargetLang:   req.TargetLang,
		ProviderName: microsoftProviderName,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *MicrosoftProvider) ToProviderLocale(locale string) (string, bool) {
	return p.locales.toProvider(locale)
}

func (p *MicrosoftProvider) SupportedLocales() []string {
	return p.locales.list()
}
