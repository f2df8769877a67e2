package translator

import (
	"context"
	"strings"
	"time"
)

const (
	yandexProviderName = "yandex"
	yandexEndpoint     = "https://translate.api.cloud.yandex.net/translate/v2"
)

// YandexProvider translates through the Yandex Cloud Translate REST API.
type YandexProvider struct {
	apiKey   string
	folderID string
	endpoint string
	client   httpPoster
	locales  localeTable
}

func NewYandexProvider(apiKey, folderID string) *YandexProvider {
	return &YandexProvider{
		apiKey:   apiKey,
		folderID: folderID,
		endpoint: yandexEndpoint,
		client:   defaultPoster{client: newRESTClient()},
		locales:  newLocaleTable(yandexLocaleOverrides),
	}
}

func (p *YandexProvider) Name() string { return yandexProviderName }

func (p *YandexProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Api-Key " + p.apiKey}
}

type yandexDetectRequest struct {
	FolderID string `json:"folderId"`
	Text     string `json:"text"`
}

type yandexDetectResponse struct {
	LanguageCode string `json:"languageCode"`
}

func (p *YandexProvider) Detect(ctx context.Context, text string) (string, error) {
	var result yandexDetectResponse
	err := p.client.post(ctx, yandexProviderName, p.endpoint+"/detect", p.headers(),
		yandexDetectRequest{FolderID: p.folderID, Text: text}, &result)
	if err != nil {
		return "", err
	}
	if result.LanguageCode == "" {
		return "", &ProviderError{
			Provider: yandexProviderName,
			Kind:     ProviderBadResponse,
			Message:  "detection returned no language",
		}
	}
	return strings.ToLower(result.LanguageCode), nil
}

type yandexTranslateRequest struct {
	FolderID           string   `json:"folderId"`
	Texts              []string `json:"texts"`
	TargetLanguageCode string   `json:"targetLanguageCode"`
	SourceLanguageCode string   `json:"sourceLanguageCode,omitempty"`
}

type yandexTranslateResponse struct {
	Translations []struct {
		Text                 string `json:"text"`
		DetectedLanguageCode string `json:"detectedLanguageCode"`
	} `json:"translations"`
}

func (p *YandexProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	target, ok := p.locales.toProvider(req.TargetLang)
	if !ok {
		return nil, &ProviderError{
			Provider: yandexProviderName,
			Kind:     ProviderBadResponse,
			Message:  "unsupported target locale " + req.TargetLang,
		}
	}

	body := yandexTranslateRequest{
		FolderID:           p.folderID,
		Texts:              []string{req.Text},
		TargetLanguageCode: target,
	}
	if req.SourceLang != "" {
		if source, ok := p.locales.toProvider(req.SourceLang); ok {
			body.SourceLanguageCode = source
		}
	}

	start := time.Now()
	var result yandexTranslateResponse
	err := p.client.post(ctx, yandexProviderName, p.endpoint+"/translate", p.headers(), body, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Translations) == 0 || result.Translations[0].Text == "" {
		return nil, &ProviderError{
			Provider: yandexProviderName,
			Kind:     ProviderBadResponse,
			Message:  "translation returned no text",
		}
	}

	detected := req.SourceLang
	if code := result.Translations[0].DetectedLanguageCode; code != "" {
		detected = strings.ToLower(code)
	}
	return &TranslateResponse{
		Text:         result.Translations[0].Text,
		DetectedLang: detected,
		TargetLang:   req.TargetLang,
		ProviderName: yandexProviderName,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *YandexProvider) ToProviderLocale(locale string) (string, bool) {
	return p.locales.toProvider(locale)
}

func (p *YandexProvider) SupportedLocales() []string {
	return p.locales.list()
}
