package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"horse.fit/polyglot/internal/langdetect"
)

const localProviderName = "local"

// LocalProvider detects offline with the bundled language models and
// translates through a self-hosted OpenAI-compatible chat endpoint.
type LocalProvider struct {
	endpoint string
	model    string
	client   httpPoster
	locales  localeTable
}

// NewLocalProvider points at an OpenAI-compatible base URL, e.g.
// http://127.0.0.1:8845/v1.
func NewLocalProvider(endpoint, model string) *LocalProvider {
	return &LocalProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   defaultPoster{client: newRESTClient()},
		locales:  newLocaleTable(nil),
	}
}

func (p *LocalProvider) Name() string { return localProviderName }

// Detect runs entirely in-process.
func (p *LocalProvider) Detect(_ context.Context, text string) (string, error) {
	lang := langdetect.DetectISO6391(text)
	if lang == "" {
		return "", &ProviderError{
			Provider: localProviderName,
			Kind:     ProviderBadResponse,
			Message:  "no language detected",
		}
	}
	return lang, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *LocalProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if _, ok := p.locales.toProvider(req.TargetLang); !ok {
		return nil, &ProviderError{
			Provider: localProviderName,
			Kind:     ProviderBadResponse,
			Message:  "unsupported target locale " + req.TargetLang,
		}
	}

	source := req.SourceLang
	if source == "" {
		detected, err := p.Detect(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		source = detected
	}

	body := chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"Translate the following text from %s to %s. Output only the translation, no explanations.",
					LanguageLabel(source), LanguageLabel(req.TargetLang)),
			},
			{Role: "user", Content: req.Text},
		},
		Temperature: 0,
	}

	start := time.Now()
	var result chatCompletionResponse
	err := p.client.post(ctx, localProviderName, p.endpoint+"/chat/completions", nil, body, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, &ProviderError{
			Provider: localProviderName,
			Kind:     ProviderBadResponse,
			Message:  "completion returned no choices",
		}
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return nil, &ProviderError{
			Provider: localProviderName,
			Kind:     ProviderBadResponse,
			Message:  "completion returned empty text",
		}
	}

	return &TranslateResponse{
		Text:         text,
		DetectedLang: source,
		TargetLang:   req.TargetLang,
		ProviderName: localProviderName,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *LocalProvider) ToProviderLocale(locale string) (string, bool) {
	return p.locales.toProvider(locale)
}

func (p *LocalProvider) SupportedLocales() []string {
	return p.locales.list()
}
