package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

type stubPoster struct {
	lastURL     string
	lastHeaders map[string]string
	lastBody    any
	response    string
	err         error
}

func (s *stubPoster) post(_ context.Context, _ string, url string, headers map[string]string, body, out any) error {
	s.lastURL = url
	s.lastHeaders = headers
	s.lastBody = body
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.response), out)
}

func TestMicrosoftDetect(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{response: `[{"language":"zh-Hans","score":0.98}]`}
	provider := NewMicrosoftProvider("key", "westeurope")
	provider.client = poster

	lang, err := provider.Detect(context.Background(), "some text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lang != "zh" {
		t.Fatalf("lang = %q, want zh", lang)
	}
	if poster.lastHeaders["Ocp-Apim-Subscription-Key"] != "key" {
		t.Fatalf("missing subscription key header")
	}
	if poster.lastHeaders["Ocp-Apim-Subscription-Region"] != "westeurope" {
		t.Fatalf("missing subscription region header")
	}
}

func TestMicrosoftTranslate(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{
		response: `[{"detectedLanguage":{"language":"fr","score":1.0},"translations":[{"text":"Hello","to":"en"}]}]`,
	}
	provider := NewMicrosoftProvider("key", "")
	provider.client = poster

	resp, err := provider.Translate(context.Background(), TranslateRequest{Text: "Bonjour", TargetLang: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Hello" || resp.DetectedLang != "fr" || resp.TargetLang != "en" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.ProviderName != "microsoft" {
		t.Fatalf("provider name = %q", resp.ProviderName)
	}
	if !strings.Contains(poster.lastURL, "to=en") {
		t.Fatalf("target missing from URL %q", poster.lastURL)
	}
}

func TestMicrosoftTranslateMapsChineseTarget(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{response: `[{"translations":[{"text":"x","to":"zh-Hans"}]}]`}
	provider := NewMicrosoftProvider("key", "")
	provider.client = poster

	if _, err := provider.Translate(context.Background(), TranslateRequest{Text: "hi", TargetLang: "zh"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(poster.lastURL, "to=zh-Hans") {
		t.Fatalf("expected zh mapped to zh-Hans, URL %q", poster.lastURL)
	}
}

func TestMicrosoftTranslateEmptyResponse(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{response: `[]`}
	provider := NewMicrosoftProvider("key", "")
	provider.client = poster

	_, err := provider.Translate(context.Background(), TranslateRequest{Text: "hi", TargetLang: "en"})
	providerErr, ok := AsProviderError(err)
	if !ok || providerErr.Kind != ProviderBadResponse {
		t.Fatalf("expected bad_response, got %v", err)
	}
}

func TestYandexDetect(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{response: `{"languageCode":"FR"}`}
	provider := NewYandexProvider("key", "folder")
	provider.client = poster

	lang, err := provider.Detect(context.Background(), "Bonjour tout le monde")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lang != "fr" {
		t.Fatalf("lang = %q, want fr", lang)
	}
	if poster.lastHeaders["Authorization"] != "Api-Key key" {
		t.Fatalf("missing api key header")
	}
	body, ok := poster.lastBody.(yandexDetectRequest)
	if !ok || body.FolderID != "folder" {
		t.Fatalf("unexpected request body %+v", poster.lastBody)
	}
}

func TestYandexTranslate(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{response: `{"translations":[{"text":"Hello","detectedLanguageCode":"fr"}]}`}
	provider := NewYandexProvider("key", "folder")
	provider.client = poster

	resp, err := provider.Translate(context.Background(), TranslateRequest{Text: "Bonjour", TargetLang: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Hello" || resp.DetectedLang != "fr" {
		t.Fatalf("unexpected response %+v", resp)
	}
	body, ok := poster.lastBody.(yandexTranslateRequest)
	if !ok || body.TargetLanguageCode != "en" || len(body.Texts) != 1 {
		t.Fatalf("unexpected request body %+v", poster.lastBody)
	}
}

func TestLocalDetectOffline(t *testing.T) {
	t.Parallel()

	provider := NewLocalProvider("http://127.0.0.1:8845/v1", "tencent/HY-MT1.5-7B")
	provider.client = &stubPoster{err: &ProviderError{Provider: "local", Kind: ProviderUnavailable, Message: "must not be called"}}

	lang, err := provider.Detect(context.Background(), "Ceci est un message en français, assez long pour être détecté.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lang != "fr" {
		t.Fatalf("lang = %q, want fr", lang)
	}
}

func TestLocalTranslate(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{response: `{"choices":[{"message":{"role":"assistant","content":" Hello everyone. "}}]}`}
	provider := NewLocalProvider("http://127.0.0.1:8845/v1/", "tencent/HY-MT1.5-7B")
	provider.client = poster

	resp, err := provider.Translate(context.Background(), TranslateRequest{
		Text:       "Bonjour tout le monde.",
		SourceLang: "fr",
		TargetLang: "en",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Hello everyone." {
		t.Fatalf("text = %q, want trimmed translation", resp.Text)
	}
	if poster.lastURL != "http://127.0.0.1:8845/v1/chat/completions" {
		t.Fatalf("url = %q", poster.lastURL)
	}
	body, ok := poster.lastBody.(chatCompletionRequest)
	if !ok {
		t.Fatalf("unexpected request body %+v", poster.lastBody)
	}
	if body.Model != "tencent/HY-MT1.5-7B" {
		t.Fatalf("model = %q", body.Model)
	}
	if len(body.Messages) != 2 || !strings.Contains(body.Messages[0].Content, "French") || !strings.Contains(body.Messages[0].Content, "English") {
		t.Fatalf("unexpected prompt %+v", body.Messages)
	}
}

func TestLocalTranslateEmptyCompletion(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{response: `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`}
	provider := NewLocalProvider("http://127.0.0.1:8845/v1", "m")
	provider.client = poster

	_, err := provider.Translate(context.Background(), TranslateRequest{Text: "hi", SourceLang: "en", TargetLang: "fr"})
	providerErr, ok := AsProviderError(err)
	if !ok || providerErr.Kind != ProviderBadResponse {
		t.Fatalf("expected bad_response, got %v", err)
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   ProviderErrorKind
	}{
		{http.StatusTooManyRequests, ProviderQuotaExceeded},
		{http.StatusForbidden, ProviderQuotaExceeded},
		{http.StatusUnauthorized, ProviderUnavailable},
		{http.StatusBadGateway, ProviderUnavailable},
		{http.StatusBadRequest, ProviderBadResponse},
	}
	for _, tc := range cases {
		if got := classifyHTTPStatus(tc.status); got != tc.want {
			t.Errorf("classifyHTTPStatus(%d) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestLocaleTableUnsupported(t *testing.T) {
	t.Parallel()

	provider := NewMicrosoftProvider("key", "")
	if _, ok := provider.ToProviderLocale("xx"); ok {
		t.Fatalf("unknown locale must not map")
	}
	mapped, ok := provider.ToProviderLocale("no")
	if !ok || mapped != "nb" {
		t.Fatalf("no mapped to %q, want nb", mapped)
	}
}
