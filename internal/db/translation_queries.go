package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DetectionRecord is the cached detected language for one post.
type DetectionRecord struct {
	PostID       int64
	DetectedLang string
	ProviderName string
	PostRevision int
	DetectedAt   time.Time
}

// TranslationRecord is one cached translation for a (post, target) pair.
type TranslationRecord struct {
	TranslationID  int64
	PostID         int64
	TargetLang     string
	DetectedLang   string
	TranslatedText string
	ProviderName   string
	LatencyMS      *int
	PostRevision   int
	CreatedAt      time.Time
}

// GetDetection returns the cached detection for the post, or nil when absent.
func (p *Pool) GetDetection(ctx context.Context, postID int64) (*DetectionRecord, error) {
	const q = `
SELECT
	d.post_id,
	d.detected_lang,
	d.provider_name,
	d.post_revision,
	d.detected_at
FROM polyglot.post_detections d
WHERE d.post_id = $1
LIMIT 1
`

	var row DetectionRecord
	err := p.QueryRow(ctx, q, postID).Scan(
		&row.PostID,
		&row.DetectedLang,
		&row.ProviderName,
		&row.PostRevision,
		&row.DetectedAt,
	)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query post detection: %w", err)
	}
	return &row, nil
}

// UpsertDetectionParams controls detection upserts.
type UpsertDetectionParams struct {
	PostID       int64
	DetectedLang string
	ProviderName string
	PostRevision int
}

func (p *Pool) UpsertDetection(ctx context.Context, params UpsertDetectionParams) error {
	const q = `
INSERT INTO polyglot.post_detections (
	post_id,
	detected_lang,
	provider_name,
	post_revision,
	detected_at
)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (post_id)
DO UPDATE SET
	detected_lang = EXCLUDED.detected_lang,
	provider_name = EXCLUDED.provider_name,
	post_revision = EXCLUDED.post_revision,
	detected_at = now()
`

	if _, err := p.Exec(ctx, q, params.PostID, params.DetectedLang, params.ProviderName, params.PostRevision); err != nil {
		return fmt.Errorf("upsert post detection: %w", err)
	}
	return nil
}

// LookupTranslation returns the cached translation for the (post, target)
// pair, or nil when absent.
func (p *Pool) LookupTranslation(ctx context.Context, postID int64, targetLang string) (*TranslationRecord, error) {
	const q = `
SELECT
	t.translation_id,
	t.post_id,
	t.target_lang,
	t.detected_lang,
	t.translated_text,
	t.provider_name,
	t.latency_ms,
	t.post_revision,
	t.created_at
FROM polyglot.post_translations t
WHERE t.post_id = $1
  AND t.target_lang = $2
LIMIT 1
`

	var row TranslationRecord
	err := p.QueryRow(ctx, q, postID, targetLang).Scan(
		&row.TranslationID,
		&row.PostID,
		&row.TargetLang,
		&row.DetectedLang,
		&row.TranslatedText,
		&row.ProviderName,
		&row.LatencyMS,
		&row.PostRevision,
		&row.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query post translation: %w", err)
	}
	return &row, nil
}

// UpsertTranslationParams controls translation cache upserts.
type UpsertTranslationParams struct {
	PostID         int64
	TargetLang     string
	DetectedLang   string
	TranslatedText string
	ProviderName   string
	LatencyMS      *int
	PostRevision   int
}

func (p *Pool) UpsertTranslation(ctx context.Context, params UpsertTranslationParams) error {
	const q = `
INSERT INTO polyglot.post_translations (
	post_id,
	target_lang,
	detected_lang,
	translated_text,
	provider_name,
	latency_ms,
	post_revision,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (post_id, target_lang)
DO UPDATE SET
	detected_lang = EXCLUDED.detected_lang,
	translated_text = EXCLUDED.translated_text,
	provider_name = EXCLUDED.provider_name,
	latency_ms = EXCLUDED.latency_ms,
	post_revision = EXCLUDED.post_revision,
	created_at = now()
`

	if _, err := p.Exec(
		ctx,
		q,
		params.PostID,
		params.TargetLang,
		params.DetectedLang,
		params.TranslatedText,
		params.ProviderName,
		params.LatencyMS,
		params.PostRevision,
	); err != nil {
		return fmt.Errorf("upsert post translation: %w", err)
	}
	return nil
}

// AppendTranslatedLocale records that a cached translation exists for the
// post in the given locale. Already-present locales are left untouched.
func (p *Pool) AppendTranslatedLocale(ctx context.Context, postID int64, locale string) error {
	const q = `
UPDATE polyglot.posts
SET translated_locales = translated_locales || to_jsonb($2::text),
	updated_at = now()
WHERE post_id = $1
  AND NOT translated_locales @> to_jsonb($2::text)
`

	if _, err := p.Exec(ctx, q, postID, locale); err != nil {
		return fmt.Errorf("append translated locale: %w", err)
	}
	return nil
}

// ClearTranslationState removes detection and translation rows for the post
// and resets its translated locale list. Called on body edits and when
// translation is disabled for the post.
func (p *Pool) ClearTranslationState(ctx context.Context, postID int64) error {
	if _, err := p.Exec(ctx, `DELETE FROM polyglot.post_detections WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("clear post detection: %w", err)
	}
	if _, err := p.Exec(ctx, `DELETE FROM polyglot.post_translations WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("clear post translations: %w", err)
	}
	if _, err := p.Exec(ctx, `UPDATE polyglot.posts SET translated_locales = '[]'::jsonb, updated_at = now() WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("reset translated locales: %w", err)
	}
	return nil
}
