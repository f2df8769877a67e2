package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PostRecord is a post row enriched for API output and policy evaluation.
type PostRecord struct {
	PostID            int64
	PostUUID          string
	CategoryID        int64
	AuthorID          *int64
	RawBody           string
	CookedBody        string
	Revision          int
	TranslatedLocales []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const postColumns = `
	p.post_id,
	p.post_uuid::text,
	p.category_id,
	p.author_id,
	p.raw_body,
	p.cooked_body,
	p.revision,
	p.translated_locales,
	p.created_at,
	p.updated_at
`

// GetPostByUUID loads one visible post.
func (p *Pool) GetPostByUUID(ctx context.Context, postUUID string) (*PostRecord, error) {
	q := `
SELECT` + postColumns + `
FROM polyglot.posts p
WHERE p.post_uuid = $1::uuid
  AND p.deleted_at IS NULL
LIMIT 1
`

	return p.scanPostRow(p.QueryRow(ctx, q, strings.TrimSpace(postUUID)))
}

// GetPostByID loads one visible post by numeric identifier.
func (p *Pool) GetPostByID(ctx context.Context, postID int64) (*PostRecord, error) {
	q := `
SELECT` + postColumns + `
FROM polyglot.posts p
WHERE p.post_id = $1
  AND p.deleted_at IS NULL
LIMIT 1
`

	return p.scanPostRow(p.QueryRow(ctx, q, postID))
}

// CreatePostParams controls post creation.
type CreatePostParams struct {
	CategoryID        int64
	AuthorID          *int64
	RawBody           string
	CookedBody        string
	TranslatedLocales []string
}

func (p *Pool) CreatePost(ctx context.Context, params CreatePostParams) (*PostRecord, error) {
	locales, err := marshalLocales(params.TranslatedLocales)
	if err != nil {
		return nil, err
	}

	q := `
INSERT INTO polyglot.posts (
	category_id,
	author_id,
	raw_body,
	cooked_body,
	revision,
	translated_locales,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, 1, $5, now(), now())
RETURNING` + strings.ReplaceAll(postColumns, "p.", "") + `
`

	return p.scanPostRow(p.QueryRow(ctx, q, params.CategoryID, params.AuthorID, params.RawBody, params.CookedBody, locales))
}

// UpdatePostBody replaces the post body and bumps the edit revision. Callers
// must clear the post's translation state afterwards; the revision column is
// the backstop against stale cached rows.
func (p *Pool) UpdatePostBody(ctx context.Context, postID int64, rawBody, cookedBody string) (*PostRecord, error) {
	q := `
UPDATE polyglot.posts p
SET raw_body = $2,
	cooked_body = $3,
	revision = p.revision + 1,
	updated_at = now()
WHERE p.post_id = $1
  AND p.deleted_at IS NULL
RETURNING` + postColumns + `
`

	return p.scanPostRow(p.QueryRow(ctx, q, postID, rawBody, cookedBody))
}

func (p *Pool) scanPostRow(row *Row) (*PostRecord, error) {
	var (
		record     PostRecord
		localesRaw []byte
	)
	if err := row.Scan(
		&record.PostID,
		&record.PostUUID,
		&record.CategoryID,
		&record.AuthorID,
		&record.RawBody,
		&record.CookedBody,
		&record.Revision,
		&localesRaw,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan post row: %w", err)
	}

	if len(localesRaw) > 0 && string(localesRaw) != "null" {
		var locales []string
		if err := json.Unmarshal(localesRaw, &locales); err == nil {
			record.TranslatedLocales = locales
		}
	}
	return &record, nil
}

func marshalLocales(locales []string) (json.RawMessage, error) {
	if len(locales) == 0 {
		return json.RawMessage("[]"), nil
	}
	raw, err := json.Marshal(locales)
	if err != nil {
		return nil, fmt.Errorf("marshal translated locales: %w", err)
	}
	return raw, nil
}
