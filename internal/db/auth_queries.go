package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AuthUser is a user row without the password hash exposed in JSON.
type AuthUser struct {
	UserID        int64      `json:"user_id"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	PreferredLang string     `json:"preferred_lang"`
	Trusted       bool       `json:"trusted"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// AuthSession is a session row joined with its user.
type AuthSession struct {
	SessionID     string    `json:"session_id"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	PreferredLang string    `json:"preferred_lang"`
	Trusted       bool      `json:"trusted"`
	ExpiresAt     time.Time `json:"expires_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

const authUserColumns = `
	u.user_id,
	u.username,
	u.password_hash,
	u.preferred_lang,
	u.trusted,
	u.created_at,
	u.last_login_at
`

func (p *Pool) CountUsers(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM polyglot.users`

	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (p *Pool) CreateUser(ctx context.Context, username, passwordHash string, trusted bool) (*AuthUser, error) {
	q := `
INSERT INTO polyglot.users (
	username,
	password_hash,
	trusted,
	created_at
)
VALUES ($1, $2, $3, now())
RETURNING` + strings.ReplaceAll(authUserColumns, "u.", "") + `
`

	return p.scanAuthUser(p.QueryRow(ctx, q, username, passwordHash, trusted))
}

func (p *Pool) GetUserByUsername(ctx context.Context, username string) (*AuthUser, error) {
	q := `
SELECT` + authUserColumns + `
FROM polyglot.users u
WHERE u.username = $1
LIMIT 1
`

	return p.scanAuthUser(p.QueryRow(ctx, q, strings.TrimSpace(username)))
}

func (p *Pool) GetUserByID(ctx context.Context, userID int64) (*AuthUser, error) {
	q := `
SELECT` + authUserColumns + `
FROM polyglot.users u
WHERE u.user_id = $1
LIMIT 1
`

	return p.scanAuthUser(p.QueryRow(ctx, q, userID))
}

func (p *Pool) SetUserLastLogin(ctx context.Context, userID int64, at time.Time) error {
	const q = `UPDATE polyglot.users SET last_login_at = $2 WHERE user_id = $1`
	if _, err := p.Exec(ctx, q, userID, at.UTC()); err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

func (p *Pool) SetUserPreferredLang(ctx context.Context, userID int64, lang string) error {
	const q = `UPDATE polyglot.users SET preferred_lang = $2 WHERE user_id = $1`
	if _, err := p.Exec(ctx, q, userID, strings.TrimSpace(lang)); err != nil {
		return fmt.Errorf("set preferred language: %w", err)
	}
	return nil
}

func (p *Pool) CreateSession(ctx context.Context, userID int64, expiresAt, now time.Time) (string, error) {
	const q = `
INSERT INTO polyglot.sessions (
	user_id,
	expires_at,
	created_at,
	last_seen_at
)
VALUES ($1, $2, $3, $3)
RETURNING session_id::text
`

	var sessionID string
	if err := p.QueryRow(ctx, q, userID, expiresAt.UTC(), now.UTC()).Scan(&sessionID); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return sessionID, nil
}

func (p *Pool) GetSession(ctx context.Context, sessionID string) (*AuthSession, error) {
	const q = `
SELECT
	s.session_id::text,
	s.user_id,
	u.username,
	u.preferred_lang,
	u.trusted,
	s.expires_at,
	s.last_seen_at
FROM polyglot.sessions s
JOIN polyglot.users u
	ON u.user_id = s.user_id
WHERE s.session_id = $1::uuid
LIMIT 1
`

	var row AuthSession
	if err := p.QueryRow(ctx, q, strings.TrimSpace(sessionID)).Scan(
		&row.SessionID,
		&row.UserID,
		&row.Username,
		&row.PreferredLang,
		&row.Trusted,
		&row.ExpiresAt,
		&row.LastSeenAt,
	); err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Pool) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	const q = `UPDATE polyglot.sessions SET last_seen_at = $2 WHERE session_id = $1::uuid`
	if _, err := p.Exec(ctx, q, strings.TrimSpace(sessionID), at.UTC()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (p *Pool) DeleteSession(ctx context.Context, sessionID string) error {
	const q = `DELETE FROM polyglot.sessions WHERE session_id = $1::uuid`
	if _, err := p.Exec(ctx, q, strings.TrimSpace(sessionID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (p *Pool) scanAuthUser(row *Row) (*AuthUser, error) {
	var user AuthUser
	if err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.PasswordHash,
		&user.PreferredLang,
		&user.Trusted,
		&user.CreatedAt,
		&user.LastLoginAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
