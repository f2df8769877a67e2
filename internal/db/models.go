package db

import (
	"encoding/json"
	"time"
)

// Post maps polyglot.posts. The platform owns post authoring; this service
// reads posts and tracks per-post translation state.
type Post struct {
	PostID     int64  `gorm:"column:post_id;primaryKey;autoIncrement"`
	PostUUID   string `gorm:"column:post_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	CategoryID int64  `gorm:"column:category_id;type:bigint;not null;default:0"`
	AuthorID   *int64 `gorm:"column:author_id;type:bigint"`
	RawBody    string `gorm:"column:raw_body;type:text;not null;default:''"`
	CookedBody string `gorm:"column:cooked_body;type:text;not null;default:''"`
	Revision   int    `gorm:"column:revision;type:integer;not null;default:1"`
	// Locales already covered by an external translation subsystem; posts
	// whose covered locales include the viewer locale never show the
	// translate affordance.
	TranslatedLocales json.RawMessage `gorm:"column:translated_locales;type:jsonb"`
	DeletedAt         *time.Time      `gorm:"column:deleted_at;type:timestamptz"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Post) TableName() string { return "polyglot.posts" }

// PostDetection maps polyglot.post_detections: at most one detected source
// language per post, cleared whenever the post body changes.
type PostDetection struct {
	PostID       int64     `gorm:"column:post_id;primaryKey"`
	DetectedLang string    `gorm:"column:detected_lang;type:text;not null"`
	ProviderName string    `gorm:"column:provider_name;type:text;not null"`
	PostRevision int       `gorm:"column:post_revision;type:integer;not null"`
	DetectedAt   time.Time `gorm:"column:detected_at;type:timestamptz;not null;default:now()"`
}

func (PostDetection) TableName() string { return "polyglot.post_detections" }

// PostTranslationRow maps polyglot.post_translations: cached translations
// keyed by (post, target language).
type PostTranslationRow struct {
	TranslationID  int64     `gorm:"column:translation_id;primaryKey;autoIncrement"`
	PostID         int64     `gorm:"column:post_id;type:bigint;not null;uniqueIndex:ux_post_translations_post_target,priority:1"`
	TargetLang     string    `gorm:"column:target_lang;type:text;not null;uniqueIndex:ux_post_translations_post_target,priority:2"`
	DetectedLang   string    `gorm:"column:detected_lang;type:text;not null"`
	TranslatedText string    `gorm:"column:translated_text;type:text;not null"`
	ProviderName   string    `gorm:"column:provider_name;type:text;not null"`
	LatencyMS      *int      `gorm:"column:latency_ms;type:integer"`
	PostRevision   int       `gorm:"column:post_revision;type:integer;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (PostTranslationRow) TableName() string { return "polyglot.post_translations" }

// User maps polyglot.users.
type User struct {
	UserID        int64      `gorm:"column:user_id;primaryKey;autoIncrement"`
	UserUUID      string     `gorm:"column:user_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Username      string     `gorm:"column:username;type:text;not null;unique"`
	PasswordHash  string     `gorm:"column:password_hash;type:text;not null"`
	PreferredLang string     `gorm:"column:preferred_lang;type:text;not null;default:en"`
	Trusted       bool       `gorm:"column:trusted;type:boolean;not null;default:false"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	LastLoginAt   *time.Time `gorm:"column:last_login_at;type:timestamptz"`
}

func (User) TableName() string { return "polyglot.users" }

// Session maps polyglot.sessions.
type Session struct {
	SessionID  string    `gorm:"column:session_id;type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     int64     `gorm:"column:user_id;type:bigint;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;type:timestamptz;not null"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;type:timestamptz;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Session) TableName() string { return "polyglot.sessions" }

func autoMigrateModels() []any {
	return []any{
		&Post{},
		&PostDetection{},
		&PostTranslationRow{},
		&User{},
		&Session{},
	}
}
