// Package store persists enriched newsletters and their publishers in SQLite
// or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrPublisherExists = errors.New("publisher already exists")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases a sender address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Topics is stored as a JSON array.
type Topics []string

func (t Topics) Value() (driver.Value, error) {
	if t == nil {
		t = Topics{}
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Topics) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*t = Topics{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("scan topics: unsupported type %T", src)
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("scan topics: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*t = out
	return nil
}

type Publisher struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

type Newsletter struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	PublisherID string    `db:"publisher_id"`
	MessageID   string    `db:"message_id"`
	Subject     string    `db:"subject"`
	ReceivedAt  time.Time `db:"received_at"`
	PlainText   string    `db:"plain_text"`
	Link        string    `db:"link"`
	Summary     string    `db:"summary"`
	Topics      Topics    `db:"topics"`
	IsRead      bool      `db:"is_read"`
	ProcessedAt time.Time `db:"processed_at"`
	CreatedAt   time.Time `db:"created_at"`
}

type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
	now func() time.Time
}

// Open connects to dsn and creates the schema if needed. A postgres:// or
// postgresql:// DSN selects PostgreSQL; anything else is a SQLite path.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	driverName, tsType := "sqlite3", "TIMESTAMP"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driverName, tsType = "pgx", "TIMESTAMPTZ"
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}
	if driverName == "sqlite3" {
		// one connection keeps :memory: databases alive and serializes writes
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	for _, stmt := range schema(tsType) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &Store{
		db:  db,
		log: log.With().Str("component", "store").Str("driver", driverName).Logger(),
		now: time.Now,
	}, nil
}

func schema(ts string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS publishers (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT,
			email TEXT NOT NULL,
			created_at %s NOT NULL,
			UNIQUE (user_id, email)
		)`, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS newsletters (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			publisher_id TEXT NOT NULL REFERENCES publishers(id),
			message_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			received_at %[1]s NOT NULL,
			plain_text TEXT NOT NULL,
			link TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			topics TEXT NOT NULL DEFAULT '[]',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			processed_at %[1]s NOT NULL,
			created_at %[1]s NOT NULL,
			UNIQUE (user_id, message_id)
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_newsletters_user_received ON newsletters(user_id, received_at)`,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NewsletterExists reports whether messageID was already imported for userID.
func (s *Store) NewsletterExists(ctx context.Context, userID, messageID string) (bool, error) {
	var n int
	q := s.db.Rebind(`SELECT COUNT(*) FROM newsletters WHERE user_id = ? AND message_id = ?`)
	if err := s.db.GetContext(ctx, &n, q, userID, messageID); err != nil {
		return false, fmt.Errorf("check newsletter: %w", err)
	}
	return n > 0, nil
}

// UpsertPublisher returns the id of the publisher for (userID, email),
// creating it on first sight. An empty name falls back to the email.
func (s *Store) UpsertPublisher(ctx context.Context, userID, email, name string) (string, error) {
	email = NormalizeEmail(email)
	if name == "" {
		name = email
	}

	insert := s.db.Rebind(`
		INSERT INTO publishers (id, user_id, name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, email) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, insert, uuid.NewString(), userID, name, email, s.now().UTC()); err != nil {
		return "", fmt.Errorf("insert publisher: %w", err)
	}

	var id string
	q := s.db.Rebind(`SELECT id FROM publishers WHERE user_id = ? AND email = ?`)
	if err := s.db.GetContext(ctx, &id, q, userID, email); err != nil {
		return "", fmt.Errorf("get publisher: %w", err)
	}
	return id, nil
}

// CreatePublisher adds a sender for userID. The email is validated and
// normalized; a blank name is stored as NULL.
func (s *Store) CreatePublisher(ctx context.Context, userID, email, name string) (Publisher, error) {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return Publisher{}, fmt.Errorf("%q: %w", email, ErrInvalidEmail)
	}

	p := Publisher{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		CreatedAt: s.now().UTC(),
	}
	var dbName sql.NullString
	if p.Name != "" {
		dbName = sql.NullString{String: p.Name, Valid: true}
	}

	q := s.db.Rebind(`
		INSERT INTO publishers (id, user_id, name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, email) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, q, p.ID, p.UserID, dbName, p.Email, p.CreatedAt)
	if err != nil {
		return Publisher{}, fmt.Errorf("create publisher: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return Publisher{}, err
	}
	if rows == 0 {
		return Publisher{}, fmt.Errorf("%s: %w", p.Email, ErrPublisherExists)
	}
	return p, nil
}

// ListPublishers returns userID's publishers, newest first. Name is empty
// when none was given.
func (s *Store) ListPublishers(ctx context.Context, userID string) ([]Publisher, error) {
	var out []Publisher
	q := s.db.Rebind(`
		SELECT id, user_id, COALESCE(name, '') AS name, email, created_at
		FROM publishers WHERE user_id = ?
		ORDER BY created_at DESC, email`)
	if err := s.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, fmt.Errorf("list publishers: %w", err)
	}
	return out, nil
}

// DeletePublisher removes one of userID's publishers along with its
// newsletters.
func (s *Store) DeletePublisher(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete publisher: %w", err)
	}
	defer tx.Rollback()

	del := tx.Rebind(`DELETE FROM newsletters WHERE user_id = ? AND publisher_id = ?`)
	if _, err := tx.ExecContext(ctx, del, userID, id); err != nil {
		return fmt.Errorf("delete newsletters of publisher %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM publishers WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("delete publisher %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("publisher %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete publisher: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("publisher_id", id).Msg("publisher deleted")
	return nil
}

// ListPublisherEmails returns the sender addresses known for userID.
func (s *Store) ListPublisherEmails(ctx context.Context, userID string) ([]string, error) {
	var emails []string
	q := s.db.Rebind(`SELECT email FROM publishers WHERE user_id = ? ORDER BY email`)
	if err := s.db.SelectContext(ctx, &emails, q, userID); err != nil {
		return nil, fmt.Errorf("list publishers: %w", err)
	}
	return emails, nil
}

// InsertNewsletter stores n and reports whether a row was written. A second
// insert for the same user and message is a no-op.
func (s *Store) InsertNewsletter(ctx context.Context, n *Newsletter) (bool, error) {
	now := s.now().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.ProcessedAt.IsZero() {
		n.ProcessedAt = now
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.Topics == nil {
		n.Topics = Topics{}
	}
	n.ReceivedAt = n.ReceivedAt.UTC()

	q := `
		INSERT INTO newsletters (id, user_id, publisher_id, message_id, subject, received_at,
			plain_text, link, summary, topics, is_read, processed_at, created_at)
		VALUES (:id, :user_id, :publisher_id, :message_id, :subject, :received_at,
			:plain_text, :link, :summary, :topics, :is_read, :processed_at, :created_at)
		ON CONFLICT (user_id, message_id) DO NOTHING`
	res, err := s.db.NamedExecContext(ctx, q, n)
	if err != nil {
		return false, fmt.Errorf("insert newsletter %s: %w", n.MessageID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		s.log.Debug().Str("message_id", n.MessageID).Msg("newsletter already stored")
	}
	return rows > 0, nil
}

// ListNewsletters returns userID's newsletters, newest first. A non-empty
// topic keeps only newsletters tagged with it.
func (s *Store) ListNewsletters(ctx context.Context, userID, topic string) ([]Newsletter, error) {
	q := `SELECT * FROM newsletters WHERE user_id = ?`
	args := []any{userID}
	if topic != "" {
		tag, err := json.Marshal(strings.ToLower(topic))
		if err != nil {
			return nil, err
		}
		q += ` AND topics LIKE ?`
		args = append(args, "%"+string(tag)+"%")
	}
	q += ` ORDER BY received_at DESC`

	var out []Newsletter
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list newsletters: %w", err)
	}
	return out, nil
}

// SetRead marks one of userID's newsletters read or unread.
func (s *Store) SetRead(ctx context.Context, userID, id string, read bool) error {
	q := s.db.Rebind(`UPDATE newsletters SET is_read = ? WHERE user_id = ? AND id = ?`)
	res, err := s.db.ExecContext(ctx, q, read, userID, id)
	if err != nil {
		return fmt.Errorf("set read: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("newsletter %s: %w", id, ErrNotFound)
	}
	return nil
}

var _ sql.Scanner = (*Topics)(nil)
