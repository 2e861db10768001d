package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	// registered database/sql drivers
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
)

// Dialect selects placeholder syntax for the SQL store.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

var placeholderRe = regexp.MustCompile(`\$\d+`)

// rebind rewrites $n placeholders for drivers that only accept "?".
// Queries in this package reference each argument once and in order.
func (d Dialect) rebind(query string) string {
	if d == DialectSQLite {
		return placeholderRe.ReplaceAllString(query, "?")
	}
	return query
}

// OpenDB opens and pings a database for driver ("postgres" or "sqlite").
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	var dialect Dialect
	switch driver {
	case "postgres":
		dialect = DialectPostgres
	case "sqlite":
		dialect = DialectSQLite
	default:
		return nil, 0, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect == DialectSQLite {
		// sqlite serializes writers, a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, dialect, nil
}

const (
	selectRegistrationSQL = `SELECT user_id, chat_id, token, updated_at FROM registrations WHERE user_id = $1`
	upsertRegistrationSQL = `INSERT INTO registrations (user_id, chat_id, token, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
	chat_id = EXCLUDED.chat_id,
	token = EXCLUDED.token,
	updated_at = EXCLUDED.updated_at`
	// two rows are enough to tell a unique match from an ambiguous one
	findByTokenSQL = `SELECT chat_id FROM registrations WHERE token = $1 LIMIT 2`
)

// SQLStore keeps registrations in a relational table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ TokenStore = (*SQLStore)(nil)

// NewSQLStore returns a TokenStore over db. Migrations must be applied first.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// Get selects the registration row of userID.
func (s *SQLStore) Get(ctx context.Context, userID int64) (*domain.Registration, error) {
	var reg domain.Registration
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(selectRegistrationSQL), userID)
	if err := row.Scan(&reg.UserID, &reg.ChatID, &reg.Token, &reg.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound()
		}
		return nil, apperrors.NewStorageError("get", err)
	}

	reg.UpdatedAt = reg.UpdatedAt.UTC()
	return &reg, nil
}

// Put upserts the row keyed by user id.
func (s *SQLStore) Put(ctx context.Context, reg *domain.Registration) error {
	if reg == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(upsertRegistrationSQL),
		reg.UserID, reg.ChatID, reg.Token, s.now().UTC())
	if err != nil {
		return apperrors.NewStorageError("put", err)
	}

	return nil
}

// FindByToken looks up at most two rows carrying token.
func (s *SQLStore) FindByToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, errNotFound()
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(findByTokenSQL), token)
	if err != nil {
		return 0, apperrors.NewStorageError("find_by_token", err)
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return 0, apperrors.NewStorageError("find_by_token", err)
		}
		chatIDs = append(chatIDs, chatID)
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.NewStorageError("find_by_token", err)
	}

	return exactlyOne(chatIDs)
}

// HealthCheck pings the underlying database.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
