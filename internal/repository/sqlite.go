package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/mr1hm/disasterwatch/internal/models"
)

type SQLiteDB struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewSQLiteDB opens and migrates the database at path. A nil clock uses real time.
func NewSQLiteDB(path string, clock clockwork.Clock) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// :memory: databases are per-connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &SQLiteDB{
		db:    db,
		clock: clock,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS disaster_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			location TEXT NOT NULL,
			severity TEXT NOT NULL,
			magnitude REAL,
			description TEXT,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			timestamp INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alert_subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL UNIQUE,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			radius_km REAL NOT NULL,
			categories TEXT NOT NULL,
			channels TEXT NOT NULL,
			email TEXT,
			phone TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_disaster_events_timestamp ON disaster_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_disaster_events_user ON disaster_events(user_id);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

const disasterColumns = `id, user_id, type, title, location, severity, magnitude, description,
	lat, lng, timestamp, is_active, created_at, updated_at`

func (s *SQLiteDB) AddDisaster(ctx context.Context, d *models.DisasterEvent) error {
	now := s.clock.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO disaster_events (user_id, type, title, location, severity, magnitude, description,
			lat, lng, timestamp, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, string(d.Type), d.Title, d.Location, string(d.Severity), nullFloat(d.Magnitude),
		nullString(d.Description), d.Lat, d.Lng, d.Timestamp.UnixMilli(), d.IsActive,
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("error inserting disaster: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error reading disaster id: %w", err)
	}
	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

func (s *SQLiteDB) GetDisaster(ctx context.Context, id int64, userID string) (*models.DisasterEvent, error) {
	query := `SELECT ` + disasterColumns + ` FROM disaster_events WHERE id = ?`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	d, err := scanDisaster(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting disaster %d: %w", id, err)
	}
	return d, nil
}

func (s *SQLiteDB) ListDisasters(ctx context.Context, opts Filter) ([]models.DisasterEvent, error) {
	var (
		where []string
		args  []any
	)
	if opts.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if opts.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*opts.Type))
	}
	if opts.Severity != nil {
		where = append(where, "severity = ?")
		args = append(args, string(*opts.Severity))
	}

	query := `SELECT ` + disasterColumns + ` FROM disaster_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing disasters: %w", err)
	}
	defer rows.Close()

	var disasters []models.DisasterEvent
	for rows.Next() {
		d, err := scanDisaster(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning disaster: %w", err)
		}
		disasters = append(disasters, *d)
	}
	return disasters, rows.Err()
}

func (s *SQLiteDB) UpdateDisaster(ctx context.Context, d *models.DisasterEvent) error {
	now := s.clock.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE disaster_events
		SET type = ?, title = ?, location = ?, severity = ?, magnitude = ?, description = ?,
			lat = ?, lng = ?, timestamp = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		string(d.Type), d.Title, d.Location, string(d.Severity), nullFloat(d.Magnitude),
		nullString(d.Description), d.Lat, d.Lng, d.Timestamp.UnixMilli(), d.IsActive, now.UnixMilli(),
		d.ID, d.UserID,
	)
	if err != nil {
		return fmt.Errorf("error updating disaster %d: %w", d.ID, err)
	}
	if err := expectRows(res); err != nil {
		return err
	}
	d.UpdatedAt = now
	return nil
}

func (s *SQLiteDB) DeleteDisaster(ctx context.Context, id int64, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM disaster_events WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("error deleting disaster %d: %w", id, err)
	}
	return expectRows(res)
}

const subscriptionColumns = `id, user_id, lat, lng, radius_km, categories, channels, email, phone,
	created_at, updated_at`

func (s *SQLiteDB) GetSubscription(ctx context.Context, userID string) (*models.AlertSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM alert_subscriptions WHERE user_id = ?`, userID)

	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting subscription: %w", err)
	}
	return sub, nil
}

func (s *SQLiteDB) UpsertSubscription(ctx context.Context, sub *models.AlertSubscription) error {
	now := s.clock.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_subscriptions (user_id, lat, lng, radius_km, categories, channels, email, phone,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			lat = excluded.lat,
			lng = excluded.lng,
			radius_km = excluded.radius_km,
			categories = excluded.categories,
			channels = excluded.channels,
			email = excluded.email,
			phone = excluded.phone,
			updated_at = excluded.updated_at`,
		sub.UserID, sub.Lat, sub.Lng, sub.RadiusKm, sub.Categories, sub.Channels,
		nullString(sub.Email), nullString(sub.Phone), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("error upserting subscription: %w", err)
	}

	stored, err := s.GetSubscription(ctx, sub.UserID)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("subscription for %s vanished after upsert", sub.UserID)
	}
	*sub = *stored
	return nil
}

func (s *SQLiteDB) DeleteSubscription(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("error deleting subscription: %w", err)
	}
	return expectRows(res)
}

func (s *SQLiteDB) SubscriptionsByCategory(ctx context.Context, category models.DisasterType) ([]models.AlertSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM alert_subscriptions
		WHERE ',' || REPLACE(LOWER(categories), ' ', '') || ',' LIKE ?
		ORDER BY id`,
		categoryPattern(category),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying subscriptions for %s: %w", category, err)
	}
	defer rows.Close()

	var subs []models.AlertSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDisaster(row scanner) (*models.DisasterEvent, error) {
	var (
		d                        models.DisasterEvent
		typ, severity            string
		magnitude                sql.NullFloat64
		description              sql.NullString
		ts, createdAt, updatedAt int64
	)
	err := row.Scan(&d.ID, &d.UserID, &typ, &d.Title, &d.Location, &severity, &magnitude, &description,
		&d.Lat, &d.Lng, &ts, &d.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.Type = models.DisasterType(typ)
	d.Severity = models.Severity(severity)
	if magnitude.Valid {
		d.Magnitude = &magnitude.Float64
	}
	if description.Valid {
		d.Description = &description.String
	}
	d.Timestamp = time.UnixMilli(ts).UTC()
	d.CreatedAt = time.UnixMilli(createdAt).UTC()
	d.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &d, nil
}

func scanSubscription(row scanner) (*models.AlertSubscription, error) {
	var (
		sub                  models.AlertSubscription
		email, phone         sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Lat, &sub.Lng, &sub.RadiusKm, &sub.Categories, &sub.Channels,
		&email, &phone, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		sub.Email = &email.String
	}
	if phone.Valid {
		sub.Phone = &phone.String
	}
	sub.CreatedAt = time.UnixMilli(createdAt).UTC()
	sub.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &sub, nil
}

func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
