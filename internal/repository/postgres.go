package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mr1hm/disasterwatch/internal/models"
)

type disasterRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"not null;index"`
	Type        string `gorm:"not null"`
	Title       string `gorm:"not null"`
	Location    string `gorm:"not null"`
	Severity    string `gorm:"not null"`
	Magnitude   *float64
	Description *string
	Lat         float64   `gorm:"not null"`
	Lng         float64   `gorm:"not null"`
	Timestamp   time.Time `gorm:"not null;index"`
	IsActive    bool      `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (disasterRow) TableName() string { return "disaster_events" }

type subscriptionRow struct {
	ID         int64   `gorm:"primaryKey;autoIncrement"`
	UserID     string  `gorm:"not null;uniqueIndex"`
	Lat        float64 `gorm:"not null"`
	Lng        float64 `gorm:"not null"`
	RadiusKm   float64 `gorm:"not null"`
	Categories string  `gorm:"not null"`
	Channels   string  `gorm:"not null"`
	Email      *string
	Phone      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (subscriptionRow) TableName() string { return "alert_subscriptions" }

// PostgresDB is the gorm-backed store used when DB_DRIVER=postgres.
type PostgresDB struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewPostgresDB(dsn string, clock clockwork.Clock) (*PostgresDB, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return clock.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.AutoMigrate(&disasterRow{}, &subscriptionRow{}); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return &PostgresDB{db: db, clock: clock}, nil
}

func (p *PostgresDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *PostgresDB) AddDisaster(ctx context.Context, d *models.DisasterEvent) error {
	row := toDisasterRow(d)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("error inserting disaster: %w", err)
	}
	d.ID = row.ID
	d.CreatedAt = row.CreatedAt
	d.UpdatedAt = row.UpdatedAt
	return nil
}

func (p *PostgresDB) GetDisaster(ctx context.Context, id int64, userID string) (*models.DisasterEvent, error) {
	q := p.db.WithContext(ctx).Where("id = ?", id)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var row disasterRow
	err := q.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting disaster %d: %w", id, err)
	}
	d := fromDisasterRow(row)
	return &d, nil
}

func (p *PostgresDB) ListDisasters(ctx context.Context, opts Filter) ([]models.DisasterEvent, error) {
	q := p.db.WithContext(ctx).Model(&disasterRow{})
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}
	if opts.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if opts.Type != nil {
		q = q.Where("type = ?", string(*opts.Type))
	}
	if opts.Severity != nil {
		q = q.Where("severity = ?", string(*opts.Severity))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}

	var rows []disasterRow
	if err := q.Order("timestamp DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing disasters: %w", err)
	}

	disasters := make([]models.DisasterEvent, len(rows))
	for i, r := range rows {
		disasters[i] = fromDisasterRow(r)
	}
	return disasters, nil
}

func (p *PostgresDB) UpdateDisaster(ctx context.Context, d *models.DisasterEvent) error {
	row := toDisasterRow(d)
	row.UpdatedAt = p.clock.Now().UTC()

	res := p.db.WithContext(ctx).Model(&disasterRow{}).
		Where("id = ? AND user_id = ?", d.ID, d.UserID).
		Select("type", "title", "location", "severity", "magnitude", "description",
			"lat", "lng", "timestamp", "is_active", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("error updating disaster %d: %w", d.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	d.UpdatedAt = row.UpdatedAt
	return nil
}

func (p *PostgresDB) DeleteDisaster(ctx context.Context, id int64, userID string) error {
	res := p.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&disasterRow{})
	if res.Error != nil {
		return fmt.Errorf("error deleting disaster %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresDB) GetSubscription(ctx context.Context, userID string) (*models.AlertSubscription, error) {
	var row subscriptionRow
	err := p.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting subscription: %w", err)
	}
	sub := fromSubscriptionRow(row)
	return &sub, nil
}

func (p *PostgresDB) UpsertSubscription(ctx context.Context, sub *models.AlertSubscription) error {
	row := toSubscriptionRow(sub)
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"lat", "lng", "radius_km", "categories", "channels", "email", "phone", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("error upserting subscription: %w", err)
	}

	stored, err := p.GetSubscription(ctx, sub.UserID)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("subscription for %s vanished after upsert", sub.UserID)
	}
	*sub = *stored
	return nil
}

func (p *PostgresDB) DeleteSubscription(ctx context.Context, userID string) error {
	res := p.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&subscriptionRow{})
	if res.Error != nil {
		return fmt.Errorf("error deleting subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresDB) SubscriptionsByCategory(ctx context.Context, category models.DisasterType) ([]models.AlertSubscription, error) {
	var rows []subscriptionRow
	err := p.db.WithContext(ctx).
		Where("',' || REPLACE(LOWER(categories), ' ', '') || ',' LIKE ?", categoryPattern(category)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying subscriptions for %s: %w", category, err)
	}

	subs := make([]models.AlertSubscription, len(rows))
	for i, r := range rows {
		subs[i] = fromSubscriptionRow(r)
	}
	return subs, nil
}

func toDisasterRow(d *models.DisasterEvent) disasterRow {
	return disasterRow{
		ID:          d.ID,
		UserID:      d.UserID,
		Type:        string(d.Type),
		Title:       d.Title,
		Location:    d.Location,
		Severity:    string(d.Severity),
		Magnitude:   d.Magnitude,
		Description: d.Description,
		Lat:         d.Lat,
		Lng:         d.Lng,
		Timestamp:   d.Timestamp.UTC(),
		IsActive:    d.IsActive,
	}
}

func fromDisasterRow(r disasterRow) models.DisasterEvent {
	return models.DisasterEvent{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        models.DisasterType(r.Type),
		Title:       r.Title,
		Location:    r.Location,
		Severity:    models.Severity(r.Severity),
		Magnitude:   r.Magnitude,
		Description: r.Description,
		Lat:         r.Lat,
		Lng:         r.Lng,
		Timestamp:   r.Timestamp.UTC(),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func toSubscriptionRow(s *models.AlertSubscription) subscriptionRow {
	return subscriptionRow{
		UserID:     s.UserID,
		Lat:        s.Lat,
		Lng:        s.Lng,
		RadiusKm:   s.RadiusKm,
		Categories: s.Categories,
		Channels:   s.Channels,
		Email:      s.Email,
		Phone:      s.Phone,
	}
}

func fromSubscriptionRow(r subscriptionRow) models.AlertSubscription {
	return models.AlertSubscription{
		ID:         r.ID,
		UserID:     r.UserID,
		Lat:        r.Lat,
		Lng:        r.Lng,
		RadiusKm:   r.RadiusKm,
		Categories: r.Categories,
		Channels:   r.Channels,
		Email:      r.Email,
		Phone:      r.Phone,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}
