package database

import (
	"fmt"
	"time"

	"github.com/bookflow/bookflow/internal/config"
	"github.com/bookflow/bookflow/internal/domain"
	"github.com/bookflow/bookflow/internal/domain/appointment"
	"github.com/bookflow/bookflow/internal/domain/availability"
	"github.com/bookflow/bookflow/internal/domain/notification"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"booking", "auth", "comms"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&availability.AvailabilityBlock{},
		&availability.Slot{},
		&appointment.Appointment{},
		&appointment.Rating{},
		&notification.Notification{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	// Availability overlap is also guarded durably: concurrent publishes of
	// overlapping ranges cannot both commit past this constraint.
	_ = db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error
	_ = db.Exec(`ALTER TABLE booking.availability_blocks
		ADD CONSTRAINT availability_blocks_no_overlap
		EXCLUDE USING gist (
			provider_id WITH =,
			tstzrange(start_time, end_time) WITH &&
		) WHERE (status = 'active')`).Error

	indexes := []struct {
		name  string
		query string
	}{
		{
			// One live appointment per slot. Cancelled rows stay behind as
			// history when a hold expires, so the uniqueness must exclude them
			// or the freed slot could never be claimed again.
			name:  "idx_appointments_slot_active",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_slot_active ON booking.appointments (slot_id) WHERE status NOT IN ('cancelled')`,
		},
		{
			name:  "idx_slots_provider_free",
			query: `CREATE INDEX IF NOT EXISTS idx_slots_provider_free ON booking.slots (provider_id, start_time) WHERE state = 'free'`,
		},
		{
			name:  "idx_slots_expiring_holds",
			query: `CREATE INDEX IF NOT EXISTS idx_slots_expiring_holds ON booking.slots (hold_expires_at) WHERE state = 'held'`,
		},
		{
			name:  "idx_appointments_provider_schedule",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_provider_schedule ON booking.appointments (provider_id, start_time) WHERE status NOT IN ('cancelled', 'no_show')`,
		},
		{
			name:  "idx_notifications_unread",
			query: `CREATE INDEX IF NOT EXISTS idx_notifications_unread ON comms.notifications (user_id, created_at) WHERE is_read = false`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			_ = err
		}
	}

	return nil
}
