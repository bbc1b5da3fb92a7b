package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rejection-therapy/models"
	"rejection-therapy/services"
)

// OpenPostgres connects with TranslateError enabled so unique violations
// surface as gorm.ErrDuplicatedKey.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate creates or updates every table this service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.WeeklyChallenge{},
		&models.Submission{},
		&models.PendingAward{},
		&models.XPEvent{},
	)
}

// Gorm is the Postgres-backed Store.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// Transact runs fn in a database transaction. Called on a transaction-scoped
// Gorm it opens a savepoint instead.
func (g *Gorm) Transact(ctx context.Context, fn func(tx services.Store) error) error {
	var fnErr error
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&Gorm{db: tx})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return mapErr("commit", err)
	}
	return err
}

func (g *Gorm) Profiles() services.ProfileRepository       { return gormProfiles{g.db} }
func (g *Gorm) Submissions() services.SubmissionRepository { return gormSubmissions{g.db} }
func (g *Gorm) Challenges() services.ChallengeRepository   { return gormChallenges{g.db} }
func (g *Gorm) Awards() services.AwardRepository           { return gormAwards{g.db} }
func (g *Gorm) Events() services.EventRepository           { return gormEvents{g.db} }

// Ping checks the connection for /healthz.
func (g *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// mapErr converts driver errors into the sentinels services understand.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, services.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, services.ErrConflict)
	case isTransient(err):
		return fmt.Errorf("%s: %w: %v", op, services.ErrTransient, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, services.ErrConflict)
		case "22P02":
			// invalid_text_representation: a malformed uuid matches no row
			return fmt.Errorf("%s: %w", op, services.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "57014":
			// serialization failure, deadlock, admin shutdown, query canceled
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		log.Printf("[STORE] ⚠️ network error: %v", err)
		return true
	}
	return false
}
