// Package audit persists scan runs, threat findings, and admin
// accounts to Postgres. A Store is optional: callers wire
// it as a best-effort sink so a slow or unreachable database never
// blocks the scanning core.
package audit

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultAdminPassword = "admin123"

// Store wraps a GORM Postgres connection and the sink methods the
// rest of the module writes audit records through.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Config holds the Postgres connection parameters, each overridable
// by an environment variable.
type Config struct {
	Host     string
	User     string
	Password string
	DBName   string
	Port     string
	SSLMode  string
	TimeZone string
}

// ConfigFromEnv builds a Config from DB_HOST/DB_USER/DB_PASSWORD/
// DB_NAME/DB_PORT/DB_SSLMODE/DB_TIMEZONE, defaulting each unset
// variable.
func ConfigFromEnv() Config {
	return Config{
		Host:     getEnv("DB_HOST", "localhost"),
		User:     getEnv("DB_USER", "sentineld"),
		Password: getEnv("DB_PASSWORD", "sentineld"),
		DBName:   getEnv("DB_NAME", "sentineld_av"),
		Port:     getEnv("DB_PORT", "5432"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		TimeZone: getEnv("DB_TIMEZONE", "UTC"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone)
}

// Open connects to Postgres, runs AutoMigrate for every model, and
// seeds a default admin account when the AdminUser table is empty.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(cfg.dsn()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, model := range []any{&AdminUser{}, &ScanRun{}, &ThreatRecord{}, &Agent{}} {
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("audit: migrate %T: %w", model, err)
		}
	}
	return s.seedDefaultAdmin()
}

func (s *Store) seedDefaultAdmin() error {
	var count int64
	if err := s.db.Model(&AdminUser{}).Count(&count).Error; err != nil {
		return fmt.Errorf("audit: count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("audit: hash default admin password: %w", err)
	}
	admin := AdminUser{Username: "admin", PasswordHash: string(hash), Role: "admin", IsActive: true}
	if err := s.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("audit: seed default admin: %w", err)
	}
	s.log.Warn("seeded default admin account, change its password immediately",
		zap.String("username", admin.Username))
	return nil
}

// sinkTimeout bounds how long a best-effort write may block the
// caller before the error is logged and swallowed.
const sinkTimeout = 2 * time.Second

// RecordScanRun persists a completed scan run and returns its ID, or
// zero on failure. Errors are logged, never returned, so a database
// outage cannot back up the scanner.
func (s *Store) RecordScanRun(run ScanRun) uint {
	if s == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		s.log.Warn("audit: failed to record scan run", zap.Error(err))
		return 0
	}
	return run.ID
}

// RecordThreat persists a single threat finding, optionally linked to
// a ScanRun via rec.ScanRunID (nil when the finding belongs to no scan
// run).
func (s *Store) RecordThreat(rec ThreatRecord) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.log.Warn("audit: failed to record threat", zap.Error(err))
	}
}

// AuthorizeUser fetches an active admin user by username, used by
// internal/auth during login.
func (s *Store) AuthorizeUser(ctx context.Context, username string) (*AdminUser, error) {
	var user AdminUser
	err := s.db.WithContext(ctx).Where("username = ? AND is_active = ?", username, true).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new admin account.
func (s *Store) CreateUser(ctx context.Context, user AdminUser) (*AdminUser, error) {
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByID fetches an admin account by primary key, used to
// re-validate a JWT subject on every request.
func (s *Store) UserByID(ctx context.Context, id uint) (*AdminUser, error) {
	var user AdminUser
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePassword overwrites the stored password hash for a user.
func (s *Store) UpdatePassword(ctx context.Context, userID uint, newHash string) error {
	return s.db.WithContext(ctx).Model(&AdminUser{}).Where("id = ?", userID).
		Update("password_hash", newHash).Error
}

// RecentThreats returns up to limit threat records, newest first.
func (s *Store) RecentThreats(ctx context.Context, limit int) ([]ThreatRecord, error) {
	var out []ThreatRecord
	err := s.db.WithContext(ctx).Order("detected_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
