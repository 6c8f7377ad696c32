package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/encorelab/encore-api/model"
)

// SqlService owns the database connection and every persisted collection:
// the song queue and the rate-limit counters. DB_DRIVER selects postgres for
// deployments or sqlite for local runs and tests.
type SqlService struct {
	context.DefaultService
	db *gorm.DB

	driver string
	dsn    string
}

const SQL_SVC = "sql_svc"

func (svc SqlService) Id() string {
	return SQL_SVC
}

// Db Access to the raw gorm handle
func (svc SqlService) Db() *gorm.DB {
	return svc.db
}

func (svc *SqlService) Configure(ctx *context.Context) error {
	svc.driver = os.Getenv("DB_DRIVER")
	if svc.driver == "" {
		svc.driver = "sqlite"
	}

	switch svc.driver {
	case "postgres":
		svc.dsn = os.Getenv("DATABASE_URL")
		if svc.dsn == "" {
			svc.dsn = postgresDSNFromEnv()
		}
	case "sqlite":
		svc.dsn = os.Getenv("DB_DATABASE")
		if svc.dsn == "" {
			svc.dsn = "encore.db"
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", svc.driver)
	}

	return svc.DefaultService.Configure(ctx)
}

func postgresDSNFromEnv() string {
	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	dbname := envOr("DB_NAME", "encore")
	sslmode := envOr("DB_SSLMODE", "disable")
	timezone := envOr("DB_TIMEZONE", "UTC")

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		host, user, password, dbname, port, sslmode, timezone)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (svc *SqlService) Start() (err error) {
	if svc.driver == "postgres" {
		err = svc.connectPostgres()
	} else {
		svc.db, err = gorm.Open(sqlite.Open(svc.dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})
	}
	if err != nil {
		return err
	}

	if err := svc.migrate(); err != nil {
		return err
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

func (svc *SqlService) connectPostgres() (err error) {
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		svc.db, err = gorm.Open(postgres.Open(svc.dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})
		if err == nil {
			sqlDB, dbErr := svc.db.DB()
			if dbErr == nil {
				if pingErr := sqlDB.Ping(); pingErr == nil {
					return nil
				} else {
					err = pingErr
				}
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			log.Printf("Failed to connect to database after %d attempts: %v", maxRetries, err)
			return err
		}

		log.Printf("Database connection failed: %v. Retrying in %v...", err, retryDelay)
		time.Sleep(retryDelay)

		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	return err
}

func (svc *SqlService) migrate() error {
	models := []interface{}{
		&model.QueueEntry{},
		&model.RateLimit{},
	}

	if err := svc.db.AutoMigrate(models...); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	// Position uniqueness is enforced by the database on postgres. The
	// constraint is deferred so the compaction batch in DeleteQueueEntry can
	// shift positions down without tripping per-row checks mid-statement.
	if svc.driver == "postgres" {
		err := svc.db.Exec(`
			DO $$ BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint WHERE conname = 'uq_queue_entries_order_number'
				) THEN
					ALTER TABLE queue_entries
						ADD CONSTRAINT uq_queue_entries_order_number
						UNIQUE (order_number) DEFERRABLE INITIALLY DEFERRED;
				END IF;
			END $$;
		`).Error
		if err != nil {
			log.Printf("Failed to add order number constraint: %v", err)
			return err
		}
	}

	return nil
}

func (svc *SqlService) Shutdown() {
}

// ==================== QUEUE METHODS ====================

const queueListCap = 500

// CreateQueueEntry persists a new entry at the tail of the queue. The position
// is computed and written in one transaction; a unique-violation (two appends
// racing for the same position) is retried with a freshly computed position.
func (svc *SqlService) CreateQueueEntry(entry *model.QueueEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = svc.db.Transaction(func(tx *gorm.DB) error {
			var maxOrder int
			if err := tx.Model(&model.QueueEntry{}).
				Select("COALESCE(MAX(order_number), 0)").
				Scan(&maxOrder).Error; err != nil {
				return err
			}

			entry.OrderNumber = maxOrder + 1
			return tx.Create(entry).Error
		})

		if err == nil || !isUniqueViolation(err) {
			break
		}
	}

	if err != nil {
		return svc.HandleError(err)
	}
	return nil
}

// GetQueueEntry returns (nil, nil) when no entry has the given id.
func (svc *SqlService) GetQueueEntry(id string) (*model.QueueEntry, error) {
	var entry model.QueueEntry

	err := svc.db.Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, svc.HandleError(err)
	}

	return &entry, nil
}

// DeleteQueueEntry removes an entry and closes the gap it leaves: every entry
// behind it moves up one position, in the same transaction as the delete.
// Returns the removed entry, or (nil, nil) when the id does not exist.
func (svc *SqlService) DeleteQueueEntry(id string) (*model.QueueEntry, error) {
	var removed *model.QueueEntry

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		var entry model.QueueEntry
		if err := tx.Where("id = ?", id).First(&entry).Error; err != nil {
			return err
		}

		if err := tx.Delete(&model.QueueEntry{}, "id = ?", entry.ID).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.QueueEntry{}).
			Where("order_number > ?", entry.OrderNumber).
			UpdateColumn("order_number", gorm.Expr("order_number - 1")).Error; err != nil {
			return err
		}

		removed = &entry
		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, svc.HandleError(err)
	}

	return removed, nil
}

func (svc *SqlService) ListQueueEntries() ([]model.QueueEntry, error) {
	var entries []model.QueueEntry

	err := svc.db.Order("order_number ASC").Limit(queueListCap).Find(&entries).Error
	if err != nil {
		return nil, svc.HandleError(err)
	}

	return entries, nil
}

// GetHeadEntry returns the entry at position 1, or (nil, nil) on an empty queue.
func (svc *SqlService) GetHeadEntry() (*model.QueueEntry, error) {
	var entry model.QueueEntry

	err := svc.db.Order("order_number ASC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, svc.HandleError(err)
	}

	return &entry, nil
}

func (svc *SqlService) CountQueueEntries() (int64, error) {
	var count int64
	if err := svc.db.Model(&model.QueueEntry{}).Count(&count).Error; err != nil {
		return 0, svc.HandleError(err)
	}
	return count, nil
}

func (svc *SqlService) UpdateQueueEntryLyrics(id, lyrics string) error {
	err := svc.db.Model(&model.QueueEntry{}).Where("id = ?", id).Updates(map[string]interface{}{
		"lyrics":     lyrics,
		"updated_at": time.Now(),
	}).Error
	return svc.HandleError(err)
}

func (svc *SqlService) UpdateQueueEntrySummary(id, summary string) error {
	now := time.Now()
	err := svc.db.Model(&model.QueueEntry{}).Where("id = ?", id).Updates(map[string]interface{}{
		"funny_summary":        summary,
		"summary_generated_at": &now,
		"updated_at":           now,
	}).Error
	return svc.HandleError(err)
}

func (svc *SqlService) ClearQueueEntrySummary(id string) error {
	err := svc.db.Model(&model.QueueEntry{}).Where("id = ?", id).Updates(map[string]interface{}{
		"funny_summary":        "",
		"summary_generated_at": nil,
		"updated_at":           time.Now(),
	}).Error
	return svc.HandleError(err)
}

// ==================== RATE LIMIT METHODS ====================

// GetRateLimit returns (nil, nil) when no counter exists for the pair.
func (svc *SqlService) GetRateLimit(identifier, kind string) (*model.RateLimit, error) {
	var rateLimit model.RateLimit

	err := svc.db.Where("identifier = ? AND kind = ?", identifier, kind).First(&rateLimit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &rateLimit, nil
}

func (svc *SqlService) SaveRateLimit(rateLimit *model.RateLimit) error {
	if rateLimit.ID == "" {
		id, _ := uuid.NewV7()
		rateLimit.ID = id.String()
	}

	now := time.Now()
	if rateLimit.CreatedAt.IsZero() {
		rateLimit.CreatedAt = now
	}
	rateLimit.UpdatedAt = now

	return svc.db.Save(rateLimit).Error
}

func (svc *SqlService) UpdateRateLimit(rateLimit *model.RateLimit) error {
	return svc.db.Model(rateLimit).Where("id = ?", rateLimit.ID).Updates(map[string]interface{}{
		"count":        rateLimit.Count,
		"window_start": rateLimit.WindowStart,
		"updated_at":   rateLimit.UpdatedAt,
	}).Error
}

func (svc *SqlService) DeleteRateLimit(identifier, kind string) error {
	return svc.db.Where("identifier = ? AND kind = ?", identifier, kind).
		Delete(&model.RateLimit{}).Error
}

func (svc *SqlService) CountRateLimits() (int64, error) {
	var count int64
	err := svc.db.Model(&model.RateLimit{}).Count(&count).Error
	return count, err
}

// CleanupOldRateLimits drops counters whose window lapsed long ago; expired
// rows are reinterpreted as fresh windows anyway, so this is pure hygiene.
func (svc *SqlService) CleanupOldRateLimits(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return svc.db.Where("window_start < ?", cutoff).Delete(&model.RateLimit{}).Error
}

// ==================== ERROR MAPPING ====================

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func (svc *SqlService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound
		errorType = "NOT_FOUND"
	case isUniqueViolation(err):
		statusCode = http.StatusConflict
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest
		errorType = "FOREIGN_KEY_VIOLATION"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError
		errorType = "TRANSACTION_ERROR"
	default:
		if strings.Contains(err.Error(), "no such table") {
			statusCode = http.StatusInternalServerError
			errorType = "SCHEMA_ERROR"
		} else {
			statusCode = http.StatusInternalServerError
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  errorType,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return fmt.Errorf("%s: %w", errorType, err)
}
