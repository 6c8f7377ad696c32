package services

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/encorelab/encore-api/model"
)

// newTestSqlService opens a private in-memory database per test so cases
// can't bleed into each other.
func newTestSqlService(t *testing.T) *SqlService {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&model.QueueEntry{}, &model.RateLimit{}))

	return &SqlService{db: db, driver: "sqlite"}
}

func newTestRateLimitService(t *testing.T, sqlSvc *SqlService) *RateLimitService {
	t.Helper()

	svc := &RateLimitService{sqlSvc: sqlSvc}
	svc.initDefaultConfigs()
	return svc
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
