package pgstore

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// New opens the postgres pool and exits the process when it can not.
func New(appConfig *config.AppConfig, logger *logger.Logger) *gorm.DB {
	db, err := Open(appConfig.Postgres, appConfig.Environment.IsProduction())
	if err != nil {
		logger.Fatal("[pgstore][New] failed to connect to postgres", map[string]string{
			"host":  appConfig.Postgres.Host,
			"error": err.Error(),
		})
	}

	logger.Info("[pgstore][New] database connected", map[string]string{
		"host":           appConfig.Postgres.Host,
		"name":           appConfig.Postgres.Name,
		"max_open_conns": fmt.Sprintf("%d", appConfig.Postgres.MaxOpenConns),
	})
	return db
}

// Open connects with the pool limits of conn. Production keeps gorm quiet
// except for errors.
func Open(conn config.DBConnection, quiet bool) (*gorm.DB, error) {
	level := gormlogger.Warn
	if quiet {
		level = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(conn.DSN()), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(conn.MaxOpenConns)
	sqlDB.SetMaxIdleConns(conn.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(conn.ConnMaxLifetime)
	return db, nil
}
