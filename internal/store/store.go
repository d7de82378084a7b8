// Package store persists per-device LoRaWAN frame-counter state so the
// framing shim can detect replayed or regressed frames across process
// restarts.
package store

import (
	"database/sql"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Config holds store configuration.
type Config struct {
	Path string // Path to the SQLite database file, or ":memory:" for tests.
}

// Store wraps the GORM database instance backing DeviceSession records.
type Store struct {
	db *gorm.DB
}

// NewStore opens (creating if needed) a SQLite-backed session store using
// the pure-Go sqlite driver, and migrates the DeviceSession schema.
func NewStore(config Config, l *log.Logger) (*Store, error) {
	var gormLog logger.Interface
	if l != nil {
		gormLog = logger.New(
			l,
			logger.Config{
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	} else {
		gormLog = logger.Default.LogMode(logger.Silent)
	}

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        config.Path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&DeviceSession{}); err != nil {
		return nil, err
	}

	if l != nil {
		l.Printf("session store initialized: %s", config.Path)
	}

	return &Store{db: db}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

// CheckAndAdvance reports whether fcnt is a replay (less than or equal to
// the device's last-seen counter) and, if not, advances the stored
// counter. A device seen for the first time is never a replay.
func (s *Store) CheckAndAdvance(devAddr, fcnt uint32) (replayed bool, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var session DeviceSession
		txErr := tx.Where("dev_addr = ?", devAddr).First(&session).Error
		switch {
		case txErr == gorm.ErrRecordNotFound:
			session = DeviceSession{DevAddr: devAddr, LastFCnt: fcnt, SeenCount: 1, UpdatedAt: time.Now()}
			return tx.Create(&session).Error
		case txErr != nil:
			return txErr
		}

		if fcnt <= session.LastFCnt {
			replayed = true
			session.SeenCount++
			session.UpdatedAt = time.Now()
			return tx.Save(&session).Error
		}

		session.LastFCnt = fcnt
		session.SeenCount++
		session.UpdatedAt = time.Now()
		return tx.Save(&session).Error
	})
	return replayed, err
}

// GetSession returns the stored session for devAddr, or
// gorm.ErrRecordNotFound if the device has never been seen.
func (s *Store) GetSession(devAddr uint32) (*DeviceSession, error) {
	var session DeviceSession
	if err := s.db.Where("dev_addr = ?", devAddr).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
