package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/peerlink-network/peerlink-node/internal/utils"
	_ "modernc.org/sqlite"
)

// SQLiteManager handles all database operations
type SQLiteManager struct {
	dir    string
	cm     *utils.ConfigManager
	db     *sql.DB
	logger *utils.LogsManager
}

// NewSQLiteManager opens the node database and prepares the bootstrap tables.
func NewSQLiteManager(cm *utils.ConfigManager, logger *utils.LogsManager) (*SQLiteManager, error) {
	paths := utils.GetAppPaths("")
	sqlm := &SQLiteManager{
		dir:    paths.DataDir,
		cm:     cm,
		logger: logger,
	}

	db, err := sqlm.CreateConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %v", err)
	}
	sqlm.db = db

	if err := sqlm.InitAttemptHistoryTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize attempt_history table: %v", err)
	}

	if err := sqlm.InitCustomServersTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize custom_servers table: %v", err)
	}

	return sqlm, nil
}

// CreateConnection opens the SQLite file with settings for concurrent access.
func (sqlm *SQLiteManager) CreateConnection() (*sql.DB, error) {
	// Make sure we have os specific path separator since we are adding this path to host's path
	dbFileName := sqlm.cm.GetConfigWithDefault("database_file", "./peerlink-node.db")
	switch runtime.GOOS {
	case "linux", "darwin":
		dbFileName = filepath.ToSlash(dbFileName)
	case "windows":
		dbFileName = filepath.FromSlash(dbFileName)
	default:
		return nil, fmt.Errorf("unsupported OS type `%s`", runtime.GOOS)
	}

	// Absolute paths (tests, operator overrides) are honored as-is
	path := dbFileName
	if !filepath.IsAbs(dbFileName) {
		path = filepath.Join(sqlm.dir, dbFileName)
	}

	db, err := sql.Open("sqlite",
		fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1&_synchronous=NORMAL", path))
	if err != nil {
		sqlm.logger.Error(fmt.Sprintf("Can not create database connection. (%s)", err.Error()), "database")
		return nil, err
	}

	// Attempt tasks write concurrently with CLI reads
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		sqlm.logger.Error(fmt.Sprintf("Failed to enable foreign keys: %s", err.Error()), "database")
		return nil, err
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		sqlm.logger.Warn(fmt.Sprintf("Failed to enable WAL mode: %s", err.Error()), "database")
	}

	return db, nil
}

// InitAttemptHistoryTable creates the attempt_history table if missing.
func (sqlm *SQLiteManager) InitAttemptHistoryTable() error {
	_, err := sqlm.db.Exec(`
		CREATE TABLE IF NOT EXISTS attempt_history (
			id TEXT PRIMARY KEY,
			address TEXT NOT NULL,
			method TEXT NOT NULL,
			priority INTEGER NOT NULL,
			status TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			error TEXT,
			peer_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_attempt_history_start_time ON attempt_history(start_time);
		CREATE INDEX IF NOT EXISTS idx_attempt_history_address ON attempt_history(address);
	`)
	return err
}

// InitCustomServersTable creates the custom_servers table if missing.
func (sqlm *SQLiteManager) InitCustomServersTable() error {
	_, err := sqlm.db.Exec(`
		CREATE TABLE IF NOT EXISTS custom_servers (
			address TEXT PRIMARY KEY,
			priority INTEGER NOT NULL,
			timeout_ms INTEGER NOT NULL,
			added_at INTEGER NOT NULL
		);
	`)
	return err
}

// DB exposes the underlying handle for specialized managers
func (sqlm *SQLiteManager) DB() *sql.DB {
	return sqlm.db
}

// Close closes the database connection
func (sqlm *SQLiteManager) Close() error {
	if sqlm.db != nil {
		return sqlm.db.Close()
	}
	return nil
}
