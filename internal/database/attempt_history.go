package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/peerlink-network/peerlink-node/internal/bootstrap"
)

// AttemptRecord is one persisted row of the attempt history.
type AttemptRecord struct {
	ID        string
	Address   string
	Method    string
	Priority  int
	Status    string
	StartTime time.Time
	EndTime   time.Time // zero when the attempt never reached a terminal state
	Error     string
	PeerCount int
}

// SaveAttempt persists one attempt record. Implements bootstrap.AttemptStore.
func (sqlm *SQLiteManager) SaveAttempt(attempt bootstrap.BootstrapAttempt) error {
	var endTime sql.NullInt64
	if !attempt.EndTime.IsZero() {
		endTime = sql.NullInt64{Int64: attempt.EndTime.UnixMilli(), Valid: true}
	}

	_, err := sqlm.db.Exec(`
		INSERT OR REPLACE INTO attempt_history
			(id, address, method, priority, status, start_time, end_time, error, peer_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.Candidate.Address,
		attempt.Candidate.Method.String(),
		attempt.Candidate.Priority,
		attempt.Status.String(),
		attempt.StartTime.UnixMilli(),
		endTime,
		attempt.Error,
		attempt.PeerCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save attempt %s: %v", attempt.ID, err)
	}

	return nil
}

// GetRecentAttempts returns up to limit attempt records, newest first.
func (sqlm *SQLiteManager) GetRecentAttempts(limit int) ([]AttemptRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := sqlm.db.Query(`
		SELECT id, address, method, priority, status, start_time, end_time, error, peer_count
		FROM attempt_history
		ORDER BY start_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt history: %v", err)
	}
	defer rows.Close()

	var records []AttemptRecord
	for rows.Next() {
		var record AttemptRecord
		var startMillis int64
		var endMillis sql.NullInt64
		var errMsg sql.NullString

		if err := rows.Scan(&record.ID, &record.Address, &record.Method, &record.Priority,
			&record.Status, &startMillis, &endMillis, &errMsg, &record.PeerCount); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %v", err)
		}

		record.StartTime = time.UnixMilli(startMillis)
		if endMillis.Valid {
			record.EndTime = time.UnixMilli(endMillis.Int64)
		}
		if errMsg.Valid {
			record.Error = errMsg.String
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

// PruneAttemptHistory keeps only the newest maxRows records.
func (sqlm *SQLiteManager) PruneAttemptHistory(maxRows int) error {
	if maxRows <= 0 {
		return nil
	}

	_, err := sqlm.db.Exec(`
		DELETE FROM attempt_history
		WHERE id NOT IN (
			SELECT id FROM attempt_history ORDER BY start_time DESC LIMIT ?
		)`, maxRows)
	if err != nil {
		return fmt.Errorf("failed to prune attempt history: %v", err)
	}

	return nil
}

// CustomServerRecord is one persisted operator-registered bootstrap server.
type CustomServerRecord struct {
	Address  string
	Priority int
	Timeout  time.Duration
	AddedAt  time.Time
}

// SaveCustomServer stores or updates an operator-registered server so it
// survives restarts.
func (sqlm *SQLiteManager) SaveCustomServer(address string, priority int, timeout time.Duration) error {
	if address == "" {
		return fmt.Errorf("custom server address must not be empty")
	}

	_, err := sqlm.db.Exec(`
		INSERT OR REPLACE INTO custom_servers (address, priority, timeout_ms, added_at)
		VALUES (?, ?, ?, ?)`,
		address, priority, timeout.Milliseconds(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save custom server %s: %v", address, err)
	}

	return nil
}

// GetCustomServers returns all persisted custom servers in registration order.
func (sqlm *SQLiteManager) GetCustomServers() ([]CustomServerRecord, error) {
	rows, err := sqlm.db.Query(`
		SELECT address, priority, timeout_ms, added_at
		FROM custom_servers
		ORDER BY added_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom servers: %v", err)
	}
	defer rows.Close()

	var records []CustomServerRecord
	for rows.Next() {
		var record CustomServerRecord
		var timeoutMillis, addedMillis int64

		if err := rows.Scan(&record.Address, &record.Priority, &timeoutMillis, &addedMillis); err != nil {
			return nil, fmt.Errorf("failed to scan custom server row: %v", err)
		}

		record.Timeout = time.Duration(timeoutMillis) * time.Millisecond
		record.AddedAt = time.UnixMilli(addedMillis)
		records = append(records, record)
	}

	return records, rows.Err()
}

// RemoveCustomServer deletes a persisted custom server.
func (sqlm *SQLiteManager) RemoveCustomServer(address string) error {
	_, err := sqlm.db.Exec(`DELETE FROM custom_servers WHERE address = ?`, address)
	if err != nil {
		return fmt.Errorf("failed to remove custom server %s: %v", address, err)
	}
	return nil
}
