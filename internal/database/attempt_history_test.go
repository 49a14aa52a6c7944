package database

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/peerlink-network/peerlink-node/internal/bootstrap"
	"github.com/peerlink-network/peerlink-node/internal/utils"
)

func setupTestDB(t *testing.T) *SQLiteManager {
	t.Helper()

	cm := utils.NewConfigManager("")
	cm.SetConfig("database_file", filepath.Join(t.TempDir(), "test.db"))
	logger := utils.NewLogsManager(cm)

	db, err := NewSQLiteManager(cm, logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func testAttempt(address string, status bootstrap.AttemptStatus, startTime time.Time) bootstrap.BootstrapAttempt {
	attempt := bootstrap.BootstrapAttempt{
		ID:        uuid.NewString(),
		Candidate: bootstrap.NewBootstrapCandidate(address, bootstrap.MethodKnownRendezvous, 50, 10*time.Second),
		Status:    status,
		StartTime: startTime,
	}
	if status.IsTerminal() {
		attempt.EndTime = startTime.Add(200 * time.Millisecond)
	}
	switch status {
	case bootstrap.AttemptSuccess:
		attempt.PeerCount = 7
	case bootstrap.AttemptFailed:
		attempt.Error = "connection refused"
	case bootstrap.AttemptTimedOut:
		attempt.Error = "connection attempt timed out after 10s"
	}
	return attempt
}

func TestSaveAndGetRecentAttempts(t *testing.T) {
	db := setupTestDB(t)

	base := time.Now().Add(-time.Minute)
	success := testAttempt("rendezvous1.example:30906", bootstrap.AttemptSuccess, base)
	failed := testAttempt("rendezvous2.example:30906", bootstrap.AttemptFailed, base.Add(time.Second))
	abandoned := testAttempt("rendezvous3.example:30906", bootstrap.AttemptInProgress, base.Add(2*time.Second))

	for _, attempt := range []bootstrap.BootstrapAttempt{success, failed, abandoned} {
		if err := db.SaveAttempt(attempt); err != nil {
			t.Fatalf("SaveAttempt failed: %v", err)
		}
	}

	records, err := db.GetRecentAttempts(10)
	if err != nil {
		t.Fatalf("GetRecentAttempts failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	// Newest first
	if records[0].Address != "rendezvous3.example:30906" {
		t.Errorf("Expected newest record first, got %s", records[0].Address)
	}

	byAddress := make(map[string]AttemptRecord)
	for _, record := range records {
		byAddress[record.Address] = record
	}

	got := byAddress["rendezvous1.example:30906"]
	if got.Status != "success" {
		t.Errorf("Expected success status, got %s", got.Status)
	}
	if got.PeerCount != 7 {
		t.Errorf("Expected peer count 7, got %d", got.PeerCount)
	}
	if got.Method != "known_rendezvous" {
		t.Errorf("Expected known_rendezvous method, got %s", got.Method)
	}
	if got.EndTime.IsZero() {
		t.Error("Expected end time on terminal record")
	}

	if byAddress["rendezvous2.example:30906"].Error != "connection refused" {
		t.Errorf("Expected failure reason to round-trip, got %q", byAddress["rendezvous2.example:30906"].Error)
	}

	// A record abandoned mid-flight has no end time
	if !byAddress["rendezvous3.example:30906"].EndTime.IsZero() {
		t.Error("Expected zero end time for non-terminal record")
	}
}

func TestSaveAttemptUpsertsByID(t *testing.T) {
	db := setupTestDB(t)

	attempt := testAttempt("rendezvous1.example:30906", bootstrap.AttemptInProgress, time.Now())
	if err := db.SaveAttempt(attempt); err != nil {
		t.Fatalf("SaveAttempt failed: %v", err)
	}

	attempt.Status = bootstrap.AttemptSuccess
	attempt.EndTime = attempt.StartTime.Add(time.Second)
	attempt.PeerCount = 3
	if err := db.SaveAttempt(attempt); err != nil {
		t.Fatalf("SaveAttempt update failed: %v", err)
	}

	records, err := db.GetRecentAttempts(10)
	if err != nil {
		t.Fatalf("GetRecentAttempts failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected upsert to keep a single row, got %d", len(records))
	}
	if records[0].Status != "success" || records[0].PeerCount != 3 {
		t.Errorf("Expected updated row, got status %s with %d peers", records[0].Status, records[0].PeerCount)
	}
}

func TestGetRecentAttemptsHonorsLimit(t *testing.T) {
	db := setupTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		attempt := testAttempt(fmt.Sprintf("node%d.example:30906", i), bootstrap.AttemptSuccess, base.Add(time.Duration(i)*time.Second))
		if err := db.SaveAttempt(attempt); err != nil {
			t.Fatalf("SaveAttempt failed: %v", err)
		}
	}

	records, err := db.GetRecentAttempts(2)
	if err != nil {
		t.Fatalf("GetRecentAttempts failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Address != "node4.example:30906" || records[1].Address != "node3.example:30906" {
		t.Errorf("Expected two newest records, got %s and %s", records[0].Address, records[1].Address)
	}
}

func TestPruneAttemptHistory(t *testing.T) {
	db := setupTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		attempt := testAttempt(fmt.Sprintf("node%d.example:30906", i), bootstrap.AttemptFailed, base.Add(time.Duration(i)*time.Second))
		if err := db.SaveAttempt(attempt); err != nil {
			t.Fatalf("SaveAttempt failed: %v", err)
		}
	}

	if err := db.PruneAttemptHistory(3); err != nil {
		t.Fatalf("PruneAttemptHistory failed: %v", err)
	}

	records, err := db.GetRecentAttempts(10)
	if err != nil {
		t.Fatalf("GetRecentAttempts failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records after prune, got %d", len(records))
	}
	for _, record := range records {
		if record.Address == "node0.example:30906" || record.Address == "node1.example:30906" {
			t.Errorf("Expected oldest records pruned, found %s", record.Address)
		}
	}
}

func TestCustomServerLifecycle(t *testing.T) {
	db := setupTestDB(t)

	if err := db.SaveCustomServer("custom1.example:9000", 10, 8*time.Second); err != nil {
		t.Fatalf("SaveCustomServer failed: %v", err)
	}
	if err := db.SaveCustomServer("custom2.example:9000", 20, 12*time.Second); err != nil {
		t.Fatalf("SaveCustomServer failed: %v", err)
	}

	servers, err := db.GetCustomServers()
	if err != nil {
		t.Fatalf("GetCustomServers failed: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("Expected 2 servers, got %d", len(servers))
	}

	first := servers[0]
	if first.Address != "custom1.example:9000" {
		t.Errorf("Expected registration order, got %s first", first.Address)
	}
	if first.Priority != 10 {
		t.Errorf("Expected priority 10, got %d", first.Priority)
	}
	if first.Timeout != 8*time.Second {
		t.Errorf("Expected timeout 8s, got %v", first.Timeout)
	}

	// Re-registering the same address updates in place
	if err := db.SaveCustomServer("custom1.example:9000", 5, 8*time.Second); err != nil {
		t.Fatalf("SaveCustomServer update failed: %v", err)
	}
	servers, err = db.GetCustomServers()
	if err != nil {
		t.Fatalf("GetCustomServers failed: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("Expected update not to add a row, got %d servers", len(servers))
	}

	if err := db.RemoveCustomServer("custom1.example:9000"); err != nil {
		t.Fatalf("RemoveCustomServer failed: %v", err)
	}
	servers, err = db.GetCustomServers()
	if err != nil {
		t.Fatalf("GetCustomServers failed: %v", err)
	}
	if len(servers) != 1 || servers[0].Address != "custom2.example:9000" {
		t.Errorf("Expected only custom2 to remain, got %v", servers)
	}

	if err := db.SaveCustomServer("", 1, time.Second); err == nil {
		t.Error("Expected error for empty server address")
	}
}
