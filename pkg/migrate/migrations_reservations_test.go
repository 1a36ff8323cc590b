package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReservationsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_reservations.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no reservations migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS reservations",
		"FOREIGN KEY (storage_unit_id) REFERENCES storage_units(id) ON DELETE CASCADE",
		"CHECK (end_at > start_at)",
		"CHECK (item_count >= 1)",
		"scan_token TEXT NOT NULL UNIQUE",
		"idx_reservations_storage_window",
		"DROP TABLE IF EXISTS reservations",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
