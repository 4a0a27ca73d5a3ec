package migrations

import (
	"context"
	"testing"

	"github.com/nerrad567/iot-core/internal/infrastructure/database"
)

func openMigrated(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestSchemaApplies(t *testing.T) {
	db := openMigrated(t)

	for _, table := range []string{"sensor_readings", "device_commands", "history_actions"} {
		var n int
		err := db.QueryRowContext(context.Background(),
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&n)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestSchemaIsAppendOnly(t *testing.T) {
	db := openMigrated(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"INSERT INTO sensor_readings (sensor_id, ts, value, unit) VALUES ('s1', 1, 20.5, 'C')",
	); err != nil {
		t.Fatalf("insert reading: %v", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE sensor_readings SET value = 0"); err == nil {
		t.Error("UPDATE sensor_readings succeeded, want abort")
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM sensor_readings"); err == nil {
		t.Error("DELETE FROM sensor_readings succeeded, want abort")
	}
}

func TestSchemaRejectsOrphanHistory(t *testing.T) {
	db := openMigrated(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		"INSERT INTO history_actions (command_id, result, completed_at) VALUES ('nope', 'success', 1)",
	)
	if err == nil {
		t.Error("orphan history insert succeeded, want foreign key error")
	}
}

func TestSchemaRejectsUnknownResult(t *testing.T) {
	db := openMigrated(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"INSERT INTO device_commands (command_id, device_id, action, issued_at) VALUES ('c1', 'd1', 'on', 1)",
	); err != nil {
		t.Fatalf("insert command: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO history_actions (command_id, result, completed_at) VALUES ('c1', 'maybe', 1)",
	); err == nil {
		t.Error("history with unknown result succeeded, want check failure")
	}
}

func TestSchemaRollsBack(t *testing.T) {
	db := openMigrated(t)
	if err := db.MigrateDown(context.Background()); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
}
