package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/iot-core/internal/infrastructure/database"
	_ "github.com/nerrad567/iot-core/migrations"
)

var t0 = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(NewSQLiteRepository(openTestDB(t).DB))
}

func cmd(id, device, action string, at time.Time) DeviceCommand {
	return DeviceCommand{ID: id, DeviceID: device, Action: action, IssuedAt: at, IssuedBy: "tester"}
}

func outcome(id string, r Result, detail string) *HistoryAction {
	return &HistoryAction{CommandID: id, Result: r, CompletedAt: t0.Add(time.Hour), Detail: detail}
}

func TestLog_AppendWithOutcome(t *testing.T) {
	l := newTestLog(t)

	e, err := l.Append(context.Background(), cmd("c1", "device1", "on", t0), outcome("", ResultSuccess, ""))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if e.History == nil || e.History.CommandID != "c1" {
		t.Errorf("History = %+v, want outcome attached to c1", e.History)
	}
	if l.Count() != 1 {
		t.Errorf("Count() = %d, want 1", l.Count())
	}
}

func TestLog_AppendValidation(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		cmd     DeviceCommand
		action  *HistoryAction
		wantErr error
	}{
		{"missing id", cmd("", "d1", "on", t0), nil, ErrInvalidCommand},
		{"missing device", cmd("c1", "", "on", t0), nil, ErrInvalidCommand},
		{"missing action", cmd("c1", "d1", "", t0), nil, ErrInvalidCommand},
		{"missing issued at", cmd("c1", "d1", "on", time.Time{}), nil, ErrInvalidCommand},
		{"outcome for other command", cmd("c1", "d1", "on", t0), outcome("c2", ResultSuccess, ""), ErrOrphanHistory},
		{"unknown result", cmd("c1", "d1", "on", t0), outcome("c1", "maybe", ""), ErrInvalidHistory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Append(ctx, tt.cmd, tt.action); !errors.Is(err, tt.wantErr) {
				t.Errorf("Append() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if l.Count() != 0 {
		t.Errorf("Count() = %d after rejected appends, want 0", l.Count())
	}
}

func TestLog_DuplicateCommand(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	if _, err := l.Append(ctx, cmd("c1", "d1", "on", t0), nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := l.Append(ctx, cmd("c1", "d1", "off", t0), nil); !errors.Is(err, ErrCommandExists) {
		t.Errorf("second Append() error = %v, want ErrCommandExists", err)
	}
}

func TestLog_Record(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	if _, err := l.Append(ctx, cmd("c1", "d1", "on", t0), nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	before := l.Snapshot()

	e, err := l.Record(ctx, *outcome("c1", ResultFailure, "timeout on bus"))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.History.Result != ResultFailure {
		t.Errorf("Result = %s, want failure", e.History.Result)
	}

	if got, _ := before.Get("c1"); got.History != nil {
		t.Error("older snapshot observed the recorded outcome")
	}

	if _, err := l.Record(ctx, *outcome("c1", ResultSuccess, "")); !errors.Is(err, ErrHistoryExists) {
		t.Errorf("second Record() error = %v, want ErrHistoryExists", err)
	}
	if _, err := l.Record(ctx, *outcome("ghost", ResultSuccess, "")); !errors.Is(err, ErrOrphanHistory) {
		t.Errorf("Record(ghost) error = %v, want ErrOrphanHistory", err)
	}
}

func TestLog_ReadAllOrdering(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	// Appended out of issued_at order; equal times keep insertion order.
	for _, c := range []DeviceCommand{
		cmd("c3", "d1", "on", t0.Add(2*time.Minute)),
		cmd("c1", "d1", "on", t0),
		cmd("c2a", "d2", "off", t0.Add(time.Minute)),
		cmd("c2b", "d3", "on", t0.Add(time.Minute)),
	} {
		if _, err := l.Append(ctx, c, nil); err != nil {
			t.Fatalf("Append(%s) error = %v", c.ID, err)
		}
	}

	want := []string{"c1", "c2a", "c2b", "c3"}
	got := l.ReadAll()
	for i, w := range want {
		if got[i].Command.ID != w {
			t.Errorf("ReadAll()[%d] = %s, want %s", i, got[i].Command.ID, w)
		}
	}
}

func TestLog_LoadRebuildsFromRepository(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t).DB)
	ctx := context.Background()

	first := NewLog(repo)
	if _, err := first.Append(ctx, cmd("c1", "d1", "on", t0), outcome("c1", ResultSuccess, "ok")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := first.Append(ctx, cmd("c2", "d2", "off", t0.Add(time.Second)), nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	second := NewLog(repo)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	entries := second.ReadAll()
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].History == nil || entries[0].History.Detail != "ok" {
		t.Errorf("c1 history = %+v", entries[0].History)
	}
	if entries[1].History != nil {
		t.Errorf("c2 history = %+v, want nil", entries[1].History)
	}
	if !entries[0].Command.IssuedAt.Equal(t0) {
		t.Errorf("IssuedAt = %v, want %v", entries[0].Command.IssuedAt, t0)
	}

	// Outcome attached after reload persists too.
	if _, err := second.Record(ctx, *outcome("c2", ResultPending, "")); err != nil {
		t.Fatalf("Record() after reload error = %v", err)
	}
}

type failingRepo struct{ Repository }

func (failingRepo) InsertCommand(context.Context, DeviceCommand, *HistoryAction) (int64, error) {
	return 0, errors.New("disk full")
}

func TestLog_FailedPersistLeavesStateIntact(t *testing.T) {
	l := NewLog(failingRepo{})
	if _, err := l.Append(context.Background(), cmd("c1", "d1", "on", t0), nil); err == nil {
		t.Fatal("Append() error = nil, want persistence error")
	}
	if l.Count() != 0 {
		t.Errorf("Count() = %d, want 0", l.Count())
	}
}
