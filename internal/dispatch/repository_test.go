package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/video-route/internal/infrastructure/database"
	_ "github.com/nerrad567/video-route/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "history.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_CreateGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 20, 15, 0, 123456000, time.UTC)
	exec := &Execution{
		Address: "consoles|snes",
		Source:  SourceAPI,
		Status:  StatusPartial,
		Results: []EndpointResult{
			{Endpoint: "crosspoint", Kind: "serial", Commands: 2, OK: true, DurationMS: 12},
			{Endpoint: "scaler", Kind: "telnet", Commands: 1, Error: "connection refused"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(40 * time.Millisecond),
		DurationMS: 40,
	}
	if err := repo.Create(ctx, exec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if exec.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.Get(ctx, exec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Address != exec.Address || got.Status != StatusPartial || got.DurationMS != 40 {
		t.Errorf("Get() = %+v", got)
	}
	if !got.StartedAt.Equal(started) || !got.FinishedAt.Equal(exec.FinishedAt) {
		t.Errorf("timestamps = %v / %v", got.StartedAt, got.FinishedAt)
	}
	if len(got.Results) != 2 || got.Results[1].Error != "connection refused" || !got.Results[0].OK {
		t.Errorf("Results = %+v", got.Results)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Get(context.Background(), "dsp-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_ListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i, addr := range []string{"a|one", "a|two", "a|three"} {
		exec := &Execution{
			Address:   addr,
			Source:    SourceMQTT,
			Status:    StatusNoMatch,
			Error:     "no such source",
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(ctx, exec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Address != "a|three" || got[1].Address != "a|two" {
		t.Errorf("List(2) = %+v", got)
	}
	if got[0].Error != "no such source" || got[0].Results == nil {
		t.Errorf("List()[0] = %+v", got[0])
	}

	all, err := repo.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("List(0) = %d items, %v; want 3", len(all), err)
	}
}

func TestSQLiteRepository_WithDispatcher(t *testing.T) {
	repo := newTestRepo(t)
	d, _, _, _, _, _ := newTestDispatcher(t, &fakeSender{})
	d.repo = repo

	exec := d.ResolveAndDispatch(context.Background(), "consoles|snes", SourceCLI)
	got, err := repo.Get(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCompleted || len(got.Results) != 2 {
		t.Errorf("stored = %+v", got)
	}
}
