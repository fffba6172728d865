package decision

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/luxbridge/internal/infrastructure/config"
	"github.com/nerrad567/luxbridge/internal/infrastructure/database"
	"github.com/nerrad567/luxbridge/migrations"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "decisions.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS, migrations.Dir); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func lux(v float64) *float64 { return &v }

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := openTestRepo(t)

	rec := &Record{Lux: lux(150), Command: "down", Threshold: 200, Topic: "id/jihoon/light/lux"}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(rec.ID) < 5 || rec.ID[:4] != "dec-" {
		t.Errorf("ID = %q, want dec- prefix", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCreate_RejectsUnknownCommand(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.Create(context.Background(), &Record{Lux: lux(1), Command: "stop", Topic: "t"})
	if !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Create() error = %v, want ErrInvalidCommand", err)
	}
}

func TestCreate_NonFiniteLuxStoredAsNull(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	rec := &Record{Lux: lux(math.NaN()), Command: "up", Threshold: 200, Topic: "id/jihoon/light/lux"}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.Lux != nil {
		t.Errorf("Lux = %v after Create, want nil", *rec.Lux)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Decisions) != 1 || result.Decisions[0].Lux != nil {
		t.Errorf("stored lux = %+v, want null", result.Decisions)
	}
}

func TestList_OrderAndRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	inputs := []Record{
		{Lux: lux(150), Command: "down", Threshold: 200, Topic: "id/jihoon/light/lux", CreatedAt: base},
		{Lux: lux(300), Command: "up", Threshold: 200, Topic: "id/jihoon/light/lux", CreatedAt: base.Add(time.Millisecond)},
		{Lux: lux(200), Command: "down", Threshold: 200, Topic: "id/jihoon/light/lux", CreatedAt: base.Add(2 * time.Millisecond)},
	}
	for i := range inputs {
		if err := repo.Create(ctx, &inputs[i]); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 3 || len(result.Decisions) != 3 {
		t.Fatalf("Total=%d len=%d, want 3/3", result.Total, len(result.Decisions))
	}

	first := result.Decisions[0]
	if first.ID != inputs[2].ID {
		t.Errorf("first ID = %s, want most recent %s", first.ID, inputs[2].ID)
	}
	if first.Lux == nil || *first.Lux != 200 || first.Command != "down" || first.Threshold != 200 {
		t.Errorf("first = %+v", first)
	}
	if !first.CreatedAt.Equal(inputs[2].CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, inputs[2].CreatedAt)
	}
	if result.Limit != defaultLimit || result.Offset != 0 {
		t.Errorf("Limit=%d Offset=%d", result.Limit, result.Offset)
	}
}

func TestList_Filters(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		cmd := "down"
		if i%2 == 1 {
			cmd = "up"
		}
		rec := &Record{
			Lux:       lux(float64(i * 50)),
			Command:   cmd,
			Threshold: 200,
			Topic:     "id/jihoon/light/lux",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
	}{
		{"all", Filter{}, 10, 10},
		{"up only", Filter{Command: "up"}, 5, 5},
		{"down page", Filter{Command: "down", Limit: 2}, 5, 2},
		{"offset past end", Filter{Offset: 20}, 10, 0},
		{"since", Filter{Since: base.Add(7 * time.Minute)}, 3, 3},
		{"negative offset clamps", Filter{Offset: -4, Limit: 3}, 10, 3},
		{"limit clamps", Filter{Limit: 5000}, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
			if len(result.Decisions) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(result.Decisions), tt.wantLen)
			}
			if result.Limit > maxLimit {
				t.Errorf("Limit = %d exceeds max", result.Limit)
			}
			for _, d := range result.Decisions {
				if tt.filter.Command != "" && d.Command != tt.filter.Command {
					t.Errorf("got command %q with filter %q", d.Command, tt.filter.Command)
				}
			}
		})
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	repo := openTestRepo(t)

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Decisions == nil {
		t.Error("Decisions = nil, want empty slice for JSON []")
	}
}
