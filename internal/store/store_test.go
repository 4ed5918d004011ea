package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindredhq/intake/internal/config"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/profile"
)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns a strictly increasing time so List ordering is deterministic.
func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newClock() *tickingClock {
	return &tickingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func sampleRecord(name string) profile.Record {
	ref := media.Reference{
		ID:          "ref-1",
		URL:         "/preview/ref-1",
		FileName:    "me.png",
		ContentType: media.MIMEPNG,
		Size:        1024,
		Width:       64,
		Height:      64,
		StagedAt:    time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	return profile.Record{
		Name:                 name,
		Age:                  "30",
		Email:                name + "@example.com",
		ProfileImage:         &ref,
		FamilyValues:         "balanced",
		Religion:             "none",
		CareerGoals:          "ambitious",
		FinancialPriorities:  "saver",
		LifestylePreferences: []string{"active"},
		MarriageGoals:        "A loving partnership",
		ChildrenStance:       "open",
		ConflictStyle:        "talk-it-out",
		PersonalityTraits:    []string{"honest", "funny", "caring"},
		Gallery:              media.Gallery{ref, ref},
	}
}

// exercise runs the behavior every ProfileStore must share.
func exercise(t *testing.T, s ProfileStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	ada := sampleRecord("ada")
	id, err := s.Save(ctx, "s-1", ada)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.SessionID)
	if diff := cmp.Diff(ada, got.Record); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Get(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Save(ctx, "s-2", sampleRecord("grace"))
	require.NoError(t, err)
	_, err = s.Save(ctx, "s-3", sampleRecord("hedy"))
	require.NoError(t, err)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, sub := range all {
		names = append(names, sub.Record.Name)
	}
	assert.Equal(t, []string{"hedy", "grace", "ada"}, names)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	require.NoError(t, s.Close())
	_, err = s.Save(ctx, "s-4", ada)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore(WithClock(newClock().Now)))
}

func TestMemoryStoreIsolatesRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := sampleRecord("ada")
	id, err := s.Save(ctx, "s-1", rec)
	require.NoError(t, err)

	rec.PersonalityTraits[0] = "changed"
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "honest", got.Record.PersonalityTraits[0])
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "intake.db")
	s, err := NewSQLiteStore(context.Background(), WithDSN(path), WithClock(newClock().Now))
	require.NoError(t, err)
	exercise(t, s)

	// Migrations are idempotent and data survives reopening.
	reopened, err := NewSQLiteStore(context.Background(), WithDSN(path))
	require.NoError(t, err)
	defer reopened.Close()
	all, err := reopened.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("INTAKE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INTAKE_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), WithDSN(dsn), WithClock(newClock().Now))
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	_, err = s.db.Exec("DELETE FROM profiles")
	require.NoError(t, err)
	exercise(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, config.DriverSQLite, "")
	assert.ErrorIs(t, err, ErrNoDSN)
	_, err = Open(ctx, config.DriverPostgres, "")
	assert.ErrorIs(t, err, ErrNoDSN)

	_, err = Open(ctx, "mongo", "x")
	assert.Error(t, err)
}
