package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestCredentialRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewCredentialRepository(db)

	t.Run("put and get round trip", func(t *testing.T) {
		cred := models.NewStoredCredential("subject-1", "device-1", "secret-1", "laptop")
		if err := repo.Put(cred); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, err := repo.Get("subject-1", "device-1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Secret() != "secret-1" {
			t.Errorf("expected secret-1, got %s", got.Secret())
		}
		if got.Label() != "laptop" {
			t.Errorf("expected label laptop, got %s", got.Label())
		}
	})

	t.Run("put overwrites secret for same pair", func(t *testing.T) {
		rotated := models.NewStoredCredential("subject-1", "device-1", "secret-2", "")
		if err := repo.Put(rotated); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, err := repo.Get("subject-1", "device-1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Secret() != "secret-2" {
			t.Errorf("expected rotated secret-2, got %s", got.Secret())
		}
		if got.Label() != "laptop" {
			t.Errorf("empty incoming label should keep stored label, got %q", got.Label())
		}

		creds, err := repo.List("subject-1")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(creds) != 1 {
			t.Errorf("expected exactly one row after overwrite, got %d", len(creds))
		}
	})

	t.Run("latest picks most recently updated", func(t *testing.T) {
		older := models.NewStoredCredential("subject-1", "device-0", "old-secret", "")
		older.SetTimestamps(time.Now().Add(-2*time.Hour), time.Now().Add(-2*time.Hour))
		if err := repo.Put(older); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, err := repo.Latest("subject-1")
		if err != nil {
			t.Fatalf("latest failed: %v", err)
		}
		if got.ID() != "device-1" {
			t.Errorf("expected device-1 as latest, got %s", got.ID())
		}
	})

	t.Run("get missing pair", func(t *testing.T) {
		_, err := repo.Get("subject-1", "no-such-device")
		if !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("delete removes row", func(t *testing.T) {
		if err := repo.Delete("subject-1", "device-0"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := repo.Get("subject-1", "device-0"); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound after delete, got %v", err)
		}
	})

	t.Run("delete missing pair", func(t *testing.T) {
		err := repo.Delete("subject-1", "device-0")
		if !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})
}

func TestEventRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewEventRepository(db)

	events := []models.AuthEvent{
		{SubjectID: "subject-1", Kind: models.EventLogin, Detail: "composite: device"},
		{SubjectID: "subject-1", Kind: models.EventRefresh},
		{SubjectID: "subject-2", Kind: models.EventLogin, Detail: "composite: direct"},
		{SubjectID: "subject-1", Kind: models.EventFailure, Detail: "session failed"},
	}
	for i := range events {
		if err := repo.Append(&events[i]); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if events[i].ID == 0 {
			t.Errorf("append should backfill the row id")
		}
		if events[i].CreatedAt.IsZero() {
			t.Errorf("append should fill a zero CreatedAt")
		}
	}

	t.Run("recent returns newest first", func(t *testing.T) {
		got, err := repo.Recent("", 10)
		if err != nil {
			t.Fatalf("recent failed: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("expected 4 events, got %d", len(got))
		}
		if got[0].Kind != models.EventFailure {
			t.Errorf("expected newest event first, got kind %s", got[0].Kind)
		}
	})

	t.Run("recent narrows to subject", func(t *testing.T) {
		got, err := repo.Recent("subject-2", 10)
		if err != nil {
			t.Fatalf("recent failed: %v", err)
		}
		if len(got) != 1 || got[0].SubjectID != "subject-2" {
			t.Errorf("expected just subject-2's event, got %+v", got)
		}
	})

	t.Run("recent honors limit", func(t *testing.T) {
		got, err := repo.Recent("subject-1", 2)
		if err != nil {
			t.Fatalf("recent failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 events, got %d", len(got))
		}
	})
}

func TestAccountCacheRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewAccountCacheRepository(db)

	account := &models.Account{ID: "acc-1", DisplayName: "PeelyFan42"}
	if err := repo.Put(account); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.Get("acc-1", 0)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.DisplayName != "PeelyFan42" {
			t.Errorf("expected display name PeelyFan42, got %s", got.DisplayName)
		}
	})

	t.Run("get by display name", func(t *testing.T) {
		got, err := repo.ByDisplayName("PeelyFan42", time.Hour)
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if got.ID != "acc-1" {
			t.Errorf("expected id acc-1, got %s", got.ID)
		}
	})

	t.Run("miss on unknown id", func(t *testing.T) {
		if _, err := repo.Get("acc-404", 0); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("put refreshes existing entry", func(t *testing.T) {
		renamed := &models.Account{ID: "acc-1", DisplayName: "PeelyFan43"}
		if err := repo.Put(renamed); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, err := repo.Get("acc-1", 0)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.DisplayName != "PeelyFan43" {
			t.Errorf("expected refreshed name PeelyFan43, got %s", got.DisplayName)
		}
	})

	t.Run("stale entry misses when maxAge set", func(t *testing.T) {
		if _, err := db.Exec("UPDATE account_cache SET fetched_at = ? WHERE subject_id = ?",
			time.Now().Add(-48*time.Hour), "acc-1"); err != nil {
			t.Fatal(err)
		}

		if _, err := repo.Get("acc-1", time.Hour); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss for stale entry, got %v", err)
		}

		// maxAge <= 0 still returns it
		if _, err := repo.Get("acc-1", 0); err != nil {
			t.Errorf("expected stale entry without freshness check, got %v", err)
		}
	})

	t.Run("prune removes stale entries", func(t *testing.T) {
		removed, err := repo.Prune(time.Hour)
		if err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if removed != 1 {
			t.Errorf("expected 1 pruned row, got %d", removed)
		}
		if _, err := repo.Get("acc-1", 0); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss after prune, got %v", err)
		}
	})
}
