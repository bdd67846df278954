package formatter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/session"
)

func sampleAccounts() []models.Account {
	return []models.Account{
		{
			ID:          "acc-1",
			DisplayName: "Kestrel",
			ExternalAuths: []models.ExternalAuth{
				{Type: "psn", DisplayName: "kestrel_psn"},
			},
		},
		{ID: "acc-2", DisplayName: "PeelyFan42"},
	}
}

func TestFormatAccounts(t *testing.T) {
	t.Run("renders one row per account", func(t *testing.T) {
		out := FormatAccounts(sampleAccounts())

		if !strings.Contains(out, "DISPLAY NAME") {
			t.Error("expected header row")
		}
		if !strings.Contains(out, "acc-1") || !strings.Contains(out, "Kestrel") {
			t.Error("expected first account row")
		}
		if !strings.Contains(out, "psn") {
			t.Error("expected linked auth type")
		}
		if lines := strings.Count(out, "\n"); lines != 3 {
			t.Errorf("expected 3 lines (header + 2 rows), got %d", lines)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if out := FormatAccounts(nil); !strings.Contains(out, "no accounts") {
			t.Errorf("unexpected empty rendering %q", out)
		}
	})
}

func TestFormatDeviceCredentials(t *testing.T) {
	created := &models.DeviceCredentialEvent{
		Location: "Rotterdam, NL",
		DateTime: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	out := FormatDeviceCredentials([]models.DeviceCredentialInfo{
		{DeviceID: "dev-1", SubjectID: "acc-1", Created: created},
		{DeviceID: "dev-2", SubjectID: "acc-1"},
	})

	if !strings.Contains(out, "dev-1") || !strings.Contains(out, "Rotterdam, NL") {
		t.Errorf("expected device row with location, got %q", out)
	}
	if !strings.Contains(out, "dev-2") {
		t.Error("expected row for credential without events")
	}
}

func TestFormatStoredCredentials(t *testing.T) {
	cred := models.NewStoredCredential("acc-1", "dev-1", "super-secret", "laptop")
	out := FormatStoredCredentials([]*models.StoredCredential{cred})

	if !strings.Contains(out, "dev-1") || !strings.Contains(out, "laptop") {
		t.Errorf("expected credential row, got %q", out)
	}
	if strings.Contains(out, "super-secret") {
		t.Error("stored secret must never be rendered")
	}
}

func TestFormatEvents(t *testing.T) {
	out := FormatEvents([]models.AuthEvent{
		{Kind: models.EventRefresh, SubjectID: "acc-1", CreatedAt: time.Now()},
		{Kind: models.EventLogin, SubjectID: "acc-1", Detail: "composite: device", CreatedAt: time.Now()},
	})

	if !strings.Contains(out, models.EventRefresh) || !strings.Contains(out, "composite: device") {
		t.Errorf("expected event rows, got %q", out)
	}
}

func TestFormatFriends(t *testing.T) {
	out := FormatFriends([]models.Friend{
		{SubjectID: "acc-2", Status: "ACCEPTED", Direction: "OUTBOUND", Created: time.Now(), Favorite: true},
		{SubjectID: "acc-3", Status: "PENDING", Direction: "INBOUND"},
	})

	if !strings.Contains(out, "acc-2") || !strings.Contains(out, "PENDING") {
		t.Errorf("expected friend rows, got %q", out)
	}
	if !strings.Contains(out, "★") {
		t.Errorf("expected favorite marker, got %q", out)
	}

	t.Run("empty list", func(t *testing.T) {
		if out := FormatFriends(nil); !strings.Contains(out, "no friends") {
			t.Errorf("unexpected empty rendering %q", out)
		}
	})
}

func TestFormatSnapshot(t *testing.T) {
	snap := session.Snapshot{
		State:         session.StateAuthenticated,
		SubjectID:     "acc-1",
		SessionExpiry: time.Now().Add(2 * time.Hour),
		Refreshes:     3,
		LastRefresh:   time.Now().Add(-10 * time.Minute),
	}
	out := FormatSnapshot(snap)

	if !strings.Contains(out, "acc-1") {
		t.Error("expected subject in snapshot")
	}
	if !strings.Contains(out, "3 (restarts 0)") {
		t.Errorf("expected refresh counts, got %q", out)
	}

	t.Run("failed snapshot shows cause", func(t *testing.T) {
		snap.Err = fmt.Errorf("session failed: invalid_grant")
		if out := FormatSnapshot(snap); !strings.Contains(out, "invalid_grant") {
			t.Errorf("expected failure cause, got %q", out)
		}
	})
}

func TestExportAccountsCSV(t *testing.T) {
	data, err := ExportAccountsCSV(sampleAccounts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 records, got %d lines", len(lines))
	}
	if lines[0] != "ID,DisplayName,Linked" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "acc-1,Kestrel,psn") {
		t.Errorf("unexpected first record %q", lines[1])
	}
}

func TestExportAccountsJSON(t *testing.T) {
	data, err := ExportAccountsJSON(sampleAccounts(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded []models.Account
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != "acc-1" {
		t.Errorf("unexpected decoded export %+v", decoded)
	}
}

func TestExportAccountsMarkdown(t *testing.T) {
	data, err := ExportAccountsMarkdown(sampleAccounts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := string(data)
	if !strings.Contains(out, "**Count**: 2") {
		t.Error("expected count line")
	}
	if !strings.Contains(out, "| acc-2 | PeelyFan42 |") {
		t.Errorf("expected table row, got %q", out)
	}
}

func TestWriteAccountsExport(t *testing.T) {
	t.Run("writes chosen format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		written, err := WriteAccountsExport(sampleAccounts(), "csv", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written != path {
			t.Errorf("expected path %s, got %s", path, written)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "ID,DisplayName") {
			t.Errorf("unexpected file contents %q", data)
		}
	})

	t.Run("derives filename when path empty", func(t *testing.T) {
		dir := t.TempDir()
		cwd, _ := os.Getwd()
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { os.Chdir(cwd) })

		written, err := WriteAccountsExport(sampleAccounts(), "json", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasSuffix(written, ".json") {
			t.Errorf("expected derived .json name, got %s", written)
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		if _, err := WriteAccountsExport(sampleAccounts(), "xml", ""); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}
