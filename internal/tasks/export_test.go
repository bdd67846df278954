package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/castlebay/halcyon/internal/models"
)

func TestResolveAndExport(t *testing.T) {
	ctx := context.Background()

	t.Run("writes resolved accounts", func(t *testing.T) {
		resolver := &fakeResolver{
			byID: map[string]models.Account{"id-1": account("id-1", "One")},
		}
		engine := NewResolveEngine(resolver, nil)
		path := filepath.Join(t.TempDir(), "roster.csv")

		result, err := engine.ResolveAndExport(ctx, nil, []string{"id-1"}, nil, ExportOpts{
			Format: "csv",
			Path:   path,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Path != path {
			t.Errorf("expected path %s, got %s", path, result.Path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "id-1,One") {
			t.Errorf("unexpected export contents %q", data)
		}
	})

	t.Run("nothing resolved writes nothing", func(t *testing.T) {
		engine := NewResolveEngine(&fakeResolver{}, nil)
		path := filepath.Join(t.TempDir(), "empty.json")

		result, err := engine.ResolveAndExport(ctx, nil, []string{"id-404"}, nil, ExportOpts{Path: path})
		if err == nil {
			t.Fatal("expected error when nothing resolved")
		}
		if result == nil || result.Resolve.FailedCount != 1 {
			t.Errorf("expected the resolve result to survive the export failure, got %+v", result)
		}
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Error("no file should be written when nothing resolved")
		}
	})

	t.Run("bad format keeps resolve result", func(t *testing.T) {
		resolver := &fakeResolver{byID: map[string]models.Account{"id-1": account("id-1", "One")}}
		engine := NewResolveEngine(resolver, nil)

		result, err := engine.ResolveAndExport(ctx, nil, []string{"id-1"}, nil, ExportOpts{Format: "xml"})
		if err == nil {
			t.Fatal("expected error for unsupported format")
		}
		if result.Resolve.ResolvedCount != 1 {
			t.Errorf("expected resolve result despite export failure, got %+v", result)
		}
	})
}
