package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractCode(t *testing.T) {
	tt := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare code",
			input: "a32b934c6f6d4d75b34b4a4b53f2b36e",
			want:  "a32b934c6f6d4d75b34b4a4b53f2b36e",
		},
		{
			name:  "bare code with surrounding whitespace",
			input: "  a32b934c6f6d4d75b34b4a4b53f2b36e\n",
			want:  "a32b934c6f6d4d75b34b4a4b53f2b36e",
		},
		{
			name:  "uppercase code is lowered",
			input: "A32B934C6F6D4D75B34B4A4B53F2B36E",
			want:  "a32b934c6f6d4d75b34b4a4b53f2b36e",
		},
		{
			name:  "redirect URL with code parameter",
			input: "https://localhost:8080/callback?state=xyz&code=a32b934c6f6d4d75b34b4a4b53f2b36e",
			want:  "a32b934c6f6d4d75b34b4a4b53f2b36e",
		},
		{
			name:  "exchange endpoint JSON body",
			input: `{"code": "a32b934c6f6d4d75b34b4a4b53f2b36e", "creatingClientId": "abc"}`,
			want:  "a32b934c6f6d4d75b34b4a4b53f2b36e",
		},
		{
			name:    "empty input",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "URL without code parameter",
			input:   "https://localhost:8080/callback?state=xyz",
			wantErr: true,
		},
		{
			name:    "JSON without code field",
			input:   `{"creatingClientId": "abc"}`,
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			input:   `{"code": `,
			wantErr: true,
		},
		{
			name:    "short hex string",
			input:   "a32b934c",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractCode(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got code %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected code %q, got %q", tc.want, got)
			}
		})
	}

	t.Run("error wraps invalid argument sentinel", func(t *testing.T) {
		_, err := ExtractCode("definitely not a code")
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestExtractCodeFile(t *testing.T) {
	t.Run("reads code from file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "code.txt")
		if err := os.WriteFile(path, []byte("a32b934c6f6d4d75b34b4a4b53f2b36e\n"), 0600); err != nil {
			t.Fatal(err)
		}

		got, err := ExtractCodeFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "a32b934c6f6d4d75b34b4a4b53f2b36e" {
			t.Errorf("unexpected code %q", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ExtractCodeFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
