package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/auth"
	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
	tu "github.com/castlebay/halcyon/internal/testing"
	"github.com/castlebay/halcyon/internal/transport"
)

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = ":memory:"

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(io.Discard),
		Output: output,
	})
	t.Cleanup(runner.shutdown)
	return runner, output
}

func runApp(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "halcyon", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"halcyon"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.prompter == nil {
				t.Error("expected a default prompter")
			}
		})

		t.Run("with defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected a default config")
			}
			if runner.logger == nil {
				t.Error("expected a default logger")
			}
			if runner.output == nil {
				t.Error("expected a default output")
			}
		})
	})

	t.Run("register wires every top-level command", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		commands := runner.register()
		names := map[string]bool{}
		for _, c := range commands {
			names[c.Name] = true
		}

		for _, want := range []string{
			"setup", "login", "status", "logout", "device", "account",
			"friends", "sessions", "query", "api", "watch", "creds",
		} {
			if !names[want] {
				t.Errorf("missing command %q", want)
			}
		}
	})

	t.Run("openStore", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		if err := runner.openStore(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if runner.creds == nil || runner.events == nil || runner.cache == nil {
			t.Error("expected repositories to be built")
		}

		db := runner.db
		if err := runner.openStore(); err != nil {
			t.Fatalf("second open: %v", err)
		}
		if runner.db != db {
			t.Error("openStore should be idempotent")
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runner.writeJSON(map[string]string{"k": "v"}, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := output.String(); got != "{\"k\":\"v\"}\n" {
			t.Errorf("unexpected compact output %q", got)
		}

		output.Reset()
		if err := runner.writeJSON(map[string]string{"k": "v"}, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "  \"k\": \"v\"") {
			t.Errorf("expected indented output, got %q", output.String())
		}
	})

	t.Run("writePlain and writePlainln", func(t *testing.T) {
		runner, output := newTestRunner(t)

		runner.writePlain("a %d", 1)
		runner.writePlainln("b %d", 2)
		if got := output.String(); got != "a 1\nb 2\n" {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("write errors surface to the caller", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		runner.output = &tu.FWriter{}
		if err := runner.writeJSON(map[string]string{"k": "v"}, false); err == nil {
			t.Error("expected writeJSON to report the write failure")
		}
		if err := runner.writePlain("hello"); err == nil {
			t.Error("expected writePlain to report the write failure")
		}

		buf := &bytes.Buffer{}
		limited := tu.NewLimitedWriter(1, 0, buf)
		runner.output = &limited
		if err := runner.writePlain("first"); err != nil {
			t.Fatalf("first write should fit the limit: %v", err)
		}
		if err := runner.writePlain("second"); err == nil {
			t.Error("expected the limit to fail the second write")
		}
		if got := buf.String(); got != "first" {
			t.Errorf("unexpected buffered output %q", got)
		}
	})

	t.Run("buildSource", func(t *testing.T) {
		newGrants := func(t *testing.T, r *Runner) *auth.Grants {
			t.Helper()
			if err := r.openStore(); err != nil {
				t.Fatal(err)
			}
			client := transport.New(transport.Options{Logger: r.logger})
			t.Cleanup(client.Close)
			return auth.NewGrants(client, r.config)
		}

		t.Run("rejects a malformed code", func(t *testing.T) {
			runner, _ := newTestRunner(t)
			grants := newGrants(t, runner)

			_, err := runner.buildSource(grants, connectOpts{code: "not-a-code"})
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("accepts a code in any supported shape", func(t *testing.T) {
			runner, _ := newTestRunner(t)
			grants := newGrants(t, runner)

			source, err := runner.buildSource(grants, connectOpts{
				code: "a32b934c6f6d4d75b34b4a4b53f2b36e",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if source == nil {
				t.Fatal("expected a source")
			}
		})
	})

	t.Run("recordEvent without a store is a no-op", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		runner.recordEvent("subj-1", "login", "")
	})

	t.Run("recordEvent appends to the log", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		if err := runner.openStore(); err != nil {
			t.Fatal(err)
		}

		runner.recordEvent("subj-1", models.EventLogin, "")
		events, err := runner.events.Recent("subj-1", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 1 || events[0].Kind != models.EventLogin {
			t.Errorf("expected the login event, got %+v", events)
		}
	})
}

func TestSetupCommand(t *testing.T) {
	// The created config points the store at ./halcyon.db, so run in a
	// scratch directory.
	wd := tu.MustGetwd(t)
	tmp := t.TempDir()
	tu.MustChdir(t, tmp)
	t.Cleanup(func() { tu.MustChdir(t, wd) })

	runner, output := newTestRunner(t)
	configPath := filepath.Join(tmp, "config.toml")

	if err := runApp(t, runner, "setup", "--config", configPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output.String(), "Setup complete") {
		t.Errorf("unexpected output %q", output.String())
	}
	tu.AssertFileExists(t, configPath)
	tu.AssertFileExists(t, filepath.Join(tmp, "halcyon.db"))
}

func TestCredsCommands(t *testing.T) {
	t.Run("ls on an empty store", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runApp(t, runner, "creds", "ls"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "no stored credentials") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("ls and rm round trip", func(t *testing.T) {
		runner, output := newTestRunner(t)
		if err := runner.openStore(); err != nil {
			t.Fatal(err)
		}
		cred := models.NewStoredCredential("subj-1", "dev-1", "secret", "laptop")
		if err := runner.creds.Put(cred); err != nil {
			t.Fatal(err)
		}

		if err := runApp(t, runner, "creds", "ls"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := output.String()
		if !strings.Contains(got, "dev-1") || !strings.Contains(got, "laptop") {
			t.Errorf("expected the stored credential listed, got %q", got)
		}
		if strings.Contains(got, "secret") {
			t.Error("secrets must never be rendered")
		}

		output.Reset()
		if err := runApp(t, runner, "creds", "rm", "subj-1", "dev-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := runner.creds.Get("subj-1", "dev-1"); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected the credential gone, got %v", err)
		}
	})

	t.Run("rm requires both arguments", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		err := runApp(t, runner, "creds", "rm", "subj-1")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestPersistDeviceCredential(t *testing.T) {
	runner, _ := newTestRunner(t)
	if err := runner.openStore(); err != nil {
		t.Fatal(err)
	}

	runner.persistDeviceCredential(auth.DeviceCredential{
		DeviceID:  "dev-1",
		SubjectID: "subj-1",
		Secret:    "s3cret",
	}, "subj-1")

	stored, err := runner.creds.Get("subj-1", "dev-1")
	if err != nil {
		t.Fatalf("expected the credential persisted: %v", err)
	}
	if stored.Secret() != "s3cret" {
		t.Errorf("unexpected secret %q", stored.Secret())
	}

	events, err := runner.events.Recent("subj-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range events {
		if e.Kind == models.EventDeviceIssued && e.Detail == "dev-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a device_issued event, got %+v", events)
	}
}
