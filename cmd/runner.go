package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/auth"
	"github.com/castlebay/halcyon/internal/gate"
	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/prompt"
	"github.com/castlebay/halcyon/internal/repositories"
	"github.com/castlebay/halcyon/internal/server"
	"github.com/castlebay/halcyon/internal/services"
	"github.com/castlebay/halcyon/internal/session"
	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/tasks"
	"github.com/castlebay/halcyon/internal/transport"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	logger   *log.Logger
	output   io.Writer
	prompter *prompt.Prompter

	db     *sql.DB
	creds  *repositories.CredentialRepository
	events *repositories.EventRepository
	cache  *repositories.AccountCacheRepository

	client  *transport.Client
	session *session.Manager
	account *services.AccountService
	social  *services.SocialService
	query   *services.QueryService
	raw     *services.RawService
	engine  *tasks.ResolveEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Logger   *log.Logger
	Output   io.Writer
	Prompter *prompt.Prompter
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Prompter == nil {
		opts.Prompter = prompt.New(prompt.Options{})
	}

	return &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		prompter: opts.Prompter,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, loginCommand, statusCommand, logoutCommand, deviceCommand,
		accountCommand, friendsCommand, sessionsCommand, queryCommand, apiCommand,
		watchCommand, credsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openStore opens the local SQLite store and builds the repositories over
// it. Idempotent; commands that only touch the store call this directly.
func (r *Runner) openStore() error {
	if r.db != nil {
		return nil
	}

	path := r.config.Database.Path
	if path == "" {
		path = "halcyon.db"
	}

	db, err := repositories.Open(path)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.db = db
	r.creds = repositories.NewCredentialRepository(db)
	r.events = repositories.NewEventRepository(db)
	r.cache = repositories.NewAccountCacheRepository(db)
	return nil
}

// connectOpts tunes how connect builds the credential source chain.
type connectOpts struct {
	code        string // one-time exchange code supplied on the command line
	browser     bool   // capture an authorization code via the loopback listener
	noPrompt    bool   // never fall back to an interactive prompt
	killOthers  bool   // revoke the account's other sessions after login
	freshDevice bool   // delete stored device credentials before issuing a new one
}

// connect wires the full client stack and starts the session: local store,
// transport client, grant issuer, composite credential source, session
// manager, and the typed service clients over it. It blocks until the
// initial authentication resolves.
func (r *Runner) connect(ctx context.Context, opts connectOpts) error {
	if r.session != nil {
		return nil
	}
	if err := r.openStore(); err != nil {
		return err
	}

	cfg := r.config
	g := gate.New()

	r.client = transport.New(transport.Options{
		Logger:    r.logger,
		UserAgent: cfg.Platform.UserAgent,
		DeviceID:  cfg.Platform.DeviceID,
		Policy:    transport.PolicyFromConfig(cfg.Retry),
		Gate:      g,
	})
	grants := auth.NewGrants(r.client, cfg)

	source, err := r.buildSource(grants, opts)
	if err != nil {
		return err
	}

	r.session = session.New(session.Options{
		Source: source,
		Grants: grants,
		Config: cfg,
		Gate:   g,
		Logger: r.logger,
		OnRefresh: func(cred *auth.Credential) {
			r.recordEvent(cred.SubjectID, models.EventRefresh, "")
		},
		OnFailure: func(err error) {
			r.recordEvent("", models.EventFailure, err.Error())
		},
	})
	r.client.Bind(r.session)

	if err := r.session.Start(ctx); err != nil {
		r.session = nil
		return err
	}

	svcOpts := services.Options{
		Client:   r.client,
		Config:   cfg,
		Identity: r.session,
		Logger:   r.logger,
	}
	r.account = services.NewAccountService(svcOpts)
	r.social = services.NewSocialService(svcOpts)
	r.query = services.NewQueryService(svcOpts)
	r.raw = services.NewRawService(svcOpts)
	r.engine = tasks.NewResolveEngine(r.account, r.cache)

	r.recordEvent(r.session.SubjectID(), models.EventLogin, "")
	return nil
}

// buildSource assembles the composite chain: stored device credential,
// login form, one-time code, interactive prompt.
func (r *Runner) buildSource(grants *auth.Grants, opts connectOpts) (auth.Source, error) {
	cfg := r.config
	composite := auth.CompositeOptions{
		KillOtherSessions: opts.killOthers || cfg.Auth.KillOtherSessions,
		DeleteExisting:    opts.freshDevice || cfg.Auth.DeleteExistingDeviceCred,
		Logger:            r.logger,
		OnCredentialIssued: func(details auth.DeviceCredential, subjectID string) {
			r.persistDeviceCredential(details, subjectID)
		},
	}

	if !opts.freshDevice {
		if stored, err := r.creds.Latest(""); err == nil {
			composite.Device = auth.NewDeviceBound(grants, auth.DeviceCredential{
				DeviceID:  stored.ID(),
				SubjectID: stored.SubjectID(),
				Secret:    stored.Secret(),
			})
			r.logger.Debug("using stored device credential",
				"subject", stored.SubjectID(), "device", stored.ID())
		}
	}

	if cfg.Auth.Email != "" && cfg.Auth.Password != "" {
		composite.Direct = auth.NewDirect(grants, cfg.Auth.Email, cfg.Auth.Password, r.prompter.Func())
	}

	switch {
	case opts.code != "":
		code, err := shared.ExtractCode(opts.code)
		if err != nil {
			return nil, err
		}
		composite.Code = auth.NewOneTimeCode(grants, auth.KindExchange, code)
	case opts.browser:
		lb := server.NewLoopback("", cfg.Platform.WebURL, cfg.Clients.Identity.ID, r.logger)
		composite.Code = auth.NewOneTimeCodeSupplier(grants, auth.KindAuthorization, lb.Supplier())
	}

	if !opts.noPrompt && cfg.Auth.Prompt {
		composite.Prompt = r.prompter.Func()
	}

	return auth.NewComposite(grants, composite), nil
}

// persistDeviceCredential mirrors a freshly issued device credential into
// the local store.
func (r *Runner) persistDeviceCredential(details auth.DeviceCredential, subjectID string) {
	label, _ := os.Hostname()
	cred := models.NewStoredCredential(subjectID, details.DeviceID, details.Secret, label)
	if err := r.creds.Put(cred); err != nil {
		r.logger.Error("failed to persist device credential", "device", details.DeviceID, "error", err)
		return
	}
	r.logger.Info("device credential stored", "subject", subjectID, "device", details.DeviceID)
	r.recordEvent(subjectID, models.EventDeviceIssued, details.DeviceID)
}

// recordEvent appends to the local auth event log. Best effort.
func (r *Runner) recordEvent(subjectID, kind, detail string) {
	if r.events == nil {
		return
	}
	event := &models.AuthEvent{SubjectID: subjectID, Kind: kind, Detail: detail}
	if err := r.events.Append(event); err != nil {
		r.logger.Debug("event log write failed", "kind", kind, "error", err)
	}
}

// shutdown tears the stack down in reverse order: best-effort token
// revocation, session close, transport close, store close.
func (r *Runner) shutdown() {
	if r.session != nil {
		if cred := r.session.Credential(); cred != nil && r.account != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.account.KillToken(ctx, cred.SessionToken); err != nil {
				r.logger.Debug("session token revocation failed", "error", err)
			}
			cancel()
		}
		r.session.Close()
		r.session = nil
	}
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Debug("closing local store", "error", err)
		}
		r.db = nil
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
