// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand writes the example config and initializes the local store.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write the example config and initialize the local store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// loginCommand authenticates through the composite credential chain.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Authenticate and persist a device credential for later runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "code",
				Usage: "One-time exchange code (raw, JSON, or redirect URL)",
			},
			&cli.BoolFlag{
				Name:  "browser",
				Usage: "Open the platform login page and capture the code via a loopback listener",
			},
			&cli.BoolFlag{
				Name:  "no-prompt",
				Usage: "Fail instead of prompting when no source succeeds",
			},
			&cli.BoolFlag{
				Name:  "kill-others",
				Usage: "Revoke the account's other active sessions after login",
			},
			&cli.BoolFlag{
				Name:  "fresh-device",
				Usage: "Delete previously issued device credentials before generating a new one",
			},
		},
		Action: r.Login,
	}
}

// statusCommand verifies the stored credential without interaction.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Verify the stored credential and print session info",
		Action: r.Status,
	}
}

// logoutCommand revokes the session and removes the device credential.
func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Revoke the session token and delete the device credential",
		Action: r.Logout,
	}
}

// deviceCommand manages device credentials on the platform.
func deviceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "device",
		Usage: "Manage device credentials",
		Commands: []*cli.Command{
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List the account's device credentials",
				Action:  r.DeviceList,
			},
			{
				Name:    "rm",
				Aliases: []string{"remove"},
				Usage:   "Delete a device credential (remote and local)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "device-id"},
				},
				Action: r.DeviceRemove,
			},
			{
				Name:   "new",
				Usage:  "Generate a new device credential and store it locally",
				Action: r.DeviceNew,
			},
		},
	}
}

// accountCommand looks accounts up by id or display name.
func accountCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "account",
		Aliases: []string{"acct"},
		Usage:   "Account lookups",
		Commands: []*cli.Command{
			{
				Name:   "whoami",
				Usage:  "Show the authenticated account",
				Action: r.Whoami,
			},
			{
				Name:  "lookup",
				Usage: "Look one account up by display name",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.Lookup,
			},
			{
				Name:  "resolve",
				Usage: "Bulk-resolve accounts by id and display name",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Account id to resolve (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "name",
						Usage: "Display name to resolve (repeatable)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent display-name lookups",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Bypass the local account cache",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: txt, json, csv, markdown",
						Value: "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the result to a file instead of stdout",
					},
				},
				Action: r.Resolve,
			},
		},
	}
}

// friendsCommand reads the social graph.
func friendsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "friends",
		Usage: "Friend list operations",
		Commands: []*cli.Command{
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List the authenticated account's friends",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.FriendsList,
			},
		},
	}
}

// sessionsCommand manages the account's other sessions.
func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Manage active sessions",
		Commands: []*cli.Command{
			{
				Name:   "kill-others",
				Usage:  "Revoke every session except this one",
				Action: r.SessionsKillOthers,
			},
		},
	}
}

// queryCommand executes named batch operations.
func queryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Batch query operations",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Execute a named operation against the batch endpoint",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "operation"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Operation document, or @path to load it from a file",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "vars",
						Aliases: []string{"v"},
						Usage:   "Operation variables as a JSON object",
					},
				},
				Action: r.QueryRun,
			},
		},
	}
}

// apiCommand issues raw requests through the executor for debugging.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Raw platform requests through the retrying executor",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a path on a platform service, prints the body",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "service",
						Aliases: []string{"s"},
						Usage:   "Target service: account, social, query, web",
						Value:   "account",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "POST a JSON body to a path on a platform service",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "service",
						Aliases: []string{"s"},
						Usage:   "Target service: account, social, query, web",
						Value:   "account",
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// watchCommand runs the long-lived session with the status TUI.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Hold the session open and watch it in a TUI",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-prompt",
				Usage: "Fail instead of prompting when no source succeeds",
			},
		},
		Action: r.Watch,
	}
}

// credsCommand administers the local credential store.
func credsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "creds",
		Usage: "Local credential store admin",
		Commands: []*cli.Command{
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List locally stored device credentials",
				Action:  r.CredsList,
			},
			{
				Name:    "rm",
				Aliases: []string{"remove"},
				Usage:   "Delete a locally stored device credential",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "subject-id"},
					&cli.StringArg{Name: "device-id"},
				},
				Action: r.CredsRemove,
			},
		},
	}
}
