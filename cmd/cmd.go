// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// globalFlags are accepted by every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User id that owns the imported records (overrides config)",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// mappingFlags select columns explicitly. Explicit columns always win over the header guess.
func mappingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "date",
			Usage: "Column holding the transaction date",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "Column holding the description",
		},
		&cli.StringFlag{
			Name:  "amount",
			Usage: "Column holding the signed amount",
		},
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file if missing, then initialize the database and run migrations",
		Action: r.Setup,
	}
}

// importCommand imports one or more statement files.
func importCommand(r *Runner) *cli.Command {
	flags := append(mappingFlags(),
		userFlag(),
		jsonFlag(),
		&cli.StringFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "Source label recorded on the import (default: file name)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Prepare candidates and print a preview without writing",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent imports when several files are given (1-4)",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "manifest",
			Usage: "Write a JSON summary of a multi-file import to this path",
		},
	)

	return &cli.Command{
		Name:      "import",
		Usage:     "Import statement CSV files",
		ArgsUsage: "<file.csv> [file.csv...]",
		Flags:     flags,
		Action:    r.Import,
	}
}

// previewCommand shows how a statement would be mapped.
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Show headers, the guessed column mapping and the first rows of a statement",
		ArgsUsage: "<file.csv>",
		Flags: append(mappingFlags(),
			&cli.IntFlag{
				Name:    "rows",
				Aliases: []string{"n"},
				Usage:   "Number of rows to show",
				Value:   12,
			},
		),
		Action: r.Preview,
	}
}

// jobsCommand inspects and maintains import jobs.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect import jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List import jobs, newest first",
				Flags: []cli.Flag{
					userFlag(),
					jsonFlag(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only jobs in this status (pending, parsing, done, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to return",
						Value: 50,
					},
				},
				Action: r.JobsList,
			},
			{
				Name:      "show",
				Usage:     "Show one import job",
				ArgsUsage: "<job-id>",
				Flags:     []cli.Flag{userFlag(), jsonFlag()},
				Action:    r.JobsShow,
			},
			{
				Name:  "sweep",
				Usage: "Mark parsing jobs that never finished as failed",
				Flags: []cli.Flag{
					userFlag(),
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age after which a parsing job counts as abandoned (default: import.stale_after)",
					},
					&cli.BoolFlag{
						Name:  "all-users",
						Usage: "Sweep every user's jobs",
					},
				},
				Action: r.JobsSweep,
			},
			{
				Name:      "delete",
				Usage:     "Delete an import job record; its transactions are kept",
				ArgsUsage: "<job-id>",
				Flags:     []cli.Flag{userFlag()},
				Action:    r.JobsDelete,
			},
		},
	}
}

// transactionsCommand queries and exports stored transactions.
func transactionsCommand(r *Runner) *cli.Command {
	filterFlags := func() []cli.Flag {
		return []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:  "month",
				Usage: "Only transactions in this month (YYYY-MM)",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Earliest date, inclusive (YYYY-MM-DD or any statement date format)",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Latest date, inclusive (YYYY-MM-DD or any statement date format)",
			},
			&cli.StringFlag{
				Name:  "q",
				Usage: "Case-insensitive description search",
			},
			&cli.StringFlag{
				Name:  "import",
				Usage: "Only rows last written by this import job",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of transactions to return",
			},
		}
	}

	return &cli.Command{
		Name:    "transactions",
		Aliases: []string{"tx"},
		Usage:   "Query stored transactions",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List transactions, newest first",
				Flags:  append(filterFlags(), jsonFlag()),
				Action: r.TransactionsList,
			},
			{
				Name:  "export",
				Usage: "Export transactions to a CSV file",
				Flags: append(filterFlags(),
					&cli.StringFlag{
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Output file path",
						Required: true,
					},
				),
				Action: r.TransactionsExport,
			},
		},
	}
}

// categoriesCommand manages the default category set.
func categoriesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "Manage spending categories",
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Create the default categories for a user who has none",
				Flags:  []cli.Flag{userFlag()},
				Action: r.CategoriesSeed,
			},
			{
				Name:   "list",
				Usage:  "List a user's categories",
				Flags:  []cli.Flag{userFlag(), jsonFlag()},
				Action: r.CategoriesList,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive imports.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Confirm the column mapping interactively and watch the import",
		ArgsUsage: "<file.csv>",
		Flags: append(mappingFlags(),
			userFlag(),
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Source label recorded on the import (default: file name)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI owns the terminal",
				Value: "./tmp/finport-tui.log",
			},
		),
		Action: r.TUI,
	}
}

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the import API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}
