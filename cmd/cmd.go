// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead of migrating",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:    "translator",
				Aliases: []string{"provider"},
				Usage:   "Configure translation provider headers from browser cURL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output path for headers file (default: ~/.treeglot/headers.txt)",
					},
				},
				Action: r.SetupTranslator,
			},
		},
	}
}

// runCommand submits a document and drives the job to completion.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Translate a JSON document",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "document",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source",
				Aliases:  []string{"s"},
				Usage:    "Source language code",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "target",
				Aliases:  []string{"t"},
				Usage:    "Target language code",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Free-text context passed to the provider",
			},
			&cli.StringSliceFlag{
				Name:  "paths",
				Usage: "Restrict translation to these dotted paths or subtrees",
			},
			&cli.BoolFlag{
				Name:  "skip-cache",
				Usage: "Bypass the translation cache",
			},
			&cli.StringFlag{
				Name:  "cache-job",
				Usage: "Only reuse translations recorded by this earlier job",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Keys per chunk (overrides config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the translated document to this file",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Show an interactive progress view while translating",
			},
		},
		Action: r.RunJob,
	}
}

// jobsCommand handles job inspection and report export.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect translation jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List jobs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (pending, processing, completed, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "status",
				Usage: "Show one job's status and progress",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobStatus,
			},
			{
				Name:  "result",
				Usage: "Print or save a job's translated document",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the document to this file instead of stdout",
					},
				},
				Action: r.JobResult,
			},
			{
				Name:  "export",
				Usage: "Export a job report",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Report format (csv, markdown, text)",
						Value: "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Base path or directory for the report files",
					},
				},
				Action: r.JobExport,
			},
		},
	}
}

// serveCommand runs the HTTP job API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the translation job API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Bind host (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Bind port (overrides config)",
			},
		},
		Action: r.Serve,
	}
}
