package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nerrad567/servomount/internal/auth"
	"github.com/nerrad567/servomount/internal/infrastructure/config"
	"github.com/nerrad567/servomount/internal/infrastructure/database"
)

// tokenCommand issues a bearer token signed with the configured secret.
func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for the thing server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "subject",
				Aliases:  []string{"s"},
				Usage:    "token subject, usually a client or user name",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "role",
				Aliases: []string{"r"},
				Usage:   "viewer or operator",
				Value:   string(auth.RoleOperator),
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "token lifetime; defaults to security.jwt.access_token_ttl",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ttl := c.Duration("ttl")
			if ttl <= 0 {
				ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}

			token, err := auth.GenerateToken(c.String("subject"), auth.Role(c.String("role")), cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

// migrateCommand manages the history database schema.
func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the history database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					return withDatabase(c, func(db *database.DB) error {
						if err := db.Migrate(c.Context); err != nil {
							return fmt.Errorf("running migrations: %w", err)
						}
						fmt.Fprintln(c.App.Writer, "migrations applied")
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back the most recent migration",
				Action: func(c *cli.Context) error {
					return withDatabase(c, func(db *database.DB) error {
						if err := db.MigrateDown(c.Context); err != nil {
							return fmt.Errorf("rolling back migration: %w", err)
						}
						fmt.Fprintln(c.App.Writer, "migration rolled back")
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "list applied and pending migrations",
				Action: func(c *cli.Context) error {
					return withDatabase(c, func(db *database.DB) error {
						applied, pending, err := db.GetMigrationStatus(c.Context)
						if err != nil {
							return fmt.Errorf("reading migration status: %w", err)
						}
						for _, m := range applied {
							fmt.Fprintf(c.App.Writer, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
						}
						for _, m := range pending {
							fmt.Fprintf(c.App.Writer, "pending  %s  %s\n", m.Version, m.Name)
						}
						return nil
					})
				},
			},
		},
	}
}

// withDatabase loads config, opens the database, and runs fn against it.
func withDatabase(c *cli.Context, fn func(db *database.DB) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Database.Enabled {
		return fmt.Errorf("database is disabled in %s", c.String("config"))
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return fn(db)
}
