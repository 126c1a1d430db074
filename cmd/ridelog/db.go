package main

import (
	"context"
	"fmt"
	"ride-logbook-service/internal/adapters/repositories"
	"ride-logbook-service/internal/app"
)

func dbCommand() *Command {
	c := &Command{
		Name:        "db",
		Description: "Initialize the database schema",
		Usage:       "ridelog db init",
		Examples:    []string{"DB_PATH=data/ridelog.db ridelog db init"},
	}
	c.Run = func(args []string) error {
		return subcommand(c, args, map[string]func([]string) error{
			"init": func(args []string) error { return dbInit(c, args) },
		})
	}
	return c
}

// dbInit creates the schema and a default company when none exists.
func dbInit(c *Command, args []string) error {
	fs := c.NewFlagSet("db init")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		id, err := repositories.EnsureDefaultCompany(ctx, a.Store)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Schema ready (%s). Company %d.\n", a.Store.Dialect, id)
		return nil
	})
}
