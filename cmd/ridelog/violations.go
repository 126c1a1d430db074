package main

import (
	"context"
	"fmt"
	"ride-logbook-service/internal/app"
)

func violationsCommand() *Command {
	c := &Command{
		Name:        "violations",
		Description: "List unresolved work-time violations",
		Usage:       "ridelog violations list <driver-id>",
		Examples:    []string{"ridelog violations list 7"},
	}
	c.Run = func(args []string) error {
		return subcommand(c, args, map[string]func([]string) error{
			"list": func(args []string) error { return violationsList(c, args) },
		})
	}
	return c
}

func violationsList(c *Command, args []string) error {
	fs := c.NewFlagSet("violations list")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}
	if fs.NArg() != 1 {
		return usagef("violations list: driver id required")
	}
	driverID, err := parseID("driver id", fs.Arg(0))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		vs, err := a.Labor.ListOpen(ctx, driverID)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Driver %d: %d open violation(s)\n", driverID, len(vs))
		printLaborViolations(vs)
		return nil
	})
}
