package main

import (
	"context"
	"fmt"
	"ride-logbook-service/internal/app"
	"ride-logbook-service/internal/domain"
)

func rulesCommand() *Command {
	c := &Command{
		Name:        "rules",
		Description: "List and change per-company ride rules",
		Usage:       "ridelog rules <list|set <name> <value>> [--company id]",
		Examples: []string{
			"ridelog rules list",
			"ridelog rules set --company 2 max_pickup_distance_minutes 30",
		},
	}
	c.Run = func(args []string) error {
		return subcommand(c, args, map[string]func([]string) error{
			"list": func(args []string) error { return rulesList(c, args) },
			"set":  func(args []string) error { return rulesSet(c, args) },
		})
	}
	return c
}

func rulesList(c *Command, args []string) error {
	fs := c.NewFlagSet("rules list")
	company := fs.Int64("company", 0, "company id (default: COMPANY_ID)")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *company > 0 {
		cfg.CompanyID = *company
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		tw := NewTableWriter("RULE", "VALUE", "UNIT", "SOURCE")
		for _, def := range a.Rules.Definitions() {
			v, err := a.Rules.Get(ctx, cfg.CompanyID, def.Name)
			if err != nil {
				return err
			}
			source := "stored"
			if v.IsDefault {
				source = "default"
			}
			tw.AddRow(string(def.Name), v.Raw, string(def.Unit), source)
		}
		tw.Print(stdout)
		return nil
	})
}

func rulesSet(c *Command, args []string) error {
	fs := c.NewFlagSet("rules set")
	company := fs.Int64("company", 0, "company id (default: COMPANY_ID)")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}
	if fs.NArg() != 2 {
		return usagef("rules set: name and value required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *company > 0 {
		cfg.CompanyID = *company
	}

	name := domain.RuleName(fs.Arg(0))
	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		if err := a.Rules.Set(ctx, cfg.CompanyID, name, fs.Arg(1)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s = %s (company %d)\n", name, fs.Arg(1), cfg.CompanyID)
		return nil
	})
}
