package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"ride-logbook-service/internal/app"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/ports"
	"strconv"
	"strings"
)

func cacheCommand() *Command {
	c := &Command{
		Name:        "cache",
		Description: "Inspect and maintain the route-metric cache",
		Usage:       "ridelog cache <stats|optimize|clear|preload|export|timeframe> [flags]",
		Examples: []string{
			"ridelog cache stats",
			"ridelog cache optimize",
			"ridelog cache clear --yes",
			"ridelog cache preload --hq \"Muster Str 1, 45451 MusterStadt\" \"Hauptbahnhof, MusterStadt\"",
			"ridelog cache export -f routes.csv",
			"ridelog cache timeframe",
		},
	}
	c.Run = func(args []string) error {
		return subcommand(c, args, map[string]func([]string) error{
			"stats":     func(args []string) error { return cacheStats(c, args) },
			"optimize":  func(args []string) error { return cacheOptimize(c, args) },
			"clear":     func(args []string) error { return cacheClear(c, args) },
			"preload":   func(args []string) error { return cachePreload(c, args) },
			"export":    func(args []string) error { return cacheExport(c, args) },
			"timeframe": func(args []string) error { return cacheTimeframe(c, args) },
		})
	}
	return c
}

func cacheStats(c *Command, args []string) error {
	fs := c.NewFlagSet("cache stats")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		st, err := a.Cache.Stats(ctx)
		if err != nil {
			return err
		}

		if *asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		fmt.Fprintf(stdout, "Entries:          %d\n", st.Entries)
		fmt.Fprintf(stdout, "Total uses:       %d\n", st.TotalUses)
		fmt.Fprintf(stdout, "Mean uses:        %.2f\n", st.MeanUses)
		fmt.Fprintf(stdout, "Saved calls:      %d\n", st.SavedCalls)
		fmt.Fprintf(stdout, "Est. savings:     %.2f EUR\n", st.SavingsEUR)
		fmt.Fprintf(stdout, "Provider enabled: %t\n", st.ProviderEnabled)

		if len(st.Top) == 0 {
			return nil
		}
		fmt.Fprintln(stdout)
		tw := NewTableWriter("ORIGIN", "DESTINATION", "KM", "MIN", "USES")
		for _, e := range st.Top {
			tw.AddRow(
				e.Origin,
				e.Destination,
				strconv.FormatFloat(e.DistanceKm, 'f', 1, 64),
				strconv.FormatFloat(e.DurationMinutes, 'f', 0, 64),
				strconv.FormatInt(e.UseCount, 10),
			)
		}
		tw.Print(stdout)
		return nil
	})
}

func cacheOptimize(c *Command, args []string) error {
	fs := c.NewFlagSet("cache optimize")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		n, err := a.Cache.Optimize(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Removed %d stale entries older than %d months.\n", n, cfg.Cache.RetentionMonths)
		return nil
	})
}

func cacheClear(c *Command, args []string) error {
	fs := c.NewFlagSet("cache clear")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}

	if !*yes && !confirm(stdin, "Delete every cached route?") {
		fmt.Fprintln(stdout, "Aborted.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		n, err := a.Cache.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted %d entries.\n", n)
		return nil
	})
}

func confirm(r io.Reader, prompt string) bool {
	fmt.Fprintf(stdout, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "j", "ja":
		return true
	}
	return false
}

// cachePreload warms headquarters and destinations in both directions.
// Fallback estimates are never stored, so a missing key is a provider error.
func cachePreload(c *Command, args []string) error {
	fs := c.NewFlagSet("cache preload")
	hq := fs.String("hq", "", "headquarters address (default: the company's)")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Provider.APIKey == "" {
		return providerError(fmt.Errorf("cache preload: GOOGLE_MAPS_API_KEY is not set: %w", ports.ErrProviderUnavailable))
	}

	dests := fs.Args()
	if len(dests) == 0 {
		dests = cfg.Cache.PreloadDestinations
	}
	if len(dests) == 0 {
		return usagef("cache preload: no destinations given and none configured")
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		origin := *hq
		if origin == "" {
			company, err := a.Companies.GetCompany(ctx, cfg.CompanyID)
			if err != nil {
				return err
			}
			origin = company.HeadquartersAddress
		}

		before, err := a.Cache.Stats(ctx)
		if err != nil {
			return err
		}
		n, err := a.Cache.Preload(ctx, origin, dests)
		if err != nil {
			return err
		}
		after, err := a.Cache.Stats(ctx)
		if err != nil {
			return err
		}

		if after.Fallbacks > before.Fallbacks {
			return providerError(fmt.Errorf("cache preload: %d routes could not be fetched: %w",
				after.Fallbacks-before.Fallbacks, ports.ErrProviderUnavailable))
		}
		fmt.Fprintf(stdout, "Preloaded %d routes (%d provider calls).\n", n, after.ProviderCalls)
		return nil
	})
}

func cacheExport(c *Command, args []string) error {
	fs := c.NewFlagSet("cache export")
	file := fs.String("f", "", "output CSV file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		w := stdout
		if *file != "" {
			f, err := os.Create(*file)
			if err != nil {
				return inputError(fmt.Errorf("cache export: %w", err))
			}
			defer f.Close()
			w = f
		}

		n, err := a.Cache.Export(ctx, w)
		if err != nil {
			return err
		}
		if *file != "" {
			fmt.Fprintf(stdout, "Exported %d entries to %s.\n", n, *file)
		}
		return nil
	})
}

func cacheTimeframe(c *Command, args []string) error {
	fs := c.NewFlagSet("cache timeframe")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		windows, err := a.Cache.Usage(ctx)
		if err != nil {
			return err
		}

		tw := NewTableWriter("WINDOW", "SINCE", "ENTRIES", "USES")
		for _, w := range windows {
			tw.AddRow(
				w.Label,
				w.Since.Format(domain.DateLayout),
				strconv.FormatInt(w.Entries, 10),
				strconv.FormatInt(w.TotalUses, 10),
			)
		}
		tw.Print(stdout)
		return nil
	})
}
