package main

import (
	"context"
	"fmt"
	"ride-logbook-service/internal/app"
	"ride-logbook-service/internal/domain"
	"strconv"
	"strings"
)

func validateCommand() *Command {
	c := &Command{
		Name:        "validate",
		Description: "Run ride rules and work-time checks",
		Usage:       "ridelog validate <week <driver-id> <date>|shift <shift-id>|ride <ride-id>>",
		Examples: []string{
			"ridelog validate week 7 2026-03-04",
			"ridelog validate shift 112",
			"ridelog validate ride 4711",
		},
	}
	c.Run = func(args []string) error {
		return subcommand(c, args, map[string]func([]string) error{
			"week":  func(args []string) error { return validateWeek(c, args) },
			"shift": func(args []string) error { return validateShift(c, args) },
			"ride":  func(args []string) error { return validateRide(c, args) },
		})
	}
	return c
}

func validateWeek(c *Command, args []string) error {
	fs := c.NewFlagSet("validate week")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}
	if fs.NArg() != 2 {
		return usagef("validate week: driver id and date required")
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
		day, err := domain.ParseDate("date", fs.Arg(1), a.Loc)
		if err != nil {
			return inputError(err)
		}

		rep, err := a.Labor.ValidateWeek(ctx, driverID, day)
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "Driver %d, week of %s\n", rep.DriverID, rep.WeekStart.Format(domain.DateLayout))
		fmt.Fprintf(stdout, "Shifts:          %d\n", rep.ShiftCount)
		fmt.Fprintf(stdout, "Hours:           %.2f\n", rep.TotalHours)
		fmt.Fprintf(stdout, "Compliance rate: %.1f%%\n", rep.ComplianceRate)
		if rep.NextAvailable != nil {
			fmt.Fprintf(stdout, "Next available:  %s\n", domain.FormatTimestamp(*rep.NextAvailable, a.Loc))
		}
		printLaborViolations(rep.Violations)
		return nil
	})
}

func validateShift(c *Command, args []string) error {
	fs := c.NewFlagSet("validate shift")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}
	if fs.NArg() != 1 {
		return usagef("validate shift: shift id required")
	}
	shiftID, err := parseID("shift id", fs.Arg(0))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		vs, err := a.Labor.ValidateShift(ctx, shiftID)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Shift %d: %d violation(s)\n", shiftID, len(vs))
		printLaborViolations(vs)
		return nil
	})
}

func printLaborViolations(vs []domain.LaborViolation) {
	if len(vs) == 0 {
		return
	}
	tw := NewTableWriter("SHIFT", "TYPE", "SEVERITY", "MESSAGE")
	for _, v := range vs {
		shift := "-"
		if v.ShiftID != nil {
			shift = strconv.FormatInt(*v.ShiftID, 10)
		}
		tw.AddRow(shift, string(v.Type), string(v.Severity), v.Message)
	}
	tw.Print(stdout)
}

func validateRide(c *Command, args []string) error {
	fs := c.NewFlagSet("validate ride")
	if err := fs.Parse(args); err != nil {
		return inputError(err)
	}
	if fs.NArg() != 1 {
		return usagef("validate ride: ride id required")
	}
	rideID, err := parseID("ride id", fs.Arg(0))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		res, err := a.Rides.ValidateAndPersist(ctx, rideID)
		if err != nil {
			return err
		}

		if res.OK() {
			fmt.Fprintf(stdout, "Ride %d: OK\n", rideID)
			return nil
		}

		tags := make([]string, 0, len(res.Violations))
		for _, t := range res.Tags() {
			tags = append(tags, string(t))
		}
		fmt.Fprintf(stdout, "Ride %d: %s\n", rideID, strings.Join(tags, ", "))
		for _, v := range res.Violations {
			fmt.Fprintf(stdout, "  %s: %s\n", v.Tag, v.Message)
		}
		return nil
	})
}
