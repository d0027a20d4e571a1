package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	calcProfile        string
	calcProfileVersion int
	calcAsOf           string
	calcActor          string
)

var calculateCmd = &cobra.Command{
	Use:   "calculate <employer-id>",
	Short: "Calculate and persist a final rating for one employer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := resolveProfile(ctx, e, calcProfile, calcProfileVersion)
		if err != nil {
			return err
		}

		var asOf time.Time
		if calcAsOf != "" {
			asOf, err = time.Parse(time.RFC3339, calcAsOf)
			if err != nil {
				return eris.Wrapf(err, "parse --as-of %q", calcAsOf)
			}
		}

		actor := calcActor
		if actor == "" {
			actor = cfg.Engine.Actor
		}

		rating, err := e.Service.CalculateFinalRating(ctx, actor, args[0], p, asOf)
		if err != nil {
			return err
		}
		return printJSON(rating)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate <employer-id>",
	Short: "Force a recompute from current assessment data",
	Long:  "Recomputes the rating even when a recent one exists, typically after a weighting profile change.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := resolveProfile(ctx, e, calcProfile, calcProfileVersion)
		if err != nil {
			return err
		}

		actor := calcActor
		if actor == "" {
			actor = cfg.Engine.Actor
		}

		rating, err := e.Service.Recalculate(ctx, actor, args[0], p)
		if err != nil {
			return err
		}
		return printJSON(rating)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <employer-id>",
	Short: "Inspect disagreement between the two assessment tracks",
	Long:  "Read-only: compares the compliance and expertise tracks without persisting a rating.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := resolveProfile(ctx, e, calcProfile, calcProfileVersion)
		if err != nil {
			return err
		}

		disc, err := e.Service.CompareTracks(ctx, args[0], p)
		if err != nil {
			return err
		}
		return printJSON(disc)
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest <employer-id>",
	Short: "Show the most recent persisted rating for an employer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		rating, err := e.Service.LatestRating(ctx, args[0])
		if err != nil {
			return err
		}
		if rating == nil {
			return eris.Errorf("no rating stored for employer %s", args[0])
		}
		return printJSON(rating)
	},
}

func init() {
	for _, c := range []*cobra.Command{calculateCmd, recalculateCmd, compareCmd} {
		c.Flags().StringVar(&calcProfile, "profile", "", "weighting profile name (default from config)")
		c.Flags().IntVar(&calcProfileVersion, "profile-version", 0, "pin a profile version (0 = latest)")
		c.Flags().StringVar(&calcActor, "actor", "", "actor recorded in the audit log")
	}
	calculateCmd.Flags().StringVar(&calcAsOf, "as-of", "", "compute as of this RFC3339 instant (default now)")

	rootCmd.AddCommand(calculateCmd, recalculateCmd, compareCmd, latestCmd)
}
