package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/R3v3ill3/rating-engine/internal/model"
	"github.com/R3v3ill3/rating-engine/internal/profile"
)

var (
	profileFile           string
	profileActor          string
	profileOverrideReason string
	profileShowVersion    int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage weighting profiles",
}

var profileValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a weighting profile YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, res, err := profile.LoadFile(profileFile)
		if err != nil && !eris.Is(err, model.ErrProfileInvalid) {
			return err
		}
		if printErr := printJSON(res); printErr != nil {
			return printErr
		}
		if !res.Valid() {
			return eris.Errorf("profile %s failed validation with %d error(s)", profileFile, len(res.Errors))
		}
		return nil
	},
}

var profileSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist a profile YAML file as a new version",
	Long:  "Validates and stores the profile. Hard validation failures are rejected unless --override-reason is given, in which case the override is recorded in the audit log.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := profile.ParseFile(profileFile)
		if err != nil {
			return err
		}

		actor := profileActor
		if actor == "" {
			actor = cfg.Engine.Actor
		}

		saved, res, err := e.Service.SaveProfile(ctx, actor, *p, profileOverrideReason)
		if err != nil {
			_ = printJSON(res)
			return err
		}
		for _, w := range res.Warnings {
			zap.L().Warn("profile warning", zap.String("warning", w))
		}
		return printJSON(saved)
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a stored profile (latest version by default)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.Service.ResolveProfile(ctx, args[0], profileShowVersion)
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

func init() {
	profileValidateCmd.Flags().StringVar(&profileFile, "file", "profile.yaml", "profile YAML file")
	profileSaveCmd.Flags().StringVar(&profileFile, "file", "profile.yaml", "profile YAML file")
	profileSaveCmd.Flags().StringVar(&profileActor, "actor", "", "actor recorded in the audit log")
	profileSaveCmd.Flags().StringVar(&profileOverrideReason, "override-reason", "", "force past hard validation failures, recording the override")
	profileShowCmd.Flags().IntVar(&profileShowVersion, "version", 0, "profile version (0 = latest)")

	profileCmd.AddCommand(profileValidateCmd, profileSaveCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}
