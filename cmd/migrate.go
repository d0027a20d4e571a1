package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/R3v3ill3/rating-engine/internal/profile"
)

var migrateSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if migrateSeed {
			if _, err := e.Store.GetProfile(ctx, "default", 0); err != nil {
				def := profile.Default()
				saved, _, err := e.Service.SaveProfile(ctx, cfg.Engine.Actor, def, "")
				if err != nil {
					return err
				}
				zap.L().Info("seeded default profile",
					zap.String("name", saved.Name),
					zap.Int("version", saved.Version),
				)
			} else {
				zap.L().Info("default profile already present, not seeding")
			}
		}

		zap.L().Info("schema up to date", zap.String("driver", storeDriver()))
		return nil
	},
}

func storeDriver() string {
	if cfg.Store.Driver == "" {
		return "sqlite"
	}
	return cfg.Store.Driver
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed", false, "store the built-in default profile if none exists")
	rootCmd.AddCommand(migrateCmd)
}
