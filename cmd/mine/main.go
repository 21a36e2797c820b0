package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/openmined/mine"
	"github.com/openmined/mine/cli"
	"github.com/spf13/cobra"
)

func main() {
	cfgPath := mine.DefConfigPath

	rootCmd := &cobra.Command{
		Use:   "mine",
		Short: "Sonar mining client",
		Long:  `mine trains the models published in a Sonar contract and submits the gradients back to it.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := mine.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			level, err := cfg.Level()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)

			cli.SetConfig(cfg)
			cli.SetLogger(logger)

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", cfgPath, "Path to the TOML config file")

	rootCmd.AddCommand(
		cli.NewStartCmd(),
		cli.NewModelsCmd(),
		cli.NewTrainCmd(),
		cli.NewSubmissionsCmd(),
		cli.NewNodeCmd(),
		cli.NewInitCmd(&cfgPath),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
