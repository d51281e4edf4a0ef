package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/harness"
	"github.com/loykin/s3smoke/internal/history"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the smoke scenario (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmoke(cmd, v)
		},
	}
}

func runSmoke(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := loadConfig(cmd, v)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	console := common.NewConsole(cmd.OutOrStdout())
	if cfg.Console.Color != nil {
		console.SetColor(*cfg.Console.Color)
	}
	opts := []harness.Option{harness.WithConsole(console)}

	if cfg.History.Enabled {
		journal, err := history.Open(ctx, history.Config{Type: cfg.History.Type, DSN: cfg.History.DSN, Table: cfg.History.Table})
		if err != nil {
			return err
		}
		defer func() { _ = journal.Close() }()
		opts = append(opts, harness.WithRecorder(journal))
	}

	_, err = harness.New(cfg, opts...).Run(ctx)
	return err
}
