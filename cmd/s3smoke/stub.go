package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/s3smoke/internal/storage"
	"github.com/loykin/s3smoke/internal/stub"
)

func newStubCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stub-parser",
		Short: "Serve a stand-in parser that reads replays from the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			store, err := storage.New(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			listen, _ := cmd.Flags().GetString("listen")
			return stub.NewServer(store).ListenAndServe(cmd.Context(), listen)
		},
	}
	cmd.Flags().String("listen", ":5600", "address to listen on")
	return cmd
}
