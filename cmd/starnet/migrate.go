package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/totegamma/starnet/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the holon store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		st, err := openStore(cfg, true)
		if err != nil {
			return err
		}
		defer st.Close()
		fmt.Printf("Store %s is up to date\n", cfg.Server.StoreDriver)
		return nil
	},
}
