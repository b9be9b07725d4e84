package main

import (
	"context"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the jobs table and indexes",
	Long:  "Apply the collector schema to DATABASE_URL. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		pool, err := connectPostgres(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		pool.Close()
		logger.Info("[collector] schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
