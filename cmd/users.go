/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/fastcrud/apiserver/config"
	"github.com/fastcrud/apiserver/internal/db"
	"github.com/fastcrud/apiserver/internal/services"
	"github.com/fastcrud/apiserver/internal/storage"
	"github.com/fastcrud/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "User directory maintenance",
}

var usersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the user directory as JSON lines to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.StoreBackend != config.StoreBackendPostgres {
			return fmt.Errorf("export requires STORE_BACKEND=%s", config.StoreBackendPostgres)
		}

		ctx := cmd.Context()
		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return err
		}

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		result, err := services.NewExportService(store.NewUserRepository(conn), objects).Export(ctx)
		if err != nil {
			return err
		}

		logger.Info("exported users", "bucket", objects.Bucket(), "key", result.Key, "count", result.Count)
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s (%d users)\n", objects.Bucket(), result.Key, result.Count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersExportCmd)
}
