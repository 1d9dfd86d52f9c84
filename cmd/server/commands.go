package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwarvesf/paylink-backend/internal/realtime"
	"github.com/dwarvesf/paylink-backend/internal/server"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

type deps func() (*config.AppConfig, *logger.Logger)

func apiCommand(get deps) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the HTTP API, websocket fanout and cron jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, log := get()
			return server.RunAPI(cmd.Context(), appConfig, log)
		},
	}
}

func workerCommand(get deps) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process settlement jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, log := get()
			return server.RunWorker(cmd.Context(), appConfig, log)
		},
	}
}

func banCommand(get deps) *cobra.Command {
	return &cobra.Command{
		Use:   "ban SELLER_ID...",
		Short: "Refuse realtime and API sessions of the given sellers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, log := get()
			rdb := server.NewRedisClient(appConfig.Redis)
			defer rdb.Close()

			if err := realtime.NewRegistry(rdb, appConfig.Realtime).Ban(cmd.Context(), args...); err != nil {
				return fmt.Errorf("ban sellers: %w", err)
			}
			log.Info("[main][ban] sellers banned", map[string]string{
				"count": fmt.Sprintf("%d", len(args)),
			})
			return nil
		},
	}
}

func unbanCommand(get deps) *cobra.Command {
	return &cobra.Command{
		Use:   "unban SELLER_ID...",
		Short: "Lift a seller ban",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, log := get()
			rdb := server.NewRedisClient(appConfig.Redis)
			defer rdb.Close()

			registry := realtime.NewRegistry(rdb, appConfig.Realtime)
			for _, sellerID := range args {
				if err := registry.Unban(cmd.Context(), sellerID); err != nil {
					return fmt.Errorf("unban %s: %w", sellerID, err)
				}
			}
			log.Info("[main][unban] sellers unbanned", map[string]string{
				"count": fmt.Sprintf("%d", len(args)),
			})
			return nil
		},
	}
}
