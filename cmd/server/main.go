package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	_ "github.com/dwarvesf/paylink-backend/docs"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const programName = "paylink"

// @title Paylink API
// @version 1.0
// @description Payment links settled on EVM chains, with realtime status over websocket.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey AdminKey
// @in header
// @name X-Admin-Key
func main() {
	var (
		appConfig *config.AppConfig
		log       *logger.Logger
	)

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Payment link settlement backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			appConfig = config.New()
			log = logger.New(appConfig.Environment)

			_, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...interface{}) {
				log.Debug(fmt.Sprintf(format, v...))
			}))
			if err != nil {
				log.Warn("[main][maxprocs] failed to set GOMAXPROCS", map[string]string{
					"error": err.Error(),
				})
			}
		},
	}

	rootCmd.AddCommand(
		apiCommand(func() (*config.AppConfig, *logger.Logger) { return appConfig, log }),
		workerCommand(func() (*config.AppConfig, *logger.Logger) { return appConfig, log }),
		banCommand(func() (*config.AppConfig, *logger.Logger) { return appConfig, log }),
		unbanCommand(func() (*config.AppConfig, *logger.Logger) { return appConfig, log }),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if log != nil {
		defer log.Sync()
	}
	if err != nil {
		if log != nil {
			log.Error("[main] command failed", map[string]string{"error": err.Error()})
			log.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
