package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kotobadb.dev/kotobadb/auth"
	"kotobadb.dev/kotobadb/common"
	kotohttp "kotobadb.dev/kotobadb/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API server",
	Long: `Start the kotobadb HTTP API server: the JWT-authenticated query
endpoint, schema registration, login, and the health report. The
server runs until SIGINT/SIGTERM, then shuts down gracefully.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	stack, err := assemble(c, true)
	if err != nil {
		return err
	}
	defer stack.Tier.Close()

	authCfg := auth.DefaultConfig()
	authCfg.JWTSecret = c.Server.JWTSecret
	authSvc := auth.NewAuthService(authCfg, auth.NewMemoryStore())

	serverCfg := kotohttp.DefaultServerConfig()
	serverCfg.Port = c.Server.Port
	serverCfg.ReadTimeout = c.Server.ReadTimeout
	serverCfg.WriteTimeout = c.Server.WriteTimeout
	serverCfg.ShutdownTimeout = c.Server.ShutdownTimeout
	serverCfg.Debug = c.Server.Debug
	serverCfg.JWTSecret = c.Server.JWTSecret

	server := kotohttp.NewServer(stack.Engine, authSvc, stack.Health, serverCfg, stack.Logger)
	stack.Logger.WithFields(map[string]interface{}{
		"port":       serverCfg.Port,
		"jwt_secret": common.MaskSecret(serverCfg.JWTSecret),
	}).Info("API server configured")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if c.Monitoring.EnableHealthChecks {
		go stack.Health.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return exitWith(ExitInternal, err)
	case <-quit:
		stack.Logger.Info("shutting down")
		cancel()
		if err := server.Shutdown(); err != nil {
			return exitWith(ExitInternal, err)
		}
	}
	return nil
}
