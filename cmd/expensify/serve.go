package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/config"
	"github.com/harperclay/expensify/internal/gateway/google"
	"github.com/harperclay/expensify/internal/model"
	"github.com/harperclay/expensify/internal/server"
	"github.com/harperclay/expensify/internal/service"
	"github.com/harperclay/expensify/internal/storage"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the expensify web server",
		Long: `Start the HTTP server: OAuth sign-in endpoints, the session API, and
the category/expense API, backed by MongoDB.

With --dev the server runs against an in-memory store instead of MongoDB;
set dev.allow_email in the config to allow-list yourself on startup.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Bool("dev", false, "use an in-memory store instead of MongoDB")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dev, _ := cmd.Flags().GetBool("dev")

	srvCfg := config.LoadServerConfig()

	store, err := initServeStorage(ctx, dev)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			common.LogError(err, "failed to close storage", nil)
		}
	}()

	googleCfg, err := config.LoadGoogleConfig()
	if err != nil {
		return err
	}
	provider, err := google.NewProvider(google.Config{
		ClientID:     googleCfg.ClientID,
		ClientSecret: googleCfg.ClientSecret,
		RedirectURL:  srvCfg.BaseURL + "/auth/callback",
	})
	if err != nil {
		return err
	}

	srv := server.New(
		server.Config{SecureCookie: isHTTPS(srvCfg.BaseURL)},
		store,
		func() server.SessionGateway { return provider.NewGateway() },
	)

	httpSrv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		common.LogInfo("listening", common.Fields{
			"addr":     srvCfg.Addr,
			"base_url": srvCfg.BaseURL,
			"dev":      dev,
		})
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}

func initServeStorage(ctx context.Context, dev bool) (service.Storage, error) {
	if dev {
		store := storage.NewMemoryStorage()
		if email := viper.GetString("dev.allow_email"); email != "" {
			entry := model.AllowListEntry{Email: email, Role: model.RoleAdmin}
			if err := store.PutAllowListEntry(ctx, entry); err != nil {
				return nil, err
			}
			slog.Info("dev mode: allow-listed", "email", email, "role", entry.Role)
		}
		return store, nil
	}

	mongoCfg, err := config.LoadMongoConfig()
	if err != nil {
		return nil, err
	}

	// The store may still be coming up alongside us; retry the initial
	// connection before giving up.
	var store *storage.MongoStorage
	err = common.WithRetry(ctx, func() error {
		var connErr error
		store, connErr = storage.NewMongoStorage(ctx, mongoCfg.URI, mongoCfg.Database)
		return connErr
	}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}

	if err := store.EnsureIndexes(ctx); err != nil {
		_ = store.Close(context.Background())
		return nil, err
	}
	return store, nil
}

func isHTTPS(baseURL string) bool {
	return len(baseURL) >= 8 && baseURL[:8] == "https://"
}
