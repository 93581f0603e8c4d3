package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/restin-ai/authcore/internal/auth"
	"github.com/restin-ai/authcore/internal/config"
	httpx "github.com/restin-ai/authcore/internal/http"
	"github.com/restin-ai/authcore/internal/identity"
	identitymem "github.com/restin-ai/authcore/internal/identity/memory"
	identitypg "github.com/restin-ai/authcore/internal/identity/pg"
	"github.com/restin-ai/authcore/internal/oauth/google"
	"github.com/restin-ai/authcore/internal/observability/logger"
	"github.com/restin-ai/authcore/internal/rate"
	"github.com/restin-ai/authcore/internal/token"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP de autenticación",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				// Validación acumulada: el operador ve todas las reglas
				// rotas de una sola vez.
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: "authd",
			})
			defer func() { _ = logger.Sync() }()
			log := logger.With(logger.Component("serve"))

			ks, err := token.Load(cfg)
			if err != nil {
				return err
			}
			signer := token.NewSigner(cfg, ks)
			verifier := token.NewVerifier(cfg, ks)

			ctx := cmd.Context()
			pingers := map[string]func(context.Context) error{}

			// Principal store: pg si hay DSN, memoria para dev.
			var store identity.Store
			if cfg.Storage.DSN != "" {
				pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
				if err != nil {
					return err
				}
				defer pool.Close()
				store = identitypg.New(pool)
				pingers["postgres"] = pool.Ping
				log.Info("principal store: postgres")
			} else {
				store = identitymem.New()
				log.Warn("principal store: memoria (solo dev)")
			}

			// Rate limiter: redis si hay addr, go-cache local si no.
			var limiter rate.Limiter
			if cfg.Rate.Enabled {
				if cfg.Redis.Addr != "" {
					rc := rdb.NewClient(&rdb.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
					defer rc.Close()
					limiter = rate.NewRedisLimiter(rc, cfg.Redis.Prefix+":rl:", cfg.Rate.LoginLimit, cfg.Rate.LoginWindow)
					pingers["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
				} else {
					limiter = rate.NewMemoryLimiter(cfg.Rate.LoginLimit, cfg.Rate.LoginWindow)
				}
			}

			linker := auth.NewLinker(auth.LinkerDeps{
				Verifier:       auth.NewGoogleVerifier(google.New(cfg.Google.ClientID)),
				Store:          store,
				Signer:         signer,
				AllowedDomains: cfg.Google.AllowedDomains,
			})

			metricsHandler, err := httpx.RegisterMetrics(nil)
			if err != nil {
				return err
			}

			router := httpx.NewRouter(httpx.RouterDeps{
				Verifier:       verifier,
				Linker:         linker,
				JWKSJSON:       ks.JWKSJSON(),
				LoginLimiter:   limiter,
				Pingers:        pingers,
				MetricsHandler: metricsHandler,
			})

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("listening",
					logger.String("addr", cfg.Server.Addr),
					logger.String("mode", string(ks.Mode())),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				log.Info("shutting down", logger.String("signal", sig.String()))
			}

			shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "dirección de escucha (pisa SERVER_ADDR)")
	return cmd
}
