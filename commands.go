package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"boardsync/api"
	"boardsync/config"
	"boardsync/coordinator"
	"boardsync/domain"
	"boardsync/storage"
	"boardsync/store"
)

const shutdownTimeout = 10 * time.Second

var (
	listenAddr string
	debug      bool
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "boardsync",
		Short:         "Kanban drag and drop ordering service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging (overrides DEBUG)")
	root.AddCommand(serveCmd(), showCmd(), tokenCmd())
	return root
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, *log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debug
	}
	if cmd.Flags().Changed("listen") {
		cfg.HTTP.ListenAddr = listenAddr
	}

	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
		log.SetLevel(log.DebugLevel)
	}
	return cfg, logger, nil
}

// newBackend builds the board API client, fronted by the Redis cache when
// one is configured.
func newBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (api.Backend, func(), error) {
	httpClient := &http.Client{Timeout: cfg.BoardAPI.Timeout.Duration()}
	opts := []storage.Option{storage.WithHTTPClient(httpClient), storage.WithLogger(logger)}
	if cfg.BoardAPI.Token != "" {
		ts := storage.NewTokenSource(cfg.BoardAPI.URL, cfg.BoardAPI.Token, cfg.BoardAPI.RefreshToken, httpClient)
		opts = append(opts, storage.WithTokenSource(ts))
	}
	client := storage.NewClient(cfg.BoardAPI.URL, opts...)
	if cfg.Redis.URL == "" {
		return client, func() {}, nil
	}

	redisOpts, err := config.RedisOptions(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	rc := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, board cache will miss")
	}
	return storage.NewCache(client, rc, cfg.Redis.TTL.Duration()), func() { _ = rc.Close() }, nil
}

func newAuth(cfg config.AuthConfig, logger *log.Logger) (*api.Auth, func(), error) {
	ac := api.AuthConfig{
		Mode:         cfg.Mode,
		SharedSecret: cfg.SharedSecret,
		Audience:     cfg.Audience,
		Issuer:       cfg.Issuer,
	}
	cleanup := func() {}
	if cfg.Mode == api.AuthModeJWKS {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.WithError(err).Warn("jwks refresh")
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("jwks: %w", err)
		}
		ac.JWKS = jwks
		cleanup = jwks.EndBackground
	}
	auth, err := api.NewAuth(ac)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return auth, cleanup, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve board sessions and the drag protocol over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backend, closeBackend, err := newBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeBackend()
			auth, closeAuth, err := newAuth(cfg.Auth, logger)
			if err != nil {
				return err
			}
			defer closeAuth()

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Recover())
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{"*"},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderContentEncoding, echo.HeaderAccept, echo.HeaderAuthorization},
			}))
			e.Use(api.RequestLogger(logger))
			srv := api.Register(e, backend, auth, logger, api.WithServiceSubject(cfg.Auth.ServiceSubject))

			errCh := make(chan error, 1)
			go func() {
				logger.WithField("addr", cfg.HTTP.ListenAddr).Info("boardsync listening")
				errCh <- e.Start(cfg.HTTP.ListenAddr)
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("shutdown")
			}
			srv.Wait()
			logger.Info("boardsync stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides LISTEN_ADDR)")
	return cmd
}

func showCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <board-id>",
		Short: "Fetch a board and print it in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := strconv.Atoi(args[0])
			if err != nil || boardID <= 0 {
				return fmt.Errorf("invalid board id %q", args[0])
			}
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			backend, closeBackend, err := newBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeBackend()

			st := store.New()
			coord := coordinator.New(boardID, backend, st, coordinator.WithLogger(logger))
			if err := coord.Refresh(cmd.Context()); err != nil {
				return err
			}
			b := st.Snapshot()
			if asJSON {
				data, err := sonic.ConfigStd.MarshalIndent(b, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			printBoard(cmd.OutOrStdout(), b, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the board as JSON")
	return cmd
}

func printBoard(w io.Writer, b domain.Board, now time.Time) {
	fmt.Fprintf(w, "%s (#%d)\n", b.Title, b.ID)
	for _, col := range b.Columns {
		fmt.Fprintf(w, "\n[%d] %s (%d)\n", col.Order, col.Title, len(col.Cards))
		for _, card := range col.Cards {
			mark := " "
			if card.Completed {
				mark = "x"
			}
			fmt.Fprintf(w, "  %d. [%s] %s (card-%d)\n", card.Order, mark, card.Title, card.ID)
		}
	}
	s := domain.ComputeStatistics(b, now)
	fmt.Fprintf(w, "\n%d cards, %d completed, %d overdue\n", s.TotalCards, s.CompletedCards, s.OverdueCards)
}

func tokenCmd() *cobra.Command {
	var (
		ttl    time.Duration
		output string
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>...",
		Short: "Mint hs256 caller tokens for local testing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAuth()
			if err != nil {
				return err
			}
			if cfg.Mode != api.AuthModeHS256 {
				return errors.New("token minting requires AUTH_MODE=hs256")
			}
			tokens := make([]string, 0, len(args))
			for _, sub := range args {
				tok, err := api.SignToken(cfg.SharedSecret, api.TokenClaims{
					Subject:  sub,
					Audience: cfg.Audience,
					Issuer:   cfg.Issuer,
					TTL:      ttl,
				})
				if err != nil {
					return fmt.Errorf("sign token for %s: %w", sub, err)
				}
				tokens = append(tokens, tok)
			}
			if output != "" {
				data, err := sonic.Marshal(tokens)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, append(data, '\n'), 0o600); err != nil {
					return err
				}
			}
			for _, tok := range tokens {
				fmt.Fprintln(cmd.OutOrStdout(), tok)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&output, "output", "", "also write the tokens to this file as a JSON array")
	return cmd
}
