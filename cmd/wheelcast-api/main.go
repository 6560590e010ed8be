package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	"github.com/wheelcast/backend/internal/controllers"
	"github.com/wheelcast/backend/internal/database"
	"github.com/wheelcast/backend/internal/eventsub"
	"github.com/wheelcast/backend/internal/hub"
	"github.com/wheelcast/backend/internal/session"
	"github.com/wheelcast/backend/internal/store"
)

func main() {
	ctx := context.Background()
	ctx, _ = signal.NotifyContext(ctx, os.Interrupt)

	app := &cli.App{
		Name: "wheelcast-api",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Value: false,
				EnvVars: []string{
					"WHEELCAST_API_DEBUG",
				},
			},
			&cli.StringFlag{
				Name:  "http-listen-address",
				Value: "127.0.0.1:3000",
				EnvVars: []string{
					"WHEELCAST_API_HTTP_LISTEN_ADDRESS",
				},
			},
			&cli.StringFlag{
				Name:     "postgres-uri",
				Required: true,
				EnvVars: []string{
					"WHEELCAST_API_POSTGRES_URI",
				},
			},
			&cli.StringFlag{
				Name:  "session-secret",
				Usage: "base64-encoded ed25519 seed for session tokens",
				EnvVars: []string{
					"WHEELCAST_API_SESSION_SECRET",
				},
			},
			&cli.StringFlag{
				Name:  "eventsub-url",
				Usage: "upstream reward-redemption websocket, empty disables it",
				EnvVars: []string{
					"WHEELCAST_API_EVENTSUB_URL",
				},
			},
			&cli.StringFlag{
				Name: "eventsub-reward-id",
				EnvVars: []string{
					"WHEELCAST_API_EVENTSUB_REWARD_ID",
				},
			},
			&cli.StringFlag{
				Name:  "eventsub-owner-id",
				Usage: "owner whose room receives redemption spins",
				EnvVars: []string{
					"WHEELCAST_API_EVENTSUB_OWNER_ID",
				},
			},
		},
		Before: func(cctx *cli.Context) (err error) {
			err = setupLogging(cctx.Bool("debug"))
			return
		},
		Action: entrypoint,
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		zap.L().Fatal("unhandled error", zap.Error(err))
	}
}

func setupLogging(debugMode bool) error {
	var cfg zap.Config

	if debugMode {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level.SetLevel(zapcore.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Development = false
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level.SetLevel(zapcore.InfoLevel)
	}

	cfg.OutputPaths = []string{
		"stdout",
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)

	return nil
}

func entrypoint(cctx *cli.Context) (err error) {
	ctx := cctx.Context
	defer func() { _ = zap.L().Sync() }()

	var dbConfig *pgx.ConnConfig
	if dbConfig, err = pgx.ParseConfig(cctx.String("postgres-uri")); err != nil {
		err = fmt.Errorf("unable to parse postgres uri: %w", err)
		return
	}

	sqldb := stdlib.OpenDB(*dbConfig)
	db := bun.NewDB(sqldb, pgdialect.New())
	defer func() { _ = db.Close() }()

	if cctx.Bool("debug") {
		var dbLogger io.WriteCloser = &zapio.Writer{Log: zap.L().With(zap.String("section", "bun")), Level: zapcore.DebugLevel}
		defer func() { _ = dbLogger.Close() }()

		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.WithWriter(dbLogger),
		))
	}

	if _, err = db.ExecContext(ctx, "SELECT 1"); err != nil {
		err = fmt.Errorf("failed to test database connection: %w", err)
		return
	}

	if err = database.Migrate(sqldb); err != nil {
		err = fmt.Errorf("failed to run migrations: %w", err)
		return
	}

	owners := store.NewOwnerStore(db)
	items := store.NewItemStore(db)
	locks := store.NewOwnerLocks()
	rooms := hub.NewHub()
	sessions := session.NewManager(cctx.String("session-secret"))
	gateway := &controllers.Gateway{Sessions: sessions, Owners: owners}

	if err = owners.EnsureDefaultAdmin(ctx); err != nil {
		err = fmt.Errorf("failed to ensure default admin: %w", err)
		return
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	})

	if cctx.Bool("debug") {
		(&controllers.GoDebugController{Rooms: rooms}).Register(router)
	}
	(&controllers.HealthController{}).Register(router)
	(&controllers.AuthController{Owners: owners, Sessions: sessions, Gateway: gateway}).Register(router)
	(&controllers.ItemsController{Items: items, Owners: owners, Rooms: rooms, Gateway: gateway, Locks: locks}).Register(router)
	(&controllers.OwnersController{Owners: owners, Gateway: gateway}).Register(router)
	(&controllers.WSController{Rooms: rooms, Items: items, Owners: owners, Sessions: sessions, Locks: locks}).Register(router)

	var handler http.Handler = handlers.RecoveryHandler()(router)
	if cctx.Bool("debug") {
		var accessLogger io.Writer = &zapio.Writer{Log: zap.L().With(zap.String("section", "http")), Level: zapcore.DebugLevel}
		handler = handlers.CombinedLoggingHandler(accessLogger, handler)
	}

	srv := &http.Server{
		Addr:         cctx.String("http-listen-address"),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	if url := cctx.String("eventsub-url"); url != "" {
		es := &eventsub.Client{
			URL:      url,
			RewardID: cctx.String("eventsub-reward-id"),
			OwnerID:  cctx.String("eventsub-owner-id"),
			Spinner:  rooms,
		}
		go es.Run(ctx)
	}

	serverDone := make(chan interface{})
	go func() {
		zap.L().Info("serving requests", zap.String("addr", "http://"+srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("failed to listen for http requests", zap.Error(err))
		}
		close(serverDone)
	}()

	select {
	case <-serverDone:
	case <-cctx.Context.Done():
	}

	return
}
