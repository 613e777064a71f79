package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizroom/clients/quizgen"
	"github.com/mcdev12/quizroom/internal/events"
	"github.com/mcdev12/quizroom/internal/gateway"
	"github.com/mcdev12/quizroom/internal/room"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	setupLogging()

	apiKey := os.Getenv("QUIZGEN_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("QUIZGEN_API_KEY environment variable is required")
	}

	opts, err := loadGameOptions(os.Getenv("GAME_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load game config")
	}

	genCfg := quizgen.DefaultConfig(apiKey)
	genCfg.BaseURL = getEnv("QUIZGEN_BASE_URL", genCfg.BaseURL)
	genCfg.Model = getEnv("QUIZGEN_MODEL", genCfg.Model)
	genCfg.Timeout = time.Duration(getEnvAsInt("QUIZGEN_TIMEOUT_SEC", 30)) * time.Second
	generator := quizgen.NewClient(genCfg)

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	var broadcaster room.Broadcaster = cm
	var mirror *events.Mirror
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		mirror, err = events.NewMirror(natsURL, getEnv("NATS_SUBJECT_PREFIX", events.DefaultSubjectPrefix))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event mirror")
		}
		defer mirror.Close()
		broadcaster = events.NewFanout(cm, mirror)
		log.Info().Str("nats_url", natsURL).Msg("event mirror enabled")
	}

	store := room.NewStore()
	app := room.NewApp(store, generator, broadcaster, clockwork.NewRealClock(), opts)
	cm.SetDispatcher(app)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go cm.Start(ctx)

	server := setupServer(gateway.NewWebSocketHandler(cm))

	go func() {
		log.Info().Str("addr", server.Addr).Msg("quizroom server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if getEnv("LOG_FORMAT", "console") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
