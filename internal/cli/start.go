package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realm-trivia-bot/internal/app"
	"realm-trivia-bot/internal/config"
	"realm-trivia-bot/internal/domain"
	"realm-trivia-bot/internal/infra/memory"
	pgloader "realm-trivia-bot/internal/infra/postgres"
	redissource "realm-trivia-bot/internal/infra/redis"
	transport "realm-trivia-bot/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the bot server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var loader memory.QuestionLoader = memory.NewStaticLoader(demoQuestionSets())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewQuestionLoader(pool)
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var source app.QuestionSource
	if redisClient != nil {
		source = redissource.NewQuestionSource(redisClient, loader, questionTTL)
	} else {
		source = memory.NewQuestionSource(loader, questionTTL)
	}

	scoring := app.DefaultScoring()
	if cfg.Session.SmallPenalty > 0 {
		scoring.SmallSetPenalty = cfg.Session.SmallPenalty
	}
	if cfg.Session.LargePenalty > 0 {
		scoring.LargeSetPenalty = cfg.Session.LargePenalty
	}

	hub := transport.NewHub(log)
	runner := app.NewSessionRunner(source, hub, scoring, log)

	setID := cfg.Questions.SetID
	if setID == "" {
		setID = "demo"
	}
	sessionCfg := app.SessionConfig{
		SetID:       setID,
		Description: cfg.Session.Description,
		StartsIn:    config.Duration(cfg.Session.StartsIn, 10*time.Second),
		RevealDwell: config.Duration(cfg.Session.RevealDwell, 10*time.Second),
		NextPause:   config.Duration(cfg.Session.NextPause, 5*time.Second),
	}

	var liveness *redissource.SessionLiveness
	if redisClient != nil {
		liveness = redissource.NewSessionLiveness(redisClient, time.Hour)
	}

	startSession := func(ctx context.Context) error {
		if liveness != nil {
			liveness.Mark(ctx, sessionCfg.SetID)
			defer liveness.Clear(ctx, sessionCfg.SetID)
		}
		summary, err := runner.Run(ctx, sessionCfg)
		if err != nil {
			return err
		}
		log.Info("session summary",
			"questions", summary.TotalQuestions,
			"correctAnswerSlots", summary.TotalCorrectAnswerSlots,
			"pointsObtainable", summary.TotalPointsObtainable)
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/sessions/start", transport.NewStartHandler(startSession, cfg.Session.StartToken, log))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting trivia server", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// demoQuestionSets ships a small set so the bot works without a database;
// production runs load sets from Postgres.
func demoQuestionSets() map[string][]domain.Question {
	return map[string][]domain.Question{
		"demo": {
			{
				ID:              1,
				Prompt:          "Which of these are prime numbers?",
				Options:         []string{"4", "5", "6", "7"},
				CorrectOptions:  []int{1, 3},
				MinPoints:       100,
				MaxPoints:       1000,
				DurationSeconds: 15,
				Mode:            domain.ModeToggle,
			},
			{
				ID:              2,
				Prompt:          "What is the capital of France?",
				Options:         []string{"Lyon", "Paris", "Nice", "Lille"},
				CorrectOptions:  []int{1},
				MinPoints:       100,
				MaxPoints:       1000,
				DurationSeconds: 10,
				Mode:            domain.ModeToggle,
			},
			{
				ID:              3,
				Prompt:          "Name the largest planet in the solar system.",
				Options:         []string{"Saturn", "Jupiter"},
				CorrectOptions:  []int{1},
				MinPoints:       50,
				MaxPoints:       500,
				DurationSeconds: 20,
				Mode:            domain.ModeOneShot,
			},
		},
	}
}
