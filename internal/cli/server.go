package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	pgloader "live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	defaultBankID       = "default"
	defaultQuestionTime = 15 * time.Second
	defaultBaseScore    = 1000
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
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
	roomTTL := config.Duration(cfg.Redis.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if pool != nil {
		loader = pgloader.NewBankLoader(pool)
	}

	bankTTL := config.Duration(cfg.Bank.TTL, 10*time.Minute)
	var banks app.BankRepository
	if redisClient != nil {
		banks = redisinfra.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	var rooms app.RoomStore
	if redisClient != nil {
		rooms = redisinfra.NewRoomStore(redisClient, roomTTL)
	} else {
		rooms = memory.NewRoomStore()
	}

	bankID := cfg.Bank.ID
	if bankID == "" {
		bankID = defaultBankID
	}
	service := app.NewRoomService(rooms, banks, app.Settings{
		BankID:       bankID,
		QuestionTime: config.Duration(cfg.Game.QuestionTime, defaultQuestionTime),
		BaseScore:    cfg.BaseScore(defaultBaseScore),
	})

	mux := transport.NewMux(transport.NewAPI(service), transport.NewWSHandler(service))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleBanks provides a minimal question bank; swap the loader for the
// Postgres-backed one in production.
func sampleBanks() map[string]domain.Bank {
	return map[string]domain.Bank{
		defaultBankID: {
			ID: defaultBankID,
			Questions: []domain.Question{
				{
					Prompt: "Which ocean is the largest?",
					Options: []domain.Option{
						{ID: "A", Text: "Pacific"},
						{ID: "B", Text: "Atlantic"},
						{ID: "C", Text: "Indian"},
						{ID: "D", Text: "Arctic"},
					},
					Answer: "A",
				},
				{
					Prompt: "How many minutes are in an hour?",
					Options: []domain.Option{
						{ID: "A", Text: "90"},
						{ID: "B", Text: "60"},
						{ID: "C", Text: "100"},
						{ID: "D", Text: "45"},
					},
					Answer: "B",
				},
			},
		},
	}
}
