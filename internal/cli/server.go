package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/giangittb112000/olympia-sub001/internal/app"
	"github.com/giangittb112000/olympia-sub001/internal/config"
	"github.com/giangittb112000/olympia-sub001/internal/domain"
	"github.com/giangittb112000/olympia-sub001/internal/infra/memory"
	pgloader "github.com/giangittb112000/olympia-sub001/internal/infra/postgres"
	redisstore "github.com/giangittb112000/olympia-sub001/internal/infra/redis"
	transport "github.com/giangittb112000/olympia-sub001/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the match server",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)

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

	var sessions app.SessionRepository
	var banks app.BankRepository
	var usage app.UsageStore
	var scores app.ScoreStore
	if redisClient != nil {
		redisUsage := redisstore.NewUsageStore(redisClient, redisTTL)
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
		banks = redisstore.NewBankRepository(redisClient, loader, redisUsage, bankTTL)
		usage = redisUsage
		scores = redisstore.NewScoreStore(redisClient, redisTTL)
	} else {
		memUsage := memory.NewUsageStore()
		sessions = memory.NewSessionStore()
		banks = memory.NewBankRepository(loader, memUsage, bankTTL)
		usage = memUsage
		scores = memory.NewScoreStore()
	}

	service := app.NewRoundService(sessions, banks, usage, scores, nil, app.Options{
		QuestionSeconds: cfg.Round.QuestionSeconds,
		StealSeconds:    cfg.Round.StealSeconds,
	})
	wsHandler := transport.NewWSHandler(service)

	router := httprouter.New()
	transport.NewBankHandler(service).Register(router)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/banks/", router)
	mux.Handle("/matches/", router)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting match server on :%s", finalPort)
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

// sampleBanks seeds a demo bank for running without postgres; collaborators
// replace it through the REST surface.
func sampleBanks() map[string]domain.BankDocument {
	return map[string]domain.BankDocument{
		"match-demo": {
			MatchID: "match-demo",
			Questions10: []domain.QuestionDoc{
				{ID: "d10-1", Text: "Thủ đô của Việt Nam là thành phố nào?", Answer: "Hà Nội"},
				{ID: "d10-2", Text: "Sông nào dài nhất Việt Nam?", Answer: "Sông Đồng Nai"},
				{ID: "d10-3", Text: "Quốc hoa của Việt Nam là hoa gì?", Answer: "Hoa sen"},
			},
			Questions20: []domain.QuestionDoc{
				{ID: "d20-1", Text: "Ai là tác giả của Truyện Kiều?", Answer: "Nguyễn Du"},
				{ID: "d20-2", Text: "Đỉnh núi cao nhất Việt Nam tên là gì?", Answer: "Fansipan"},
				{ID: "d20-3", Text: "Vịnh nào của Việt Nam là di sản thiên nhiên thế giới?", Answer: "Vịnh Hạ Long"},
			},
			Questions30: []domain.QuestionDoc{
				{ID: "d30-1", Text: "Chiến dịch Điện Biên Phủ kết thúc vào năm nào?", Answer: "1954"},
				{ID: "d30-2", Text: "Nguyên tố hóa học nào có ký hiệu Fe?", Answer: "Sắt"},
				{ID: "d30-3", Text: "Hành tinh nào gần Mặt Trời nhất?", Answer: "Sao Thủy"},
			},
		},
	}
}
