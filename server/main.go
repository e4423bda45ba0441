package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"graphicarena/server/arena"
	"graphicarena/server/llm"
	"graphicarena/server/metrics"
	"graphicarena/server/quota"
	"graphicarena/server/rating"
	"graphicarena/server/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	_ = godotenv.Load()

	var migrate bool
	for _, a := range os.Args[1:] {
		switch a {
		case "--migrate":
			migrate = true
		}
	}

	cfg := loadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrate {
		if cfg.DatabaseURL == "" {
			log.Fatal("--migrate needs DATABASE_URL")
		}
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			log.Fatal(err)
		}
		log.Println("migrated")
		return
	}

	m := metrics.NewManager(metrics.WithProcessCollectors())
	ratings := rating.NewEngine(rating.WithK(cfg.EloK), rating.WithStart(cfg.EloStart))
	deps := arena.Deps{
		Observer: m,
		Ratings:  ratings,
		Rand:     arena.NewRand(cfg.Seed),
		Seed:     arena.SeedComparisons,
	}

	if db := openStore(ctx, cfg); db != nil {
		defer db.Close()
		deps.Recorder = db
		deps.Snippets = db
		deps.Legacy = db
		warmStart(ctx, db, ratings)
	}

	if cfg.RedisURL != "" {
		rq, err := quota.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("redis quota disabled (using memory): %v", err)
		} else {
			defer rq.Close()
			deps.Quota = rq
		}
	}

	client, err := llm.NewClientFromEnv()
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		log.Printf("no model provider key; /api/match will return 400")
	case err != nil:
		log.Printf("model provider disabled: %v", err)
	default:
		deps.Provider = llmProvider{c: client}
	}

	svc := arena.New(cfg.Arena, deps)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           Router(svc, m, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      svc.GenerationTimeout() + 15*time.Second,
	}

	go func() {
		log.Printf("listening on http://localhost:%s (Ctrl+C to stop)", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown failed: %v", err)
	}
	svc.Wait()
}

// openStore returns nil when the database is unconfigured or unreachable;
// the arena then runs memory-only.
func openStore(ctx context.Context, cfg Config) *store.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := store.Open(pingCtx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("DB disabled (open failed): %v", err)
		return nil
	}
	if err := db.Ping(pingCtx); err != nil {
		log.Printf("DB disabled (ping failed): %v", err)
		db.Close()
		return nil
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(pingCtx, db); err != nil {
			log.Printf("migrate failed (continuing without DB): %v", err)
			db.Close()
			return nil
		}
		log.Println("migrated")
	}
	return db
}

func warmStart(ctx context.Context, db *store.DB, ratings *rating.Engine) {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := db.LoadRatings(loadCtx)
	if err != nil {
		log.Printf("rating warm start failed: %v", err)
		return
	}
	ratings.Seed(rows)
	log.Printf("loaded %d ratings", len(rows))
}
