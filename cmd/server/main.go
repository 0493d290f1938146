package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/8848man/gemini-api-server/internal/adapters/http/handlers"
	httpMiddleware "github.com/8848man/gemini-api-server/internal/adapters/http/middleware"
	memorystorage "github.com/8848man/gemini-api-server/internal/adapters/storage/memory"
	redisstorage "github.com/8848man/gemini-api-server/internal/adapters/storage/redis"
	"github.com/8848man/gemini-api-server/internal/config"
	"github.com/8848man/gemini-api-server/internal/core/ports"
	"github.com/8848man/gemini-api-server/internal/core/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeFn, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer closeFn()

	gate, err := buildGate(storage, cfg.Admission)
	if err != nil {
		log.Fatalf("failed to build admission gate: %v", err)
	}

	router := chi.NewRouter()
	router.Use(httpMiddleware.NewThrottleMiddleware(cfg.Throttle.RPS, cfg.Throttle.Burst))
	router.Use(httpMiddleware.NewIdentityMiddleware())

	router.Get("/health", handlers.NewHealthHandler(storage))

	router.Route("/v1", func(r chi.Router) {
		r.Use(httpMiddleware.NewAdmissionMiddleware(gate))
		r.Post("/chat", handlers.NewChatHandler(placeholderChatService{}))
		r.Get("/dictionary/{word}", handlers.NewDictionaryLookupHandler(placeholderDictionaryService{}))
		r.Post("/dictionary", handlers.NewDictionarySearchHandler(placeholderDictionaryService{}))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("server listening on %s (storage=%s)", srv.Addr, cfg.Storage.Type)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Println("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// appStorage junta as primitivas de admissão com o ping de saúde.
type appStorage interface {
	ports.Storage
	Ping(ctx context.Context) error
}

func initStorage(ctx context.Context, cfg config.StorageConfig) (appStorage, func(), error) {
	switch cfg.Type {
	case "redis":
		storage, err := redisstorage.New(redisstorage.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {
			if err := storage.Close(); err != nil {
				log.Printf("failed to close redis storage: %v", err)
			}
		}, nil
	case "memory":
		// Um processo só: os limites não valem entre instâncias.
		storage := memorystorage.New()
		storage.StartJanitor(ctx)
		return storage, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func buildGate(storage ports.Storage, cfg config.AdmissionConfig) (ports.Gate, error) {
	rateLimiter, err := services.NewRateLimiterService(storage, cfg.RequestsPerWindow, cfg.RateWindow)
	if err != nil {
		return nil, err
	}
	concurrencyLimiter, err := services.NewConcurrencyLimiterService(storage, cfg.MaxConcurrent, cfg.SlotTTL)
	if err != nil {
		return nil, err
	}
	duplicateDetector, err := services.NewDuplicateDetectorService(storage, cfg.DuplicateWindow)
	if err != nil {
		return nil, err
	}
	return services.NewAdmissionGateService(duplicateDetector, rateLimiter, concurrencyLimiter, cfg.FailOpen)
}

// placeholderChatService responde sem chamar modelo nenhum; o backend real de
// geração entra aqui quando for plugado.
type placeholderChatService struct{}

func (placeholderChatService) Reply(_ context.Context, req handlers.ChatRequest) (handlers.ChatResponse, error) {
	last := req.Messages[len(req.Messages)-1]
	return handlers.ChatResponse{
		Message:   fmt.Sprintf("(%s) I heard: %s", req.CharacterPrompt, last.Message),
		ModelUsed: "placeholder",
		Timestamp: time.Now(),
	}, nil
}

type placeholderDictionaryService struct{}

func (placeholderDictionaryService) Lookup(_ context.Context, word string) (handlers.DictionaryEntry, error) {
	return handlers.DictionaryEntry{
		Word:            word,
		Meanings:        []string{"definition pending backend integration"},
		Level:           "elementary",
		ExampleSentence: fmt.Sprintf("This is an example with %q.", word),
	}, nil
}
