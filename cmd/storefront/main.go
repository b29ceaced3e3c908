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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/amorokdeh/GemsFlare/internal/api"
	"github.com/amorokdeh/GemsFlare/internal/auth"
	"github.com/amorokdeh/GemsFlare/internal/cart"
	"github.com/amorokdeh/GemsFlare/internal/checkout"
	"github.com/amorokdeh/GemsFlare/internal/notify"
	"github.com/amorokdeh/GemsFlare/internal/payment"
	"github.com/amorokdeh/GemsFlare/internal/storage"
	"github.com/amorokdeh/GemsFlare/internal/web"
)

type Config struct {
	HTTPPort        string
	PublicOrigin    string
	APIBaseURL      string
	StorageDir      string
	RedisAddr       string // empty means file storage
	RedisPassword   string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		PublicOrigin:    getEnv("PUBLIC_ORIGIN", "http://localhost:8080"),
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:9000"),
		StorageDir:      getEnv("STORAGE_DIR", ".gemsflare"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer cleanup()

	notifier := notify.LogNotifier{}
	session := auth.NewSession(store)
	client := api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
	}, session)

	cartSvc := cart.NewService(ctx, store, notifier)
	reconciler := checkout.NewReconciler(client, cartSvc, session, store, notifier)
	flow := payment.NewFlow(client, cartSvc, reconciler, session, store, notifier, cfg.PublicOrigin)
	handler := web.NewHandler(cartSvc, reconciler, flow, client)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", handler.GetCart)
		r.Post("/items", handler.AddItem)
		r.Put("/items/{itemID}", handler.UpdateQuantity)
		r.Delete("/items/{itemID}", handler.RemoveItem)
	})
	r.Get("/checkout", handler.GetCheckout)
	r.Post("/checkout", handler.SubmitCheckout)
	r.Get(payment.PathReturn, handler.Return)
	r.Get(payment.PathCancel, handler.Cancel)
	r.Get(payment.PathConfirmation, handler.Confirmation)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront shell starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("storefront stopped")
}

func openStore(ctx context.Context, cfg *Config) (storage.Store, func(), error) {
	if cfg.RedisAddr == "" {
		store, err := storage.NewFileStore(cfg.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Using file storage at %s", cfg.StorageDir)
		return store, func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, err
	}
	log.Printf("Using redis storage at %s", cfg.RedisAddr)
	return storage.NewRedisStore(redisClient), func() { redisClient.Close() }, nil
}
