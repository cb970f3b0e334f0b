package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/camden-git/foodlens/catalog"
	"github.com/camden-git/foodlens/config"
	"github.com/camden-git/foodlens/database"
	"github.com/camden-git/foodlens/handlers"
	"github.com/camden-git/foodlens/intake"
	"github.com/camden-git/foodlens/media"
	"github.com/camden-git/foodlens/nutrition"
	"github.com/camden-git/foodlens/realtime"
	"github.com/camden-git/foodlens/repository"
	"github.com/camden-git/foodlens/services"
	"github.com/camden-git/foodlens/workers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"gorm.io/gorm/logger"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	if !database.IsMemoryDSN(cfg.DatabasePath) {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			log.Fatalf("FATAL: Failed to create database directory for %s: %v", cfg.DatabasePath, err)
		}
	}

	gormDB, err := database.InitGormDB(cfg.DatabasePath, logger.Warn)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatalf("FATAL: Failed to migrate catalog schema: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()
	if err := database.InitPreviewLedger(sqlDB); err != nil {
		log.Fatalf("FATAL: Failed to initialize preview ledger: %v", err)
	}
	ledger := database.NewPreviewLedger(sqlDB)

	mediaSubDirs := map[media.AssetType]string{
		media.AssetTypePreview:  cfg.PreviewsSubDir,
		media.AssetTypeOriginal: cfg.OriginalsSubDir,
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	previewer := media.NewPreviewer(mediaStore, media.NewProcessor(mediaStore, cfg.PreviewMaxSize), ledger)

	policy := nutrition.DefaultPolicy()
	if cfg.RestrictionPolicyPath != "" {
		policy, err = nutrition.LoadPolicy(cfg.RestrictionPolicyPath)
		if err != nil {
			log.Fatalf("FATAL: Failed to load restriction policy: %v", err)
		}
		log.Printf("Loaded %d restriction rule(s) from %s", len(policy.Rules), cfg.RestrictionPolicyPath)
	}
	evaluator := nutrition.NewEvaluator(policy, cfg.PlaceholderImageURL)

	productCatalog := catalog.New(repository.NewProductRepository(gormDB))

	log.Printf("Initializing recognition worker pool (Workers: %d, Queue Size: %d, Latency: %s)...",
		cfg.NumRecognitionWorkers, cfg.RecognitionQueueSize, cfg.RecognitionLatency)
	recognitionQueue := workers.NewRecognitionQueue(
		workers.NewMockRecognizer(cfg.RecognitionLatency, evaluator),
		cfg.RecognitionQueueSize,
		cfg.NumRecognitionWorkers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	intakeService := services.NewIntakeService(
		intake.NewRegistry(previewer),
		productCatalog,
		evaluator,
		previewer,
		recognitionQueue,
		hub,
		cfg.StrictValidation,
	)

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing previews in: %s", cfg.PreviewsPath)
	log.Printf("Preview max size (longest side): %dpx", cfg.PreviewMaxSize)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	sessionHandler := handlers.NewSessionHandler(intakeService, cfg.MaxUploadBytes)
	productHandler := &handlers.ProductHandler{Service: intakeService}
	debugHandler := &handlers.DebugHandler{Ledger: ledger, Pending: recognitionQueue}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Route("/sessions", sessionHandler.Routes)
			r.Get("/products", productHandler.ListProducts)
			r.Get("/products/summary", productHandler.Summary)
			r.Get("/products/{product_id}", productHandler.GetProduct)
			r.Get("/allergens", productHandler.ListAllergens)
		})

		r.Get("/previews/*", handlers.AssetServer(mediaStore, cfg.PreviewsSubDir))
		log.Printf("Registered preview server at %s* for %s", media.PreviewURLPrefix, cfg.PreviewsPath)

		r.Route("/debug", func(r chi.Router) {
			r.Get("/previews", debugHandler.GetPreviews)
			r.Get("/recognition", debugHandler.GetRecognitionStatus)
		})
	})

	r.Get("/ws", hub.ServeWS)

	serverAddr := ":" + cfg.Port
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
	recognitionQueue.Stop()
	intakeService.Shutdown()
	log.Println("Server stopped")
}
