package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"fleettrack-backend/internal/database"
	"fleettrack-backend/internal/handlers"
	"fleettrack-backend/internal/ingest"
	"fleettrack-backend/internal/middleware"
	"fleettrack-backend/internal/services"
	"fleettrack-backend/internal/store"
	"fleettrack-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 FLEETTRACK BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	log.Println("🔍 Checking DATABASE_URL environment variable...")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: DATABASE_URL environment variable is required")
		log.Println("   Please set DATABASE_URL in your deployment variables or .env file")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal("DATABASE_URL environment variable is required")
	}
	log.Println("✅ DATABASE_URL found")

	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(dbURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	defer db.Close()
	log.Println("✅ Database connection established")

	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	log.Println("✅ Database migrations completed")

	log.Println("🌱 Seeding database with initial data...")
	if err := database.SeedUsers(db); err != nil {
		log.Fatalf("❌ FATAL ERROR: User seeding failed: %v", err)
	}
	log.Println("✅ Users seeded successfully")

	if err := database.SeedFleet(db); err != nil {
		log.Fatalf("❌ FATAL ERROR: Fleet seeding failed: %v", err)
	}
	log.Println("✅ Fleet seeded successfully")

	// Initialize Firebase Cloud Messaging
	// Supports both file path and base64-encoded credentials (for cloud deployments)
	var fcmService *services.FCMService
	if fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push alerts disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else {
		fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE")
		if fcmCredentialsFile == "" {
			fcmCredentialsFile = "./firebase-service-account.json"
		}
		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push alerts disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Optional Redis cache for the live vehicle map
	var liveCache *store.LiveCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		liveCache, err = store.NewLiveCache(redisURL)
		if err != nil {
			log.Printf("⚠️  Live cache disabled: %v", err)
			liveCache = nil
		} else {
			log.Println("✅ Redis live cache connected")
		}
	} else {
		log.Println("⚠️  REDIS_URL not set, live positions served from database only")
	}

	// Wire the ingestion gateway: Postgres stores behind it, events fanned out
	// to the websocket hub, the live cache and the FCM alert notifier.
	sinks := ingest.MultiSink{websocket.NewEventBroadcaster(wsHub)}
	if liveCache != nil {
		sinks = append(sinks, liveCache)
	}
	if fcmService != nil {
		sinks = append(sinks, services.NewAlertNotifier(db, fcmService))
	}

	gateway := ingest.NewGateway(
		store.NewVehicleStore(db),
		store.NewDriverStore(db),
		store.NewSessionStore(db),
		store.NewLocationStore(db),
		sinks,
		gatewayConfig(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.RunSweeper(ctx)
	log.Println("✅ Session timeout sweeper started")

	// Create router
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub))

	r.Route("/api", func(r chi.Router) {
		// Device endpoints (no dashboard auth; devices are identified by device_id)
		r.Post("/device/report", handlers.DeviceReport(gateway))
		r.Post("/device/validate-rfid", handlers.ValidateRFID(gateway))

		// Dashboard endpoints (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Get("/auth/status", handlers.GetAuthStatus(db))
			r.Post("/auth/fcm-token", handlers.RegisterFCMToken(db))

			// Live fleet view
			r.Get("/sessions/active", handlers.GetActiveSessions(gateway))
			r.Get("/sessions/live", handlers.GetLivePositions(db, gateway, liveCache))
			r.Get("/sessions/{id}", handlers.GetSession(db))
			r.Get("/sessions/{id}/route", handlers.GetSessionRoute(db))

			// Fleet registry
			r.Get("/vehicles", handlers.GetVehicles(db))
			r.Get("/vehicles/{id}", handlers.GetVehicle(db))
			r.Get("/vehicles/{id}/stats", handlers.GetVehicleStats(db))
			r.Get("/vehicles/{id}/active-session", handlers.GetVehicleActiveSession(db))
			r.Get("/drivers", handlers.GetDrivers(db))
			r.Get("/drivers/{id}", handlers.GetDriver(db))
			r.Get("/drivers/{id}/stats", handlers.GetDriverStats(db))

			// Analytics
			r.Get("/analytics/dashboard", handlers.GetDashboard(db))
			r.Get("/analytics/daily", handlers.GetDailyStats(db))
			r.Get("/analytics/sessions", handlers.GetSessionHistory(db))
		})

		// Admin endpoints (require authentication + admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin"))

			r.Post("/sessions/{id}/end", handlers.EndSession(gateway))

			r.Post("/vehicles", handlers.CreateVehicle(db))
			r.Put("/vehicles/{id}", handlers.UpdateVehicle(db))
			r.Delete("/vehicles/{id}", handlers.DeleteVehicle(db))

			r.Post("/drivers", handlers.CreateDriver(db))
			r.Put("/drivers/{id}", handlers.UpdateDriver(db))
			r.Delete("/drivers/{id}", handlers.DeleteDriver(db))
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Printf("✅ Server listening on port %s", port)
	log.Println("═══════════════════════════════════════════════════════════════════")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}

// gatewayConfig builds the ingestion config from environment overrides
func gatewayConfig() ingest.Config {
	cfg := ingest.DefaultConfig()

	if v := os.Getenv("INGEST_RECOMPUTE_SAMPLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RecomputeSampleEvery = n
		}
	}
	if v := os.Getenv("DEVICE_NOFIX_LAT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.NoFix.Latitude = f
		}
	}
	if v := os.Getenv("DEVICE_NOFIX_LON"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.NoFix.Longitude = f
		}
	}
	if v := os.Getenv("SESSION_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTimeout = time.Duration(n) * time.Minute
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepInterval = time.Duration(n) * time.Minute
		}
	}
	return cfg
}
