package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT Ping()")
		log.Printf("   Error: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Create users table (dashboard accounts)
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('viewer', 'admin')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create vehicles table
		`CREATE TABLE IF NOT EXISTS vehicles (
			id TEXT PRIMARY KEY,
			plate_number TEXT NOT NULL UNIQUE,
			brand TEXT NOT NULL,
			model TEXT NOT NULL,
			year INT NOT NULL,
			device_id TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create drivers table
		`CREATE TABLE IF NOT EXISTS drivers (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			rfid_card_id TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create driving_sessions table
		`CREATE TABLE IF NOT EXISTS driving_sessions (
			id TEXT PRIMARY KEY,
			vehicle_id TEXT NOT NULL,
			driver_id TEXT,
			start_time BIGINT NOT NULL,
			end_time BIGINT,
			start_latitude DOUBLE PRECISION NOT NULL,
			start_longitude DOUBLE PRECISION NOT NULL,
			end_latitude DOUBLE PRECISION,
			end_longitude DOUBLE PRECISION,
			total_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
			session_type TEXT NOT NULL DEFAULT 'idle' CHECK(session_type IN ('authorized', 'unauthorized', 'idle')),
			last_heartbeat BIGINT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (vehicle_id) REFERENCES vehicles(id) ON DELETE CASCADE,
			FOREIGN KEY (driver_id) REFERENCES drivers(id) ON DELETE SET NULL,
			CHECK (total_distance >= 0),
			CHECK (driver_id IS NULL OR session_type = 'authorized')
		)`,

		// Create location_logs table (append-only GPS track)
		`CREATE TABLE IF NOT EXISTS location_logs (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			speed DOUBLE PRECISION NOT NULL DEFAULT 0,
			heading DOUBLE PRECISION NOT NULL DEFAULT 0,
			accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
			timestamp BIGINT NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (session_id) REFERENCES driving_sessions(id) ON DELETE CASCADE
		)`,

		// Create FCM tokens table (dashboard push alerts)
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android', 'web')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// At most one open session per vehicle, enforced at the storage layer
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_driving_sessions_one_open
			ON driving_sessions(vehicle_id) WHERE is_active`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_device_id ON vehicles(device_id)`,
		`CREATE INDEX IF NOT EXISTS idx_drivers_rfid_card_id ON drivers(rfid_card_id)`,
		`CREATE INDEX IF NOT EXISTS idx_driving_sessions_driver_id ON driving_sessions(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_driving_sessions_vehicle_id ON driving_sessions(vehicle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_driving_sessions_is_active ON driving_sessions(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_driving_sessions_start_time ON driving_sessions(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_driving_sessions_session_type ON driving_sessions(session_type)`,
		`CREATE INDEX IF NOT EXISTS idx_driving_sessions_last_heartbeat ON driving_sessions(last_heartbeat)`,
		`CREATE INDEX IF NOT EXISTS idx_driving_sessions_vehicle_active ON driving_sessions(vehicle_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_location_logs_session_id ON location_logs(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_location_logs_timestamp ON location_logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_location_logs_session_timestamp ON location_logs(session_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_fcm_tokens_user_id ON fcm_tokens(user_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Printf("✅ Ran %d migrations", len(migrations))
	return nil
}
