package database

import (
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// SeedUsers creates the default dashboard accounts if none exist
func SeedUsers(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin123"
		log.Println("⚠️  ADMIN_PASSWORD not set, using default (change it!)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []struct {
		email string
		name  string
		role  string
	}{
		{"admin@fleettrack.local", "Fleet Admin", "admin"},
		{"viewer@fleettrack.local", "Dashboard Viewer", "viewer"},
	}

	for _, u := range users {
		_, err := db.Exec(
			`INSERT INTO users (id, email, password, name, role) VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), u.email, string(hash), u.name, u.role,
		)
		if err != nil {
			return err
		}
	}

	log.Printf("🌱 Seeded %d users", len(users))
	return nil
}

// SeedFleet loads a small demo fleet for fresh installs. Skipped the moment
// real vehicles exist.
func SeedFleet(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM vehicles"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Fleet already seeded, skipping...")
		return nil
	}

	vehicles := []struct {
		plate    string
		brand    string
		model    string
		year     int
		deviceID string
	}{
		{"34ABC123", "Ford", "Transit", 2021, "ESP32_1"},
		{"34DEF456", "Mercedes", "Sprinter", 2022, "ESP32_2"},
		{"34GHI789", "Volkswagen", "Crafter", 2020, "ESP32_3"},
	}

	for _, v := range vehicles {
		_, err := db.Exec(
			`INSERT INTO vehicles (id, plate_number, brand, model, year, device_id) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), v.plate, v.brand, v.model, v.year, v.deviceID,
		)
		if err != nil {
			return err
		}
	}

	drivers := []struct {
		first string
		last  string
		card  string
	}{
		{"Ayşe", "Demir", "A1B2C3D4"},
		{"Mehmet", "Kaya", "E5F6A7B8"},
	}

	for _, d := range drivers {
		_, err := db.Exec(
			`INSERT INTO drivers (id, first_name, last_name, rfid_card_id) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), d.first, d.last, d.card,
		)
		if err != nil {
			return err
		}
	}

	log.Printf("🌱 Seeded %d vehicles and %d drivers", len(vehicles), len(drivers))
	return nil
}
