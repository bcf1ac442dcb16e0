package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"fleettrack-backend/internal/middleware"
	"fleettrack-backend/internal/models"
	"fleettrack-backend/pkg/utils"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OK    bool                 `json:"ok"`
	Token string               `json:"token,omitempty"`
	User  *models.UserResponse `json:"user,omitempty"`
}

func Login(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		log.Printf("🔐 Login attempt for: %s", req.Email)

		jwtSecret := os.Getenv("APP_JWT_SECRET")
		if jwtSecret == "" {
			log.Println("❌ JWT secret not configured")
			utils.RespondJSON(w, http.StatusInternalServerError, LoginResponse{OK: false})
			return
		}

		var user models.User
		if err := db.Get(&user, "SELECT * FROM users WHERE email = $1", req.Email); err != nil {
			log.Printf("❌ User not found: %s", req.Email)
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			log.Printf("❌ Invalid password for: %s", req.Email)
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": user.ID,
			"email":   user.Email,
			"role":    user.Role,
			"iat":     time.Now().Unix(),
			"exp":     time.Now().Add(7 * 24 * time.Hour).Unix(),
		})

		tokenString, err := token.SignedString([]byte(jwtSecret))
		if err != nil {
			log.Println("❌ Failed to create token")
			http.Error(w, "Failed to create token", http.StatusInternalServerError)
			return
		}

		userResponse := user.ToUserResponse()
		log.Printf("✅ Login successful: %s (%s)", user.Email, user.Role)

		utils.RespondJSON(w, http.StatusOK, LoginResponse{
			OK:    true,
			Token: tokenString,
			User:  &userResponse,
		})
	}
}

// GetAuthStatus returns the current user, letting the dashboard restore a
// session from a stored token.
func GetAuthStatus(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var user models.User
		if err := db.Get(&user, "SELECT * FROM users WHERE id = $1", claims.UserID); err != nil {
			utils.RespondError(w, http.StatusUnauthorized, "User not found")
			return
		}

		utils.RespondSuccess(w, user.ToUserResponse())
	}
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

// RegisterFCMToken stores a push token for the logged-in user. Re-registering
// an existing token moves it to the current user.
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req RegisterFCMTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}
		switch req.DeviceType {
		case "ios", "android", "web":
		default:
			utils.RespondError(w, http.StatusBadRequest, "device_type must be ios, android or web")
			return
		}

		_, err := db.Exec(`
			INSERT INTO fcm_tokens (user_id, token, device_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (token) DO UPDATE
			SET user_id = EXCLUDED.user_id,
			    device_type = EXCLUDED.device_type,
			    updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		`, claims.UserID, req.Token, req.DeviceType)
		if err != nil {
			log.Printf("❌ Failed to register FCM token: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to register token")
			return
		}

		log.Printf("✅ FCM token registered for user %s (%s)", claims.UserID, req.DeviceType)
		utils.RespondSuccess(w, map[string]string{"status": "registered"})
	}
}
