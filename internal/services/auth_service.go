package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cardmart/backend/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	ledger    *AccountLedgerService
	redis     *redis.Client
	validator *validator.Validate
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32" example:"cardfan42"` // Unique username
	Password string `json:"password" validate:"required,min=8" example:"password123"`      // Password
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"cardfan42"`
	Password string `json:"password" validate:"required" example:"password123"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token   string         `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	Account models.Account `json:"account"`                                                 // Account details
}

func NewAuthService(db *sql.DB, ledger *AccountLedgerService, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		ledger:    ledger,
		redis:     redisClient,
		validator: validator.New(),
	}
}

// Register handles user registration
// @Summary Register a new account
// @Description Register a new account with username and password; balance starts at zero
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 409 {object} ErrorResponse "Username already exists"
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RegisterRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := s.createAccount(r.Context(), req.Username, req.Password, false)
	if err != nil {
		log.Printf("[AUTH] Account creation failed for %s: %v", req.Username, err)
		SendStoreError(w, err)
		return
	}

	token, err := generateJWT(account.ID, account.IsAdmin)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for account %s: %v", account.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Registration successful for account %s (%s)", account.ID, account.Username)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Account: *account})
}

// Login handles user authentication
// @Summary Login
// @Description Authenticate with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))

	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, username, password_hash, balance, is_admin, created_at
		FROM accounts WHERE username = $1`, username).
		Scan(&account.ID, &account.Username, &account.PasswordHash, &account.Balance, &account.IsAdmin, &account.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] Account not found for username: %s", username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, account.PasswordHash) {
		log.Printf("[AUTH] Invalid password for account: %s", username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(account.ID, account.IsAdmin)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for account %s: %v", account.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	account.PasswordHash = ""
	log.Printf("[AUTH] Login successful for account %s", account.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Account: account})
}

// Logout handles user logout
// @Summary Logout
// @Description Logout and blacklist the current token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// GetAccount retrieves the authenticated account
// @Summary Get account details
// @Description Get the authenticated account's details
// @Tags auth
// @Produce json
// @Success 200 {object} models.Account "Account details"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /auth/account [get]
func (s *AuthService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		log.Printf("[AUTH] Unauthorized account request - no account ID in context")
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, username, balance, is_admin, push_token, created_at
		FROM accounts WHERE id = $1`, accountID).
		Scan(&account.ID, &account.Username, &account.Balance, &account.IsAdmin, &account.PushToken, &account.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendStoreError(w, models.NewStoreError(models.ErrCodeAccountNotFound, "account not found"))
		} else {
			log.Printf("[AUTH] Failed to fetch account %s: %v", accountID, err)
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// SeedAdmin creates the bootstrap admin account if it does not already
// exist. The seed balance is applied as a ledger deposit so the
// balance-equals-sum-of-entries invariant holds from the first row.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	username := viper.GetString("admin.username")
	password := viper.GetString("admin.password")
	if username == "" || password == "" {
		log.Println("[AUTH] No bootstrap admin configured, skipping seed")
		return nil
	}

	account, err := s.createAccount(ctx, username, password, true)
	if err != nil {
		if models.ErrorCode(err) == models.ErrCodeDuplicateUsername {
			return nil
		}
		return err
	}

	if seed := viper.GetInt64("admin.seed_balance"); seed > 0 {
		if _, _, err := s.ledger.Deposit(ctx, account.ID, seed, "Bootstrap admin seed"); err != nil {
			return err
		}
	}

	log.Printf("[AUTH] Bootstrap admin %s created", username)
	return nil
}

func (s *AuthService) createAccount(ctx context.Context, username, password string, isAdmin bool) (*models.Account, error) {
	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:        newID(),
		Username:  strings.ToLower(strings.TrimSpace(username)),
		Balance:   0,
		IsAdmin:   isAdmin,
		CreatedAt: time.Now(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, password_hash, balance, is_admin, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, 1, $5, $5)`,
		account.ID, account.Username, hashedPassword, account.IsAdmin, account.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, models.NewStoreError(models.ErrCodeDuplicateUsername, "username already exists")
		}
		return nil, err
	}

	return account, nil
}

func generateJWT(accountID string, isAdmin bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  accountID,
		"is_admin": isAdmin,
		"exp":      time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
