package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL     = 12 * time.Hour
	tokenIssuer  = "harvest"
	tokenSubject = "admin"
)

// Auth guards the admin routes with a password login and HS256 bearer tokens
type Auth struct {
	secret       []byte
	passwordHash []byte
	ttl          time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewAuth hashes password and keeps only the hash in memory
func NewAuth(password, secret string, log zerolog.Logger) (*Auth, error) {
	if password == "" {
		return nil, fmt.Errorf("admin password must not be empty")
	}
	if secret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	return &Auth{
		secret:       []byte(secret),
		passwordHash: hash,
		ttl:          tokenTTL,
		log:          log.With().Str("component", "auth").Logger(),
		now:          time.Now,
	}, nil
}

// IssueToken signs a new admin token
func (a *Auth) IssueToken() (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, issuer, subject and expiry
func (a *Auth) ValidateToken(tokenString string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	return err
}

type loginRequest struct {
	Password string `json:"password"`
}

// HandleLogin handles POST /api/admin/login
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Expected a JSON object with a 'password' field"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)); err != nil {
		a.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Failed admin login")
		a.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid password"})
		return
	}

	token, expiresAt, err := a.IssueToken()
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to sign token")
		http.Error(w, "Failed to sign token", http.StatusInternalServerError)
		return
	}

	a.log.Info().Str("remote_addr", r.RemoteAddr).Msg("Admin logged in")
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// Middleware rejects requests without a valid bearer token
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err == nil {
			err = a.ValidateToken(tokenString)
		}
		if err != nil {
			a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected admin request")
			w.Header().Set("WWW-Authenticate", `Bearer realm="harvest"`)
			a.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(token), nil
}

func (a *Auth) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
