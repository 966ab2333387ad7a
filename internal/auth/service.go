package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const cookieName = "todoquest_session"

type Service struct {
	repo     *SessionRepo
	verifier Verifier

	logger *log.Logger

	sessionTTL time.Duration
}

type ServiceOptions struct {
	Repo       *SessionRepo
	Verifier   Verifier
	Logger     *log.Logger
	SessionTTL time.Duration
}

func NewService(opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	return &Service{
		repo:       opts.Repo,
		verifier:   opts.Verifier,
		logger:     opts.Logger,
		sessionTTL: opts.SessionTTL,
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// Login verifies the credential and mints a session. The returned token
// is handed to the client once; only its hash is stored.
func (s *Service) Login(ctx context.Context, credential string, now time.Time) (Session, string, error) {
	subject, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		return Session{}, "", err
	}

	token, err := generateToken()
	if err != nil {
		return Session{}, "", err
	}

	sess := Session{
		ID:        uuid.NewString(),
		Subject:   subject,
		TokenHash: hashToken(token),
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.repo.Create(sess); err != nil {
		return Session{}, "", err
	}
	return sess, token, nil
}

func (s *Service) AuthenticateRequest(r *http.Request, now time.Time) (Session, bool) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, false
	}

	hash := hashToken(cookie.Value)
	sess, ok := s.repo.GetByTokenHash(hash)
	if !ok {
		return Session{}, false
	}

	if now.After(sess.ExpiresAt) {
		_ = s.repo.Delete(hash)
		return Session{}, false
	}

	// Best-effort last-seen update, throttled to reduce writes.
	if now.Sub(sess.LastSeen) >= 5*time.Minute {
		_ = s.repo.Touch(hash, now)
		sess.LastSeen = now
	}

	return sess, true
}

func (s *Service) RevokeSessionForRequest(r *http.Request) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	_ = s.repo.Delete(hashToken(cookie.Value))
}

func (s *Service) shouldUseSecureCookie(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("TODOQUEST_COOKIE_SECURE"))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

func (s *Service) SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.shouldUseSecureCookie(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.shouldUseSecureCookie(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.AuthenticateRequest(r, time.Now())
		if !ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unauthorized"})
			return
		}
		ctx := withSessionContext(withSubjectContext(r.Context(), sess.Subject), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
