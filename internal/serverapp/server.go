package serverapp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"todoquest/internal/auth"
	"todoquest/internal/config"
	"todoquest/internal/game"
	"todoquest/internal/httpmw"
	"todoquest/internal/storage"
	"todoquest/internal/suggest"
	"todoquest/internal/telemetry"
)

type Options struct {
	Config *config.Config
	Logger *log.Logger

	// Overrides for tests. Left nil, both are built from Config.
	Storage   storage.Store
	Suggester suggest.Suggester
}

// App bundles the HTTP handler with the engine whose ticker the caller
// drives, and the resources to release on shutdown.
type App struct {
	Handler http.Handler
	Engine  *game.Engine

	store storage.Store
}

func (a *App) Close() error {
	if c, ok := a.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func buildStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "file":
		return storage.NewFileStore(cfg.Storage.DataDir)
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewSQLiteStore(filepath.Join(cfg.Storage.DataDir, "todoquest.db"))
	default:
		return nil, errors.New("unknown storage backend: " + cfg.Storage.Backend)
	}
}

func buildSuggester(cfg *config.Config) suggest.Suggester {
	if cfg.Suggest.APIKey == "" {
		return suggest.Static{Point: cfg.Game.DefaultPoint}
	}
	return suggest.NewGeminiClient(suggest.GeminiOptions{
		APIKey:  cfg.Suggest.APIKey,
		BaseURL: cfg.Suggest.Endpoint,
		Timeout: cfg.Suggest.Timeout,
	})
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	store := opts.Storage
	if store == nil {
		var err error
		store, err = buildStore(opts.Config)
		if err != nil {
			return nil, err
		}
	}

	suggester := opts.Suggester
	if suggester == nil {
		suggester = buildSuggester(opts.Config)
	}

	engine, err := game.NewEngine(game.EngineOptions{
		Config:    opts.Config.Game,
		Storage:   store,
		Suggester: suggester,
		Events:    telemetry.NewMemoryRecorder(),
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	sessionRepo, err := auth.NewSessionRepo(store)
	if err != nil {
		return nil, err
	}
	authService := auth.NewService(auth.ServiceOptions{
		Repo: sessionRepo,
		Verifier: auth.StaticVerifier{
			Secret:  opts.Config.Auth.Secret,
			Subject: opts.Config.Auth.Subject,
		},
		Logger:     opts.Logger,
		SessionTTL: opts.Config.Auth.SessionTTL,
	})
	authHandler := auth.NewHandler(authService)

	gameHandler := game.NewHandler(engine)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "todoquest",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := store.Keys(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "todoquest",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/session", authHandler.Session)
	mux.HandleFunc("/api/auth/logout", authHandler.Logout)

	requireAPI := func(h http.HandlerFunc) http.Handler {
		return authService.RequireAPI(h)
	}
	mux.Handle("/api/tasks", requireAPI(gameHandler.TasksRoot))
	mux.Handle("/api/tasks/", requireAPI(gameHandler.TasksSub))
	mux.Handle("/api/state", requireAPI(gameHandler.State))
	mux.Handle("/api/notifications", requireAPI(gameHandler.Notifications))
	mux.Handle("/api/collection", requireAPI(gameHandler.Collection))
	mux.Handle("/api/character/", requireAPI(gameHandler.CharacterSub))
	mux.Handle("/api/suggest", requireAPI(gameHandler.Suggest))
	mux.Handle("/api/stats", requireAPI(gameHandler.Stats))

	mux.Handle("/api/config", requireAPI(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(opts.Config); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))

	handler := httpmw.Chain(
		mux,
		httpmw.WithAccessLog(opts.Logger),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
	)

	return &App{
		Handler: handler,
		Engine:  engine,
		store:   store,
	}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
