package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	charapp "character-server/internal/app/character"
	"character-server/internal/domain/character"
)

const (
	msgNotFound = "Character not found"
	msgDeleted  = "Character deleted"
	msgInternal = "Internal Server Error"
)

// Pinger reports storage reachability for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerConfig struct {
	CorsOrigin     string
	MaxBodySize    int64
	RequestTimeout time.Duration
}

type Handler struct {
	logger     zerolog.Logger
	store      character.Store
	characters *charapp.Service
	pinger     Pinger
	cfg        HandlerConfig
}

type contextKey string

const sessionContextKey contextKey = "character_session"

func NewHandler(logger zerolog.Logger, cfg HandlerConfig, store character.Store, characters *charapp.Service, pinger Pinger) *Handler {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 20 * time.Second
	}
	return &Handler{logger: logger, store: store, characters: characters, pinger: pinger, cfg: cfg}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(h.logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.cfg.RequestTimeout))
	r.Use(h.cors)

	r.Get("/", h.root)
	r.Get("/healthz", h.health)
	r.Get("/readyz", h.ready)

	r.Route("/characters", func(cr chi.Router) {
		cr.Use(middleware.StripSlashes)
		cr.Use(h.withSession)
		cr.Post("/", h.createCharacter)
		cr.Get("/", h.listCharacters)
		cr.Get("/{characterID}", h.getCharacter)
		cr.Put("/{characterID}", h.updateCharacter)
		cr.Delete("/{characterID}", h.deleteCharacter)
	})

	return r
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Ola": "Mundo!!"})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// withSession checks out one storage session for the request and releases it
// on every exit path.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.store.Acquire(r.Context())
		if err != nil {
			h.internalError(w, r, err, "acquire session failed")
			return
		}
		defer sess.Release()
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromCtx(ctx context.Context) character.Session {
	sess, _ := ctx.Value(sessionContextKey).(character.Session)
	return sess
}

func (h *Handler) createCharacter(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	c, err := h.characters.Create(r.Context(), sessionFromCtx(r.Context()), in)
	if err != nil {
		h.internalError(w, r, err, "create character failed")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) listCharacters(w http.ResponseWriter, r *http.Request) {
	var errs validationErrors
	skip := errs.queryInt(r, "skip", character.DefaultSkip)
	limit := errs.queryInt(r, "limit", character.DefaultLimit)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	chars, err := h.characters.List(r.Context(), sessionFromCtx(r.Context()), skip, limit)
	if err != nil {
		h.internalError(w, r, err, "list characters failed")
		return
	}
	writeJSON(w, http.StatusOK, chars)
}

func (h *Handler) getCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := characterID(w, r)
	if !ok {
		return
	}
	c, err := h.characters.Get(r.Context(), sessionFromCtx(r.Context()), id)
	if err != nil {
		h.writeLookupError(w, r, err, id, "get character failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) updateCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := characterID(w, r)
	if !ok {
		return
	}
	patch, ok := h.decodePatch(w, r)
	if !ok {
		return
	}
	c, err := h.characters.Update(r.Context(), sessionFromCtx(r.Context()), id, patch)
	if err != nil {
		h.writeLookupError(w, r, err, id, "update character failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := characterID(w, r)
	if !ok {
		return
	}
	if err := h.characters.Delete(r.Context(), sessionFromCtx(r.Context()), id); err != nil {
		h.writeLookupError(w, r, err, id, "delete character failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": msgDeleted})
}

func characterID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "characterID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeValidation(w, validationErrors{{
			Loc:  []string{"path", "character_id"},
			Msg:  "value is not a valid integer",
			Type: "type_error.integer",
		}})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, err error, id int64, msg string) {
	if errors.Is(err, character.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": msgNotFound})
		return
	}
	hlog.FromRequest(r).Error().Err(err).Int64("character_id", id).Msg(msg)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": msgInternal})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	hlog.FromRequest(r).Error().Err(err).Msg(msg)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": msgInternal})
}

func (h *Handler) cors(next http.Handler) http.Handler {
	origin := h.cfg.CorsOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
