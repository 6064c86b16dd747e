package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"orionos/internal/ratelimit"
	"orionos/internal/servicetoken"
	"orionos/internal/util"
	"orionos/pkg/domain"
	"orionos/services/desktop/internal/app"
)

const maxJSONBody = 1 << 20

// IdentityVerifier turns a bearer token into the caller's identity.
type IdentityVerifier interface {
	VerifyIdentity(token string) (domain.Identity, error)
}

// Realtime upgrades a request into a profile's event socket.
type Realtime interface {
	ServeWS(w http.ResponseWriter, r *http.Request, profileID string)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App               *app.App
	Identity          IdentityVerifier
	Internal          *servicetoken.Verifier
	Realtime          Realtime
	InitializeLimiter ratelimit.Limiter
	UploadLimiter     ratelimit.Limiter
	TrustedProxies    *util.TrustedProxies
	AllowedOrigins    util.Origins
	MaxUploadBytes    int64
}

// Server exposes HTTP endpoints for the desktop service.
type Server struct {
	app            *app.App
	identity       IdentityVerifier
	internal       *servicetoken.Verifier
	realtime       Realtime
	initLimiter    ratelimit.Limiter
	uploadLimiter  ratelimit.Limiter
	trusted        *util.TrustedProxies
	origins        util.Origins
	router         *mux.Router
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("server: identity verifier is required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	s := &Server{
		app:            cfg.App,
		identity:       cfg.Identity,
		internal:       cfg.Internal,
		realtime:       cfg.Realtime,
		initLimiter:    cfg.InitializeLimiter,
		uploadLimiter:  cfg.UploadLimiter,
		trusted:        cfg.TrustedProxies,
		origins:        cfg.AllowedOrigins,
		router:         mux.NewRouter(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("desktop", util.WithSecurityHeaders(util.WithCORS(s.origins, s.router))))
}

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "SYSTEM_NOT_FOUND", "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "SYSTEM_METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/internal/apps", s.withInternal(servicetoken.ScopeAppsWrite, s.handleRegisterApp)).Methods(http.MethodPost)

	r.Handle("/system/initialize", s.withIdentity(s.handleInitialize)).Methods(http.MethodPost)

	r.Handle("/desktop", s.withProfile(s.handleSnapshot)).Methods(http.MethodGet)
	r.Handle("/desktop", s.withProfile(s.handleUpdateDesktop)).Methods(http.MethodPatch)

	// workspaces
	r.Handle("/constellations", s.withProfile(s.handleListWorkspaces)).Methods(http.MethodGet)
	r.Handle("/constellations", s.withProfile(s.handleCreateWorkspace)).Methods(http.MethodPost)
	r.Handle("/constellations/{id}", s.withProfile(s.handleGetWorkspace)).Methods(http.MethodGet)
	r.Handle("/constellations/{id}", s.withProfile(s.handleUpdateWorkspace)).Methods(http.MethodPatch)
	r.Handle("/constellations/{id}", s.withProfile(s.handleDeleteWorkspace)).Methods(http.MethodDelete)
	r.Handle("/constellations/{id}/activate", s.withProfile(s.handleSwitchWorkspace)).Methods(http.MethodPatch)
	r.Handle("/constellations/{id}/dock", s.withProfile(s.handleUpdateDock)).Methods(http.MethodPatch)
	r.Handle("/constellations/{id}/flow", s.withProfile(s.handleSetWorkspaceFlow)).Methods(http.MethodPatch)
	r.Handle("/constellations/{id}/windows", s.withProfile(s.handleOpenWindow)).Methods(http.MethodPost)

	// windows
	r.Handle("/windows/{id}/geometry", s.withProfile(s.handleGeometry)).Methods(http.MethodPatch)
	r.Handle("/windows/{id}/flags", s.withProfile(s.handleFlags)).Methods(http.MethodPatch)
	r.Handle("/windows/{id}/content", s.withProfile(s.handleContent)).Methods(http.MethodPatch)
	r.Handle("/windows/{id}/close", s.withProfile(s.handleClose)).Methods(http.MethodPost)
	r.Handle("/windows/{id}/focus", s.withProfile(s.handleFocus)).Methods(http.MethodPut)
	r.Handle("/windows/{id}/drag", s.withProfile(s.handleStageDrag)).Methods(http.MethodPut)
	r.Handle("/windows/{id}/drag/commit", s.withProfile(s.handleCommitDrag)).Methods(http.MethodPost)
	r.Handle("/windows/{id}/launch", s.withProfile(s.handleLaunch)).Methods(http.MethodGet)

	// apps and flows
	r.Handle("/apps", s.withProfile(s.handleListApps)).Methods(http.MethodGet)
	r.Handle("/installed-apps", s.withProfile(s.handleListInstalled)).Methods(http.MethodGet)
	r.Handle("/installed-apps", s.withProfile(s.handleInstall)).Methods(http.MethodPost)
	r.Handle("/installed-apps/{id}", s.withProfile(s.handleUninstall)).Methods(http.MethodDelete)
	r.Handle("/flows", s.withProfile(s.handleListFlows)).Methods(http.MethodGet)
	r.Handle("/flows", s.withProfile(s.handleCreateFlow)).Methods(http.MethodPost)
	r.Handle("/flows/{id}", s.withProfile(s.handleUpdateFlow)).Methods(http.MethodPatch)
	r.Handle("/streams", s.withProfile(s.handleListStreams)).Methods(http.MethodGet)
	r.Handle("/streams", s.withProfile(s.handleCreateStream)).Methods(http.MethodPost)

	r.Handle("/uploads/{endpoint}", s.withProfile(s.handleUpload)).Methods(http.MethodPost)
	r.Handle("/ws", s.withProfile(s.handleWS)).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type identityHandler func(http.ResponseWriter, *http.Request, domain.Identity)

type profileHandler func(http.ResponseWriter, *http.Request, domain.Profile)

func (s *Server) withIdentity(next identityHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "unauthorized")
			return
		}
		next(w, r, identity)
	})
}

// withProfile requires a provisioned profile for the caller's identity.
func (s *Server) withProfile(next profileHandler) http.Handler {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
		profile, err := s.app.ResolveProfile(r.Context(), identity)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		ctx := util.ContextWithLogger(r.Context(), util.LoggerFromContext(r.Context()).With("profile_id", profile.ID))
		next(w, r.WithContext(ctx), profile)
	})
}

func (s *Server) authenticate(r *http.Request) (domain.Identity, bool) {
	token, ok := servicetoken.BearerToken(r)
	if !ok && r.URL.Path == "/ws" {
		// Browsers cannot set headers on a websocket handshake.
		token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		ok = token != ""
	}
	if !ok {
		return domain.Identity{}, false
	}
	identity, err := s.identity.VerifyIdentity(token)
	if err != nil {
		util.LoggerFromContext(r.Context()).Debug("identity token rejected", "err", err)
		return domain.Identity{}, false
	}
	return identity, true
}

func (s *Server) withInternal(scope string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.internal == nil {
			writeError(w, http.StatusInternalServerError, "SYSTEM_INTERNAL_ERROR", "internal auth not configured")
			return
		}
		claims, err := s.internal.Authorize(r, scope)
		switch {
		case errors.Is(err, servicetoken.ErrScope):
			writeError(w, http.StatusForbidden, "AUTH_FORBIDDEN", "forbidden")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "AUTH_INVALID_SERVICE_TOKEN", "unauthorized")
			return
		}
		util.LoggerFromContext(r.Context()).Info("internal call authorized", "issuer", claims.Issuer, "scope", scope)
		next(w, r)
	})
}

// allowRate reports whether the request fits the limiter's window, writing
// a 429 with Retry-After when it does not.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, key string) bool {
	if limiter == nil {
		return true
	}
	decision := limiter.Allow(r.Context(), key)
	if decision.Allowed {
		return true
	}
	retry := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, "SYSTEM_RATE_LIMITED", "too many requests")
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trusted)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := decodeJSON(r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
