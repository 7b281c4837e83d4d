package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	gin "github.com/gin-gonic/gin"
	"gorm.io/gorm"

	auditchain "github.com/hualuo-tech/datagov/internal/audit/chain"
	"github.com/hualuo-tech/datagov/internal/auth/rbac"
	jwt "github.com/hualuo-tech/datagov/internal/auth/token"
	"github.com/hualuo-tech/datagov/internal/catalog"
	"github.com/hualuo-tech/datagov/internal/identity"
	"github.com/hualuo-tech/datagov/internal/telemetry"
	workflow "github.com/hualuo-tech/datagov/internal/workflow"
	"github.com/hualuo-tech/datagov/internal/workflow/access"
	"github.com/hualuo-tech/datagov/internal/workflow/approval"
	"github.com/hualuo-tech/datagov/internal/workflow/template"
)

// Server is the portal HTTP surface: approvals, templates and the catalog.
// It owns no domain logic; every handler delegates to the engine/repos and
// translates their errors to the JSON envelope.
type Server struct {
	db        *gorm.DB
	engine    *approval.Engine
	templates *template.Repo
	access    *access.Manager
	catalog   *catalog.Store
	idp       identity.Provider
	rbac      rbac.PolicyInterface
	jwtMgr    *jwt.Manager
	audit     *auditchain.Writer
	metrics   *telemetry.WorkflowMetrics

	startedAt   time.Time
	rbacDenied  int64
	auditErrors int64

	httpSrv *http.Server
}

// Options carries the collaborators the server routes over. Audit, rbac and
// metrics are optional; nil disables the corresponding behavior.
type Options struct {
	DB        *gorm.DB
	Engine    *approval.Engine
	Templates *template.Repo
	Access    *access.Manager
	Catalog   *catalog.Store
	Identity  identity.Provider
	RBAC      rbac.PolicyInterface
	JWT       *jwt.Manager
	Audit     *auditchain.Writer
	Metrics   *telemetry.WorkflowMetrics
}

func NewServer(opts Options) *Server {
	return &Server{
		db:        opts.DB,
		engine:    opts.Engine,
		templates: opts.Templates,
		access:    opts.Access,
		catalog:   opts.Catalog,
		idp:       opts.Identity,
		rbac:      opts.RBAC,
		jwtMgr:    opts.JWT,
		audit:     opts.Audit,
		metrics:   opts.Metrics,
		startedAt: time.Now(),
	}
}

// ginEngine assembles the router. Split out from Start so tests can drive
// the handlers through httptest without binding a port.
func (s *Server) ginEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		s.JSON(c, http.StatusOK, gin.H{
			"status":       "ok",
			"uptime_sec":   int64(time.Since(s.startedAt).Seconds()),
			"rbac_denied":  atomic.LoadInt64(&s.rbacDenied),
			"audit_errors": atomic.LoadInt64(&s.auditErrors),
		})
	})

	s.addApprovalRoutes(r)
	s.addTemplateRoutes(r)
	s.addCatalogRoutes(r)
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"dur_ms", time.Since(start).Milliseconds())
	}
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.ginEngine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("http server listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// auth extracts the caller from the bearer token.
func (s *Server) auth(r *http.Request) (string, []string, bool) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") && s.jwtMgr != nil {
		tok := strings.TrimPrefix(authz, "Bearer ")
		claims, err := s.jwtMgr.Verify(tok)
		if err == nil {
			return claims.Sub, claims.Roles, true
		}
	}
	return "", nil, false
}

// can checks permission for the user or any of their roles.
func (s *Server) can(user string, roles []string, perm string) bool {
	if s.rbac == nil {
		return true
	}
	if s.rbac.Can(user, perm) {
		return true
	}
	for _, role := range roles {
		if s.rbac.Can("role:"+role, perm) {
			return true
		}
	}
	return false
}

// require authenticates and checks that the caller holds any of the given
// permissions. On failure it has already written the error response.
func (s *Server) require(c *gin.Context, anyOf ...string) (string, []string, bool) {
	user, roles, ok := s.auth(c.Request)
	if !ok {
		s.respondError(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return "", nil, false
	}
	if len(anyOf) == 0 {
		return user, roles, true
	}
	for _, p := range anyOf {
		if s.can(user, roles, p) {
			return user, roles, true
		}
	}
	atomic.AddInt64(&s.rbacDenied, 1)
	s.respondError(c, http.StatusForbidden, "forbidden", "forbidden")
	return user, roles, false
}

func (s *Server) respondError(c *gin.Context, status int, code, message string) {
	type errBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	s.JSON(c, status, errBody{Code: code, Message: message})
}

// writeErr maps domain errors onto the HTTP envelope.
func (s *Server) writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		s.respondError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, workflow.ErrConflict):
		s.metrics.Conflict(c.Request.Context())
		s.respondError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, workflow.ErrInvalidState):
		s.respondError(c, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, workflow.ErrIncompatible):
		s.respondError(c, http.StatusBadRequest, "incompatible_request", err.Error())
	case errors.Is(err, workflow.ErrValidation):
		s.respondError(c, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		slog.Error("handler error", "path", c.Request.URL.Path, "err", err)
		s.respondError(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// auditLog appends to the hash chain; failures are counted, never fatal.
func (s *Server) auditLog(kind, actor, target string, meta map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(kind, actor, target, meta); err != nil {
		atomic.AddInt64(&s.auditErrors, 1)
		slog.Warn("audit append failed", "kind", kind, "err", err)
	}
}
