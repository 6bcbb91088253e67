package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"smartasset/internal/core"
	"smartasset/internal/log"
	"smartasset/internal/middleware/ratelimit"
	"smartasset/internal/middleware/security"
	"smartasset/internal/middleware/trace"
	"smartasset/internal/receipt"
	"smartasset/internal/reconcile"
	"smartasset/internal/services"
	appweb "smartasset/web"
)

const sessionCookie = "ledger_session"

// Options configures the HTTP surface.
type Options struct {
	Addr             string
	MaxUploadBytes   int64
	RateLimitRPM     int
	InterpretTimeout time.Duration
	SecureCookies    bool
}

// Deps are the collaborators the handlers call into. Interpreter may be nil,
// in which case receipt uploads are refused.
type Deps struct {
	Ledger      *services.LedgerService
	Interpreter receipt.Interpreter
	Sessions    *reconcile.Sessions
	Coercer     core.Coercer
	Logger      *log.Logger
	Metrics     *Metrics
}

type Server struct {
	http.Server
	templates    *template.Template
	ledger       *services.LedgerService
	interpreter  receipt.Interpreter
	sessions     *reconcile.Sessions
	coercer      core.Coercer
	logger       *log.Logger
	structLogger *log.StructuredLogger
	metrics      *Metrics
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	opts         Options
	now          func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Ledger == nil || deps.Sessions == nil {
		return nil, errors.New("ledger service and sessions are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Coercer == (core.Coercer{}) {
		deps.Coercer = core.NewCoercer("", "")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.InterpretTimeout <= 0 {
		opts.InterpretTimeout = 60 * time.Second
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		templates:    tmpl,
		ledger:       deps.Ledger,
		interpreter:  deps.Interpreter,
		sessions:     deps.Sessions,
		coercer:      deps.Coercer,
		logger:       logger,
		structLogger: log.NewStructuredLogger(logger),
		metrics:      deps.Metrics,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector:     security.NewDetector(),
		opts:         opts,
		now:          time.Now,
	}
	s.metrics.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "reconcile_sessions",
		Help:      "Sessions holding a reconciliation buffer.",
	}, func() float64 { return float64(s.sessions.Len()) }))

	s.Addr = opts.Addr
	s.Handler = s.routes()
	s.ReadHeaderTimeout = 10 * time.Second
	s.IdleTimeout = 2 * time.Minute
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /receipts", s.handleReceipt)

	mux.HandleFunc("GET /drafts", s.handleDrafts)
	mux.HandleFunc("POST /drafts", s.handleAddDraft)
	mux.HandleFunc("POST /drafts/confirm", s.handleConfirmDrafts)
	mux.HandleFunc("POST /drafts/discard", s.handleDiscardDrafts)
	mux.HandleFunc("POST /drafts/{id}", s.handleEditDraft)
	mux.HandleFunc("DELETE /drafts/{id}", s.handleDeleteDraft)

	mux.HandleFunc("GET /transactions", s.handleTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /ui/report", s.handleReport)
	mux.HandleFunc("POST /ui/refresh", s.handleRefresh)

	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("POST /categories", s.handleAddCategory)
	mux.HandleFunc("DELETE /categories/{name}", s.handleDeleteCategory)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, isMutation, s.onRateLimited)(h)
	h = s.flagSuspicious(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.metrics.ObserveRequest).Middleware(h)
	return h
}

// Writes and uploads are limited; reads and probes are not.
func isMutation(r *http.Request) bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.rateLimited.Inc()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, please slow down").
		Header("Retry-After", "60").
		Write(w)
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.Suspicious(r) {
			s.metrics.suspicious.Inc()
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// sessionBuffer returns the caller's reconciliation buffer, issuing a session
// cookie on first contact.
func (s *Server) sessionBuffer(w http.ResponseWriter, r *http.Request) (string, *reconcile.Buffer) {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil && len(c.Value) <= 64 {
		id = c.Value
	}
	if id == "" {
		id = reconcile.NewID()
	}
	// Refresh on every hit so the cookie outlives activity, not creation.
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id, s.sessions.Get(id)
}

// today is the calendar date used for defaults.
func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}
