// Package api exposes the engine over HTTP: the opportunity store, the
// latest gap report, run triggers and per-user watchlists.
package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/marcus/opportunity-finder/internal/auth"
	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/db"
	"github.com/marcus/opportunity-finder/internal/models"
	"github.com/marcus/opportunity-finder/internal/pipeline"
)

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

type Server struct {
	Echo        *echo.Echo
	Pipeline    *pipeline.Pipeline
	Archive     *db.Archive
	Users       *db.Users
	AuthService *auth.Service

	cfg       *config.Config
	sanitizer *bluemonday.Policy

	mu         sync.Mutex
	lastReport *models.GapReport
	lastStats  *pipeline.RunStats
}

func NewServer(cfg *config.Config, p *pipeline.Pipeline, pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	users := db.NewUsers(pool)
	s := &Server{
		Echo:        e,
		Pipeline:    p,
		Archive:     db.NewArchive(pool),
		Users:       users,
		AuthService: auth.NewService(users),
		cfg:         cfg,
		sanitizer:   bluemonday.StrictPolicy(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/report", s.handleGetReport)
	api.GET("/stats", s.handleGetStats)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/analyze", s.handleAnalyze)
	admin.GET("/runs", s.handleListRuns)

	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	watch := api.Group("/watchlist")
	watch.Use(auth.Middleware)
	watch.POST("/:id", s.handleWatch)
	watch.DELETE("/:id", s.handleUnwatch)
	watch.GET("", s.handleWatchlist)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// documentSubmission is the analyze request body item. Text is
// sanitized to plain text before it enters the engine.
type documentSubmission struct {
	SourceName  string     `json:"source_name"`
	Category    string     `json:"category,omitempty"`
	RawText     string     `json:"raw_text"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var body struct {
		Documents []documentSubmission `json:"documents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if len(body.Documents) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "documents is required"})
	}

	docs := make([]models.Document, 0, len(body.Documents))
	for _, sub := range body.Documents {
		if strings.TrimSpace(sub.RawText) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "raw_text is required on every document"})
		}
		docs = append(docs, models.Document{
			SourceName:  strings.TrimSpace(sub.SourceName),
			Category:    models.Category(sub.Category),
			RawText:     s.sanitizer.Sanitize(sub.RawText),
			PublishedAt: sub.PublishedAt,
		})
	}

	report, stats, err := s.Pipeline.Run(c.Request().Context(), docs)
	if err != nil {
		log.Printf("api: analyze run failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	s.mu.Lock()
	s.lastReport = &report
	s.lastStats = &stats
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"report": report,
		"stats":  stats,
	})
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	category := c.QueryParam("category")
	quadrant := c.QueryParam("quadrant")
	minScore := 0
	if v, err := strconv.Atoi(c.QueryParam("min_score")); err == nil && v > 0 {
		minScore = v
	}

	out := []models.Opportunity{}
	for _, opp := range s.Pipeline.Store().Snapshot() {
		if category != "" && string(opp.Document.Category) != category {
			continue
		}
		if quadrant != "" && string(opp.Quadrant) != quadrant {
			continue
		}
		if opp.StrategicFitScore < minScore {
			continue
		}
		out = append(out, opp)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"opportunities": out,
		"total":         len(out),
	})
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, ok := s.Pipeline.Store().Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, opp)
}

// handleGetReport serves the report of the most recent run, falling
// back to the newest archived report when this process has not run yet.
func (s *Server) handleGetReport(c echo.Context) error {
	s.mu.Lock()
	report := s.lastReport
	s.mu.Unlock()
	if report != nil {
		return c.JSON(http.StatusOK, report)
	}

	archived, err := s.Archive.LatestReport(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no report available"})
	}
	return c.JSON(http.StatusOK, archived)
}

func (s *Server) handleGetStats(c echo.Context) error {
	s.mu.Lock()
	stats := s.lastStats
	s.mu.Unlock()

	resp := map[string]interface{}{
		"stored_opportunities": s.Pipeline.Store().Len(),
		"concurrency":          s.cfg.Concurrency,
		"rate_limit_rps":       s.cfg.RateLimitRPS,
	}
	if stats != nil {
		resp["last_run"] = stats
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 20
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	runs, err := s.Archive.ListRuns(c.Request().Context(), limit)
	if err != nil {
		log.Printf("api: list runs failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and a password of at least 8 characters are required"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWatch(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	if err := s.Users.Watch(c.Request().Context(), userID, c.Param("id")); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update watchlist"})
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnwatch(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	if err := s.Users.Unwatch(c.Request().Context(), userID, c.Param("id")); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update watchlist"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleWatchlist(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	ids, err := s.Users.Watchlist(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch watchlist"})
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, ids)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
