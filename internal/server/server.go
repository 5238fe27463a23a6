// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nutrilog/internal/gateway"
	"nutrilog/internal/logging"
	"nutrilog/internal/logstore"
	"nutrilog/internal/models"
)

const Version = "1.0.0"

type Config struct {
	Addr string
}

type NutritionServer struct {
	engine     *gin.Engine
	httpServer *http.Server
	store      *logstore.Store
	gateway    gateway.Gateway
	log        *logging.Logger
	tools      map[string]toolHandler
	info       protocol.Implementation
}

func NewNutritionServer(cfg *Config, store *logstore.Store, gw gateway.Gateway, log *logging.Logger) *NutritionServer {
	if log == nil {
		log = logging.Nop()
	}
	s := &NutritionServer{
		store:   store,
		gateway: gw,
		log:     log,
		info: protocol.Implementation{
			Name:    "nutrilog",
			Version: Version,
		},
	}
	s.registerTools()

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), corsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/nutrition", s.handleNutrition)
	r.GET("/api/nutrition", s.handleNutrition)

	logs := r.Group("/log")
	{
		logs.GET("", s.handleGetLog)
		logs.PUT("/query", s.handleSetQuery)
		logs.POST("/search", s.handleSearch)
		logs.GET("/suggest", s.handleSuggest)
		logs.DELETE("/items/:id", s.handleRemove)
		logs.DELETE("", s.handleClear)
	}

	r.GET("/mcp", s.handleListTools)
	r.POST("/mcp", gin.WrapF(s.handleMCP))

	s.engine = r
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mostly for tests.
func (s *NutritionServer) Handler() http.Handler {
	return s.engine
}

func (s *NutritionServer) Start(ctx context.Context) error {
	s.log.Info("starting nutrition server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *NutritionServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// handleNutrition is the lookup gateway route: it forwards the query
// upstream and maps failures onto the error envelope.
func (s *NutritionServer) handleNutrition(c *gin.Context) {
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Query is required"})
		return
	}

	facts, err := s.gateway.Lookup(c.Request.Context(), query)
	if err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) && gerr.StatusCode != 0 {
			c.JSON(gerr.StatusCode, models.ErrorResponse{
				Error:   gateway.Name + " API error",
				Details: gerr.Details,
			})
			return
		}
		s.log.Error("nutrition lookup failed", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, models.LookupResponse{Items: facts})
}

type logView struct {
	Items     []models.NutritionItem `json:"items"`
	Totals    models.Totals          `json:"totals"`
	Searching bool                   `json:"searching"`
	Query     string                 `json:"query"`
}

func (s *NutritionServer) view() logView {
	return logView{
		Items:     s.store.Items(),
		Totals:    s.store.Totals(),
		Searching: s.store.Searching(),
		Query:     s.store.Query(),
	}
}

func (s *NutritionServer) handleGetLog(c *gin.Context) {
	c.JSON(http.StatusOK, s.view())
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *NutritionServer) handleSetQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid body"})
		return
	}
	s.store.SetQuery(req.Query)
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "suggestions": s.store.Suggest(req.Query)})
}

func (s *NutritionServer) handleSearch(c *gin.Context) {
	var req queryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid body"})
			return
		}
	}

	// a lookup is not aborted when the client goes away
	res, err := s.store.Search(context.WithoutCancel(c.Request.Context()), req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "totals": s.store.Totals()})
}

func (s *NutritionServer) handleSuggest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": s.store.Suggest(c.Query("q"))})
}

func (s *NutritionServer) handleRemove(c *gin.Context) {
	removed, err := s.store.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed, "totals": s.store.Totals()})
}

func (s *NutritionServer) handleClear(c *gin.Context) {
	confirmed := c.Query("confirm") == "true"
	cleared, err := s.store.ClearAll(c.Request.Context(), logstore.ConfirmFunc(func(string) bool {
		return confirmed
	}))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared, "totals": s.store.Totals()})
}

func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
	})
}
