package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"bookshelf/catalog"
	"bookshelf/internal/logger"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	db     *catalog.Database
	logger logger.Logger
	store  sessions.Store
	router *gin.Engine
}

func NewServer(db *catalog.Database, logger logger.Logger, store sessions.Store) *Server {
	s := &Server{
		db:     db,
		logger: logger,
		store:  store,
		router: gin.New(),
	}
	s.routes()
	return s
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(requestID(), s.requestLogger(), gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.POST("/register", s.handleRegister)
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)

	auth := r.Group("/", s.requireLogin())
	{
		auth.GET("/books", s.handleListBooks)
		auth.POST("/books", s.handleAddBook)
		auth.GET("/books/:id", s.handleGetBook)
		auth.PUT("/books/:id", s.handleUpdateBook)
		auth.DELETE("/books/:id", s.handleDeleteBook)

		auth.GET("/books/:id/reviews", s.handleListReviews)
		auth.POST("/books/:id/reviews", s.handleAddReview)
		auth.GET("/books/:id/reviews/mine", s.handleMyReview)
		auth.PUT("/books/:id/reviews/mine", s.handleSaveReview)
		auth.GET("/books/:id/rating", s.handleBookRating)
		auth.GET("/reviews", s.handleAllReviews)
		auth.DELETE("/reviews/:id", s.handleDeleteReview)

		auth.GET("/reviews/:id/comments", s.handleListComments)
		auth.POST("/reviews/:id/comments", s.handleAddComment)
		auth.DELETE("/comments/:id", s.handleDeleteComment)

		auth.GET("/ranking", s.handleRanking)
		auth.GET("/history", s.handleHistory)
	}
}

// requestID tags every request with an id, reusing one sent by the client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDHeader),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		s.logger.Error("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
