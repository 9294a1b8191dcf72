package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"bookshelf/catalog"
)

const (
	sessionName = "bookshelf"
	sessionUser = "user_id"
	shelfKey    = "shelf"
)

// NewCookieStore returns the store backing login sessions.
func NewCookieStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(86400)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := s.db.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	u, err := s.db.GetUser(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	u, err := s.db.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	sess, err := s.store.Get(c.Request, sessionName)
	if err != nil && sess == nil {
		s.fail(c, err)
		return
	}
	sess.Values[sessionUser] = u.ID
	if err := sess.Save(c.Request, c.Writer); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("user logged in", "user_id", u.ID)
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleLogout(c *gin.Context) {
	sess, _ := s.store.Get(c.Request, sessionName)
	if sess != nil {
		sess.Options.MaxAge = -1
		if err := sess.Save(c.Request, c.Writer); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// requireLogin resolves the session cookie to a user and stores a Shelf bound
// to that user on the context.
func (s *Server) requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.store.Get(c.Request, sessionName)
		if err != nil || sess == nil {
			unauthorized(c)
			return
		}
		id, ok := sess.Values[sessionUser].(int64)
		if !ok || id == 0 {
			unauthorized(c)
			return
		}

		u, err := s.db.GetUser(c.Request.Context(), id)
		if errors.Is(err, catalog.ErrNotFound) {
			unauthorized(c)
			return
		}
		if err != nil {
			s.fail(c, err)
			c.Abort()
			return
		}

		c.Set(shelfKey, s.db.Shelf(catalog.SessionFor(u)))
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
}

func shelfFrom(c *gin.Context) *catalog.Shelf {
	return c.MustGet(shelfKey).(*catalog.Shelf)
}
