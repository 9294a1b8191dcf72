package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bookshelf/catalog"
)

const dateLayout = "2006-01-02"

type bookRequest struct {
	Title  string         `json:"title"`
	Author string         `json:"author"`
	ISBN   string         `json:"isbn"`
	Genre  string         `json:"genre"`
	Status catalog.Status `json:"status"`
	Reread bool           `json:"reread"`
	Rating *int           `json:"rating"`
}

type bookUpdateRequest struct {
	Title        *string         `json:"title"`
	Author       *string         `json:"author"`
	ISBN         *string         `json:"isbn"`
	Genre        *string         `json:"genre"`
	Status       *catalog.Status `json:"status"`
	FinishedDate *string         `json:"finished_date"`
	Reread       *bool           `json:"reread"`
	Rating       *int            `json:"rating"`
	ClearRating  bool            `json:"clear_rating"`
}

func (r bookUpdateRequest) toUpdate() (catalog.BookUpdate, error) {
	u := catalog.BookUpdate{
		Title:       r.Title,
		Author:      r.Author,
		ISBN:        r.ISBN,
		Genre:       r.Genre,
		Status:      r.Status,
		Reread:      r.Reread,
		Rating:      r.Rating,
		ClearRating: r.ClearRating,
	}
	if r.FinishedDate != nil {
		d, err := time.Parse(dateLayout, *r.FinishedDate)
		if err != nil {
			return u, fmt.Errorf("finished_date must look like %s", dateLayout)
		}
		u.FinishedDate = &d
	}
	return u, nil
}

// idParam parses the :id path parameter, answering 400 when it is malformed.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleListBooks(c *gin.Context) {
	f := catalog.BookFilter{
		AuthorContains: c.Query("author"),
		TitleContains:  c.Query("title"),
		Status:         catalog.Status(c.Query("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status", "field": "status"})
		return
	}

	var (
		books []*catalog.Book
		err   error
	)
	if c.Query("mine") == "true" {
		books, err = shelfFrom(c).MyBooks(c.Request.Context(), f)
	} else {
		books, err = s.db.ListBooks(c.Request.Context(), f)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (s *Server) handleAddBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	id, err := shelfFrom(c).AddBook(ctx, catalog.NewBook{
		Title:  req.Title,
		Author: req.Author,
		ISBN:   req.ISBN,
		Genre:  req.Genre,
		Status: req.Status,
		Reread: req.Reread,
		Rating: req.Rating,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.db.GetBook(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) handleGetBook(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	b, err := s.db.GetBook(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleUpdateBook(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req bookUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := shelfFrom(c).UpdateBook(ctx, id, u); err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.db.GetBook(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleDeleteBook(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := shelfFrom(c).DeleteBook(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRanking(c *gin.Context) {
	ranked, err := s.db.RankByAverageRating(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ranked)
}

func (s *Server) handleHistory(c *gin.Context) {
	entries, err := s.db.History(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
