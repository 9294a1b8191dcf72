package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type reviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"review_text"`
}

type commentRequest struct {
	Text string `json:"comment_text"`
}

func (s *Server) handleListReviews(c *gin.Context) {
	bookID, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.db.GetBook(ctx, bookID); err != nil {
		s.fail(c, err)
		return
	}
	reviews, err := s.db.ListReviews(ctx, bookID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (s *Server) handleAllReviews(c *gin.Context) {
	reviews, err := s.db.ListAllReviews(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (s *Server) handleAddReview(c *gin.Context) {
	bookID, ok := idParam(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	id, err := shelfFrom(c).AddReview(ctx, bookID, req.Rating, req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := s.db.GetReview(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) handleMyReview(c *gin.Context) {
	bookID, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.db.GetBook(ctx, bookID); err != nil {
		s.fail(c, err)
		return
	}
	r, err := shelfFrom(c).MyReview(ctx, bookID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// handleSaveReview creates or replaces the caller's review of a book.
func (s *Server) handleSaveReview(c *gin.Context) {
	bookID, ok := idParam(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	id, created, err := shelfFrom(c).SaveReview(ctx, bookID, req.Rating, req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := s.db.GetReview(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, r)
}

func (s *Server) handleBookRating(c *gin.Context) {
	bookID, ok := idParam(c)
	if !ok {
		return
	}
	sum, err := s.db.BookRating(c.Request.Context(), bookID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleDeleteReview(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := shelfFrom(c).DeleteReview(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListComments(c *gin.Context) {
	reviewID, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.db.GetReview(ctx, reviewID); err != nil {
		s.fail(c, err)
		return
	}
	comments, err := s.db.ListComments(ctx, reviewID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (s *Server) handleAddComment(c *gin.Context) {
	reviewID, ok := idParam(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	id, err := shelfFrom(c).AddComment(ctx, reviewID, req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	cm, err := s.db.GetComment(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cm)
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := shelfFrom(c).DeleteComment(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
