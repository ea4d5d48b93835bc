package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"anonbot/internal/usecases"
)

// Server is the operator API: inspect the moderation queue and re-trigger
// failed group publications.
type Server struct {
	moderation *usecases.ModerationService
	threads    *usecases.ThreadResolver
	auth       *usecases.OperatorAuth
}

func NewServer(moderation *usecases.ModerationService, threads *usecases.ThreadResolver, auth *usecases.OperatorAuth) *Server {
	return &Server{moderation: moderation, threads: threads, auth: auth}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), SecurityHeaders(), RateLimit(rate.Limit(10), 20))

	r.GET("/api/health", s.health)
	r.POST("/api/login", s.login)

	authorized := r.Group("/api", AuthRequired(s.auth))
	authorized.GET("/messages/pending", s.listPending)
	authorized.GET("/messages/unpublished", s.listUnpublished)
	authorized.GET("/messages/:id/thread", s.thread)
	authorized.POST("/messages/:id/publish", s.publish)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) listPending(c *gin.Context) {
	messages, err := s.moderation.Pending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pending messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

func (s *Server) listUnpublished(c *gin.Context) {
	messages, err := s.moderation.Unpublished(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list unpublished messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// thread returns the whole reply tree the message belongs to, root first.
func (s *Server) thread(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	messages, err := s.threads.Thread(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve thread"})
		return
	}
	if len(messages) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// publish re-triggers group publication of an approved message whose
// earlier publish attempt failed.
func (s *Server) publish(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	switch err := s.moderation.Republish(c.Request.Context(), id); {
	case errors.Is(err, usecases.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, usecases.ErrNotRepublishable):
		c.JSON(http.StatusConflict, gin.H{"error": "message is not an unpublished approved group message"})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": "publish failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "published"})
	}
}
