package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/usecase"
)

var newsErrorCases = []ErrorCase{
	{Err: usecase.ErrNewsInvalid, Status: http.StatusBadRequest, Message: "title and body are required"},
	{Err: usecase.ErrNewsNotFound, Status: http.StatusNotFound, Message: "news item not found"},
}

// NewsHandler exposes article management to authenticated admins.
type NewsHandler struct {
	news   *usecase.NewsService
	logger *zap.Logger
}

// NewNewsHandler constructs NewsHandler.
func NewNewsHandler(news *usecase.NewsService, log *zap.Logger) *NewsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &NewsHandler{news: news, logger: log}
}

// RegisterRoutes binds the news CRUD endpoints onto an authenticated group.
func (h *NewsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/news", h.list)
	r.POST("/news", h.create)
	r.GET("/news/:id", h.get)
	r.PUT("/news/:id", h.update)
	r.PATCH("/news/:id/published", h.setPublished)
	r.DELETE("/news/:id", h.remove)
}

func (h *NewsHandler) list(c *gin.Context) {
	publishedOnly := c.Query("published") == "true"

	items, err := h.news.List(c.Request.Context(), publishedOnly)
	if err != nil {
		h.logger.Error("news listing failed", zap.Error(err))
		RespondWithMappedError(c, err, newsErrorCases, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]NewsResponse, 0, len(items))
	for i := range items {
		out = append(out, toNewsResponse(&items[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *NewsHandler) create(c *gin.Context) {
	var req NewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	item, err := h.news.Create(c.Request.Context(), usecase.NewsInput{
		Title:    req.Title,
		Body:     req.Body,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		RespondWithMappedError(c, err, newsErrorCases, http.StatusInternalServerError, "internal error")
		return
	}

	c.JSON(http.StatusCreated, toNewsResponse(item))
}

func (h *NewsHandler) get(c *gin.Context) {
	item, err := h.news.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, newsErrorCases, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, toNewsResponse(item))
}

func (h *NewsHandler) update(c *gin.Context) {
	var req NewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	item, err := h.news.Update(c.Request.Context(), c.Param("id"), usecase.NewsInput{
		Title:    req.Title,
		Body:     req.Body,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		RespondWithMappedError(c, err, newsErrorCases, http.StatusInternalServerError, "internal error")
		return
	}

	c.JSON(http.StatusOK, toNewsResponse(item))
}

func (h *NewsHandler) setPublished(c *gin.Context) {
	var req struct {
		Published bool `json:"published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.news.SetPublished(c.Request.Context(), c.Param("id"), req.Published); err != nil {
		RespondWithMappedError(c, err, newsErrorCases, http.StatusInternalServerError, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *NewsHandler) remove(c *gin.Context) {
	if err := h.news.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, newsErrorCases, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func toNewsResponse(item *domain.NewsItem) NewsResponse {
	return NewsResponse{
		ID:        item.ID,
		Title:     item.Title,
		Body:      item.Body,
		ImageURL:  item.ImageURL,
		Published: item.Published,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}
