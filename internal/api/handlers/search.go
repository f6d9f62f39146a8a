package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Ayash-Bera/calypso/backend/internal/models"
	"github.com/Ayash-Bera/calypso/backend/internal/services"
	"github.com/Ayash-Bera/calypso/backend/internal/stream"
	"github.com/Ayash-Bera/calypso/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxQueryLength = 2000

type SearchHandler struct {
	service *services.SearchService
	broker  *stream.Broker
	logger  *logrus.Logger
}

func NewSearchHandler(service *services.SearchService, broker *stream.Broker, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		broker:  broker,
		logger:  logger,
	}
}

// HandleSearch processes non-streaming search requests.
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid search request")
		utils.RespondError(c, http.StatusBadRequest, req.Action, "Invalid request format", nil)
		return
	}

	if len(req.Query) > maxQueryLength {
		utils.RespondError(c, http.StatusBadRequest, req.Action, "Query too long (max 2000 characters)", nil)
		return
	}

	action, err := services.ParseAction(req.Action)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, req.Action, err.Error(), nil)
		return
	}

	clientID := h.clientID(c, req.ClientID)

	h.logger.WithFields(logrus.Fields{
		"query":     req.Query,
		"action":    action,
		"client_id": clientID,
	}).Info("Processing search request")

	out, err := h.service.Execute(c.Request.Context(), services.Request{
		Query:    req.Query,
		Action:   action,
		ClientID: clientID,
		Limit:    req.Limit,
	})
	if err != nil {
		h.respondServiceError(c, string(action), err)
		return
	}

	utils.Respond(c, http.StatusOK, string(action), out)
}

// HandleStreamSearch opens a streaming search session and pushes its
// chunks to the client as server-sent events.
func (h *SearchHandler) HandleStreamSearch(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		utils.RespondError(c, http.StatusBadRequest, "stream_search", "Query parameter 'query' is required", nil)
		return
	}
	if len(query) > maxQueryLength {
		utils.RespondError(c, http.StatusBadRequest, "stream_search", "Query too long (max 2000 characters)", nil)
		return
	}

	clientID := h.clientID(c, c.Query("clientId"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	streamID, err := h.service.StreamSearch(c.Request.Context(), clientID, query, limit)
	if err != nil {
		h.respondServiceError(c, "stream_search", err)
		return
	}

	ch, cancel, err := h.broker.Subscribe(streamID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "stream_search", "Stream unavailable", nil)
		return
	}
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(chunk.Type), chunk.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})

	// No-op unless the client went away before the stream finished.
	h.broker.Close(streamID, stream.ReasonClientDisconnect)
}

func (h *SearchHandler) respondServiceError(c *gin.Context, action string, err error) {
	var rle *services.RateLimitError
	switch {
	case errors.As(err, &rle):
		utils.RespondError(c, http.StatusTooManyRequests, action, "Rate limit exceeded", models.SearchPayload{
			Source:    models.SourceError,
			Results:   []models.Result{},
			RateLimit: models.RateLimitInfo(rle.Decision),
		})
	case errors.Is(err, services.ErrInvalidInput):
		utils.RespondError(c, http.StatusBadRequest, action, err.Error(), nil)
	default:
		h.logger.WithError(err).Error("Search failed")
		utils.RespondError(c, http.StatusInternalServerError, action, "Search failed", nil)
	}
}

// clientID prefers the explicit id, then the header, then an IP+UA
// fingerprint.
func (h *SearchHandler) clientID(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if id := c.GetHeader("X-Client-ID"); id != "" {
		return id
	}
	return utils.DeriveClientID(c.ClientIP() + c.GetHeader("User-Agent"))
}
