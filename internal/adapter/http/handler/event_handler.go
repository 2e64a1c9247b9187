package handler

import (
	wshub "wildlife-governance/internal/adapter/websocket"
	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"
	"wildlife-governance/pkg/response"

	"github.com/gin-gonic/gin"
)

// EventHandler serves the governance event feed.
type EventHandler struct {
	feed ports.EventFeed
	hub  *wshub.Hub // nil = live stream disabled
}

func NewEventHandler(feed ports.EventFeed, hub *wshub.Hub) *EventHandler {
	return &EventHandler{feed: feed, hub: hub}
}

// List handles GET /api/v1/events?after=&limit=.
func (h *EventHandler) List(c *gin.Context) {
	after, err := int64Query(c, "after")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := int64Query(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	var afterSeq int64
	if after != nil {
		afterSeq = *after
	}
	var pageSize int
	if limit != nil {
		pageSize = int(*limit)
	}

	events, err := h.feed.ListEvents(c.Request.Context(), afterSeq, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	next := afterSeq
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	response.OK(c, gin.H{"events": events, "next_after": next})
}

// Stream handles GET /api/v1/events/ws?project_id=&account=.
func (h *EventHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, apperror.Validation("live event stream is disabled"))
		return
	}
	projectID, err := int64Query(c, "project_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	wshub.ServeWS(c.Writer, c.Request, h.hub, wshub.Filter{
		ProjectID: projectID,
		Account:   domain.NormalizeAccount(c.Query("account")),
	})
}
