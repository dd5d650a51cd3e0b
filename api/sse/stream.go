// Package sse streams guild events (chat, membership changes, MOTD
// updates) to connected members over Server-Sent Events.
package sse

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasogane/guildhall/api/rest"
	"github.com/kasogane/guildhall/cache"
	"github.com/kasogane/guildhall/guild"
	mw "github.com/kasogane/guildhall/middleware"
	"go.uber.org/zap"
)

// Handler serves the per-guild event stream.
type Handler struct {
	guilds *guild.Handler
	pubsub cache.PubSub
	logger *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(guilds *guild.Handler, pubsub cache.PubSub, logger *zap.Logger) *Handler {
	return &Handler{guilds: guilds, pubsub: pubsub, logger: logger}
}

// Stream handles GET /api/guilds/events. The connection stays open
// until the client disconnects or the guild's channel closes.
func (h *Handler) Stream(c *gin.Context) {
	playerID := mw.GetPlayerID(c)
	g := h.guilds.GuildByPlayer(playerID)
	if g == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not in a guild"})
		return
	}

	ch, cancel, err := h.pubsub.Subscribe(c.Request.Context(), rest.GuildChannel(g.ID()))
	if err != nil {
		h.logger.Error("sse subscribe failed",
			zap.String("guild_id", g.ID()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", msg.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
