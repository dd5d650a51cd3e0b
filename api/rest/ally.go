package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasogane/guildhall/cooldowns"
	"github.com/kasogane/guildhall/guild"
)

type allyRequest struct {
	GuildID string `json:"guild_id" binding:"required"`
}

// RequestAlly handles POST /api/guilds/allies/request. Subject to the
// Request cooldown so guilds cannot be spammed with petitions.
func (h *GuildHandler) RequestAlly(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Ally }) {
		return
	}

	var req allyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target := h.guilds.GuildByID(req.GuildID)
	if target == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	if h.cooldowns.Has(cooldowns.KindRequest, playerID) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "request cooldown active",
			"remaining_s": int(h.cooldowns.Remaining(cooldowns.KindRequest, playerID).Seconds()),
		})
		return
	}
	if err := h.guilds.RequestAlly(g, target); err != nil {
		fail(c, err)
		return
	}
	h.cooldowns.Set(cooldowns.KindRequest, playerID,
		time.Duration(h.cfg.RequestCooldownS)*time.Second)
	h.audit(c, playerID, g.ID(), "guild.ally.request", gin.H{"target": target.ID()}, nil)
	h.publish(c.Request.Context(), target.ID(), "ally_requested", gin.H{"from": g.ID()})
	c.JSON(http.StatusOK, gin.H{"requested": target.ID()})
}

// AcceptAlly handles POST /api/guilds/allies/accept. The caller's guild
// accepts a pending request from the named guild; both sides become
// allies atomically.
func (h *GuildHandler) AcceptAlly(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Ally }) {
		return
	}

	var req allyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requester := h.guilds.GuildByID(req.GuildID)
	if requester == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	if err := h.guilds.AcceptAlly(g, requester); err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.ally.accept", gin.H{"ally": requester.ID()}, nil)
	h.publish(c.Request.Context(), requester.ID(), "ally_accepted", gin.H{"ally": g.ID()})
	c.JSON(http.StatusOK, gin.H{"ally": requester.ID()})
}

// DeclineAlly handles POST /api/guilds/allies/decline.
func (h *GuildHandler) DeclineAlly(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Ally }) {
		return
	}

	var req allyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requester := h.guilds.GuildByID(req.GuildID)
	if requester == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	if err := h.guilds.DeclineAlly(g, requester); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "declined"})
}

// RemoveAlly handles DELETE /api/guilds/allies/:id.
func (h *GuildHandler) RemoveAlly(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Ally }) {
		return
	}

	other := h.guilds.GuildByID(c.Param("id"))
	if other == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	if err := h.guilds.RemoveAlly(g, other); err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.ally.remove", gin.H{"ally": other.ID()}, nil)
	h.publish(c.Request.Context(), other.ID(), "ally_removed", gin.H{"ally": g.ID()})
	c.JSON(http.StatusOK, gin.H{"removed": other.ID()})
}

// Allies handles GET /api/guilds/allies.
func (h *GuildHandler) Allies(c *gin.Context) {
	g, _, ok := h.myGuild(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"allies":  g.Allies(),
		"pending": g.PendingAllies(),
	})
}

type chatRequest struct {
	Message string `json:"message" binding:"required,max=256"`
}

// Chat handles POST /api/guilds/chat. Messages fan out to the guild's
// pub/sub channel; the Chat cooldown throttles individual senders.
func (h *GuildHandler) Chat(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.cooldowns.Has(cooldowns.KindChat, playerID) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "chat cooldown active",
			"remaining_s": int(h.cooldowns.Remaining(cooldowns.KindChat, playerID).Seconds()),
		})
		return
	}
	h.cooldowns.Set(cooldowns.KindChat, playerID,
		time.Duration(h.cfg.ChatCooldownS)*time.Second)
	h.publish(c.Request.Context(), g.ID(), "chat", gin.H{
		"player_id": playerID,
		"message":   req.Message,
	})
	c.JSON(http.StatusOK, gin.H{"message": "sent"})
}
