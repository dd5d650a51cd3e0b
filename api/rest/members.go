package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasogane/guildhall/cooldowns"
	"github.com/kasogane/guildhall/events"
	"github.com/kasogane/guildhall/guild"
	mw "github.com/kasogane/guildhall/middleware"
)

type inviteRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

// Invite handles POST /api/guilds/invites.
func (h *GuildHandler) Invite(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Invite }) {
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.guilds.Invite(g, req.PlayerID); err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.invite", gin.H{"target": req.PlayerID}, nil)
	c.JSON(http.StatusOK, gin.H{"invited": req.PlayerID})
}

type inviteReplyRequest struct {
	GuildID string `json:"guild_id" binding:"required"`
}

// AcceptInvite handles POST /api/guilds/invites/accept. Subject to the
// Join cooldown set when a player last left a guild.
func (h *GuildHandler) AcceptInvite(c *gin.Context) {
	playerID := mw.GetPlayerID(c)

	var req inviteReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g := h.guilds.GuildByID(req.GuildID)
	if g == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	if h.cooldowns.Has(cooldowns.KindJoin, playerID) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "join cooldown active",
			"remaining_s": int(h.cooldowns.Remaining(cooldowns.KindJoin, playerID).Seconds()),
		})
		return
	}
	if err := h.dispatch(events.Event{Name: events.GuildJoin, GuildID: g.ID(), PlayerID: playerID}); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err := h.guilds.AcceptInvite(g, playerID); err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.join", nil, nil)
	h.publish(c.Request.Context(), g.ID(), "member_joined", gin.H{"player_id": playerID})
	c.JSON(http.StatusOK, gin.H{"guild_id": g.ID(), "name": g.Name()})
}

// DeclineInvite handles POST /api/guilds/invites/decline.
func (h *GuildHandler) DeclineInvite(c *gin.Context) {
	playerID := mw.GetPlayerID(c)

	var req inviteReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g := h.guilds.GuildByID(req.GuildID)
	if g == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	if err := h.guilds.DeclineInvite(g, playerID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "declined"})
}

// Invites handles GET /api/guilds/invites. It lists the caller's
// guild's outstanding invites.
func (h *GuildHandler) Invites(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Invite }) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"invited": g.Invited()})
}

// Kick handles DELETE /api/guilds/members/:pid. The master cannot be
// kicked; leadership changes only through transfer.
func (h *GuildHandler) Kick(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Kick }) {
		return
	}

	targetID := c.Param("pid")
	if targetID == playerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot kick yourself"})
		return
	}
	if err := h.dispatch(events.Event{Name: events.GuildKick, GuildID: g.ID(), PlayerID: targetID}); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err := h.guilds.Kick(g, targetID); err != nil {
		fail(c, err)
		return
	}
	h.cooldowns.Set(cooldowns.KindJoin, targetID, h.joinCooldown())
	h.audit(c, playerID, g.ID(), "guild.kick", gin.H{"target": targetID}, nil)
	h.publish(c.Request.Context(), g.ID(), "member_kicked", gin.H{"player_id": targetID})
	c.JSON(http.StatusOK, gin.H{"kicked": targetID})
}

// Promote handles POST /api/guilds/members/:pid/promote.
func (h *GuildHandler) Promote(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Promote }) {
		return
	}

	targetID := c.Param("pid")
	if err := h.guilds.Promote(g, targetID); err != nil {
		fail(c, err)
		return
	}
	m := g.GetMember(targetID)
	h.audit(c, playerID, g.ID(), "guild.promote", gin.H{"target": targetID, "level": m.Level}, nil)
	c.JSON(http.StatusOK, gin.H{"player_id": targetID, "level": m.Level})
}

// Demote handles POST /api/guilds/members/:pid/demote.
func (h *GuildHandler) Demote(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Demote }) {
		return
	}

	targetID := c.Param("pid")
	if err := h.guilds.Demote(g, targetID); err != nil {
		fail(c, err)
		return
	}
	m := g.GetMember(targetID)
	h.audit(c, playerID, g.ID(), "guild.demote", gin.H{"target": targetID, "level": m.Level}, nil)
	c.JSON(http.StatusOK, gin.H{"player_id": targetID, "level": m.Level})
}
