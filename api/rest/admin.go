package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasogane/guildhall/audit"
	"github.com/kasogane/guildhall/cooldowns"
	"github.com/kasogane/guildhall/guild"
	mw "github.com/kasogane/guildhall/middleware"
	"go.uber.org/zap"
)

// AdminHandler exposes operator commands. It bypasses role checks and
// is guarded by the admin key middleware.
type AdminHandler struct {
	guilds    *guild.Handler
	cooldowns *cooldowns.Handler
	auditor   *audit.Service
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(guilds *guild.Handler, cds *cooldowns.Handler, auditor *audit.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{guilds: guilds, cooldowns: cds, auditor: auditor, logger: logger}
}

func (h *AdminHandler) audit(c *gin.Context, guildID, action string, detail interface{}) {
	if h.auditor == nil {
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID: mw.GetTraceID(c),
		GuildID: guildID,
		Action:  action,
		Detail:  detail,
		IP:      c.ClientIP(),
	})
}

// ListGuilds handles GET /api/admin/guilds.
func (h *AdminHandler) ListGuilds(c *gin.Context) {
	all := h.guilds.Guilds()
	out := make([]gin.H, len(all))
	for i, g := range all {
		master := ""
		if m := g.Master(); m != nil {
			master = m.PlayerID
		}
		out[i] = gin.H{
			"id":      g.ID(),
			"name":    g.Name(),
			"status":  g.Status(),
			"tier":    g.Tier(),
			"balance": g.Balance(),
			"members": g.MemberCount(),
			"master":  master,
		}
	}
	c.JSON(http.StatusOK, gin.H{"guilds": out, "count": len(out)})
}

type adminMOTDRequest struct {
	MOTD string `json:"motd" binding:"max=500"`
}

// UpdateMOTD handles PUT /api/admin/guilds/:id/motd.
func (h *AdminHandler) UpdateMOTD(c *gin.Context) {
	g := h.guilds.GuildByID(c.Param("id"))
	if g == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	var req adminMOTDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.UpdateMOTD(req.MOTD)
	h.audit(c, g.ID(), "admin.motd", gin.H{"motd": req.MOTD})
	c.JSON(http.StatusOK, gin.H{"motd": req.MOTD})
}

// RemoveGuild handles DELETE /api/admin/guilds/:id. Immediate, no
// confirm phase.
func (h *AdminHandler) RemoveGuild(c *gin.Context) {
	g := h.guilds.GuildByID(c.Param("id"))
	if g == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	h.guilds.RemoveGuild(g)
	h.audit(c, g.ID(), "admin.remove", gin.H{"name": g.Name()})
	c.JSON(http.StatusOK, gin.H{"removed": g.ID()})
}

// Save handles POST /api/admin/save. It flushes guilds and cooldowns
// synchronously.
func (h *AdminHandler) Save(c *gin.Context) {
	if err := h.guilds.SaveData(c.Request.Context()); err != nil {
		h.logger.Error("admin save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	if err := h.cooldowns.Save(c.Request.Context()); err != nil {
		h.logger.Error("admin cooldown save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	h.audit(c, "", "admin.save", nil)
	c.JSON(http.StatusOK, gin.H{"message": "saved"})
}

// ClearCooldown handles DELETE /api/admin/cooldowns/:kind/:pid.
func (h *AdminHandler) ClearCooldown(c *gin.Context) {
	kind := c.Param("kind")
	playerID := c.Param("pid")
	h.cooldowns.Clear(kind, playerID)
	h.audit(c, "", "admin.cooldown.clear", gin.H{"kind": kind, "player_id": playerID})
	c.JSON(http.StatusOK, gin.H{"cleared": kind + "/" + playerID})
}

// Status handles GET /api/admin/status.
func (h *AdminHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"guilds":          h.guilds.Count(),
		"cooldowns_swept": h.cooldowns.Sweep(),
	})
}
