package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasogane/guildhall/actions"
	"github.com/kasogane/guildhall/audit"
	"github.com/kasogane/guildhall/cache"
	"github.com/kasogane/guildhall/config"
	"github.com/kasogane/guildhall/cooldowns"
	"github.com/kasogane/guildhall/events"
	"github.com/kasogane/guildhall/guild"
	mw "github.com/kasogane/guildhall/middleware"
	"go.uber.org/zap"
)

// GuildHandler exposes the guild commands over REST. Destructive or
// costly commands (create, delete, leave, upgrade) register a pending
// action and take effect only on an explicit confirm.
type GuildHandler struct {
	guilds    *guild.Handler
	actions   *actions.Handler
	cooldowns *cooldowns.Handler
	center    *events.Center
	pubsub    cache.PubSub
	auditor   *audit.Service
	cfg       config.GuildConfig
	logger    *zap.Logger
}

// NewGuildHandler creates a new GuildHandler.
func NewGuildHandler(
	guilds *guild.Handler,
	acts *actions.Handler,
	cds *cooldowns.Handler,
	center *events.Center,
	pubsub cache.PubSub,
	auditor *audit.Service,
	cfg config.GuildConfig,
	logger *zap.Logger,
) *GuildHandler {
	return &GuildHandler{
		guilds:    guilds,
		actions:   acts,
		cooldowns: cds,
		center:    center,
		pubsub:    pubsub,
		auditor:   auditor,
		cfg:       cfg,
		logger:    logger,
	}
}

// ---- helpers ----

// myGuild resolves the caller's player id and guild. It writes the
// error response itself when the caller has no guild.
func (h *GuildHandler) myGuild(c *gin.Context) (*guild.Guild, string, bool) {
	playerID := mw.GetPlayerID(c)
	g := h.guilds.GuildByPlayer(playerID)
	if g == nil {
		fail(c, guild.ErrNotInGuild)
		return nil, playerID, false
	}
	return g, playerID, true
}

// allow checks the caller's role capability within the guild.
func (h *GuildHandler) allow(c *gin.Context, g *guild.Guild, playerID string, capable func(guild.Role) bool) bool {
	role, err := h.guilds.RoleOf(g, playerID)
	if err != nil {
		fail(c, err)
		return false
	}
	if !capable(role) {
		fail(c, guild.ErrNoPermission)
		return false
	}
	return true
}

// audit records an entry from within a live request. Pending-action
// closures outlive the request, so they use auditEntry with values
// captured at registration time instead of the pooled gin context.
func (h *GuildHandler) audit(c *gin.Context, playerID, guildID, action string, detail interface{}, err error) {
	h.auditEntry(mw.GetTraceID(c), c.ClientIP(), playerID, guildID, action, detail, err)
}

func (h *GuildHandler) auditEntry(traceID, ip, playerID, guildID, action string, detail interface{}, err error) {
	if h.auditor == nil {
		return
	}
	entry := audit.Entry{
		TraceID:  traceID,
		PlayerID: playerID,
		GuildID:  guildID,
		Action:   action,
		Detail:   detail,
		IP:       ip,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	h.auditor.Log(entry)
}

// dispatch runs a transition's listeners before the transition is
// applied. ErrCancelled is returned so the caller can abort; any other
// listener error is logged and does not block the transition.
func (h *GuildHandler) dispatch(ev events.Event) error {
	if h.center == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.center.Dispatch(ctx, ev); err != nil {
		if errors.Is(err, events.ErrCancelled) {
			return err
		}
		h.logger.Warn("event listener error",
			zap.String("event", ev.Name), zap.Error(err))
	}
	return nil
}

// publish broadcasts a guild-scoped message on the pub/sub fabric.
func (h *GuildHandler) publish(ctx context.Context, guildID, kind string, body gin.H) {
	if h.pubsub == nil {
		return
	}
	body["type"] = kind
	body["guild_id"] = guildID
	body["at"] = time.Now().Unix()
	payload, _ := json.Marshal(body)
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.pubsub.Publish(pubCtx, GuildChannel(guildID), string(payload)); err != nil {
		h.logger.Warn("guild publish failed", zap.Error(err))
	}
}

// GuildChannel returns the pub/sub channel name for a guild.
func GuildChannel(guildID string) string {
	return "guild:" + guildID
}

// newCode derives a random alphanumeric invite code.
func newCode(length int) string {
	if length <= 0 {
		length = 8
	}
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	for len(raw) < length {
		raw += strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return raw[:length]
}

// guildView serializes a guild for API responses.
func (h *GuildHandler) guildView(g *guild.Guild) gin.H {
	members := g.Members()
	memberViews := make([]gin.H, len(members))
	for i, m := range members {
		role, _ := h.guilds.Roles().RoleByLevel(m.Level)
		memberViews[i] = gin.H{
			"player_id": m.PlayerID,
			"level":     m.Level,
			"role":      role.Name,
			"joined_at": m.JoinedAt.Unix(),
		}
	}
	motd, _ := g.MOTD()
	home, _ := g.Home()
	return gin.H{
		"id":          g.ID(),
		"name":        g.Name(),
		"prefix":      g.Prefix(),
		"status":      g.Status(),
		"motd":        motd,
		"home":        home,
		"tier":        g.Tier(),
		"balance":     g.Balance(),
		"members":     memberViews,
		"max_members": h.guilds.MaxMembers(g),
		"allies":      g.Allies(),
		"created_at":  g.CreatedAt().Unix(),
	}
}

// ---- lifecycle ----

type createGuildRequest struct {
	Name string `json:"name" binding:"required,min=2,max=32"`
}

// Create handles POST /api/guilds. The guild is not created until the
// player confirms the pending action.
func (h *GuildHandler) Create(c *gin.Context) {
	playerID := mw.GetPlayerID(c)

	var req createGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Pre-validate so the player learns about conflicts before
	// confirming. CreateGuild re-checks under its own lock.
	if h.guilds.GuildByPlayer(playerID) != nil {
		fail(c, guild.ErrAlreadyInGuild)
		return
	}
	if h.guilds.GuildByName(req.Name) != nil {
		fail(c, guild.ErrNameTaken)
		return
	}

	name := req.Name
	traceID, ip := mw.GetTraceID(c), c.ClientIP()
	h.actions.Add(playerID, &actions.ConfirmAction{
		OnConfirm: func() {
			if err := h.dispatch(events.Event{Name: events.GuildCreate, PlayerID: playerID, Detail: name}); err != nil {
				h.auditEntry(traceID, ip, playerID, "", "guild.create", gin.H{"name": name}, err)
				return
			}
			_, err := h.guilds.CreateGuild(name, playerID)
			h.auditEntry(traceID, ip, playerID, "", "guild.create", gin.H{"name": name}, err)
			if err != nil {
				h.logger.Warn("guild create on confirm failed",
					zap.String("player_id", playerID), zap.Error(err))
			}
		},
		OnDecline: func() {
			h.logger.Debug("guild create declined", zap.String("player_id", playerID))
		},
	})

	c.JSON(http.StatusAccepted, gin.H{"pending": "create", "name": name})
}

// Confirm handles POST /api/guilds/confirm.
func (h *GuildHandler) Confirm(c *gin.Context) {
	playerID := mw.GetPlayerID(c)
	if !h.actions.Confirm(playerID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending action"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "confirmed"})
}

// Cancel handles POST /api/guilds/cancel.
func (h *GuildHandler) Cancel(c *gin.Context) {
	playerID := mw.GetPlayerID(c)
	if !h.actions.Decline(playerID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending action"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancelled"})
}

// List handles GET /api/guilds.
func (h *GuildHandler) List(c *gin.Context) {
	all := h.guilds.Guilds()
	out := make([]gin.H, len(all))
	for i, g := range all {
		out[i] = gin.H{
			"id":          g.ID(),
			"name":        g.Name(),
			"prefix":      g.Prefix(),
			"status":      g.Status(),
			"tier":        g.Tier(),
			"members":     g.MemberCount(),
			"max_members": h.guilds.MaxMembers(g),
		}
	}
	c.JSON(http.StatusOK, gin.H{"guilds": out, "count": len(out)})
}

// Mine handles GET /api/guilds/me.
func (h *GuildHandler) Mine(c *gin.Context) {
	g, _, ok := h.myGuild(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.guildView(g))
}

// Detail handles GET /api/guilds/:id.
func (h *GuildHandler) Detail(c *gin.Context) {
	g := h.guilds.GuildByID(c.Param("id"))
	if g == nil {
		fail(c, guild.ErrGuildNotFound)
		return
	}
	c.JSON(http.StatusOK, h.guildView(g))
}

// Delete handles POST /api/guilds/delete. Master only, two-phase.
func (h *GuildHandler) Delete(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.RemoveGuild }) {
		return
	}

	traceID, ip := mw.GetTraceID(c), c.ClientIP()
	h.actions.Add(playerID, &actions.ConfirmAction{
		OnConfirm: func() {
			if err := h.dispatch(events.Event{Name: events.GuildRemove, GuildID: g.ID(), PlayerID: playerID}); err != nil {
				h.auditEntry(traceID, ip, playerID, g.ID(), "guild.delete", nil, err)
				return
			}
			h.guilds.RemoveGuild(g)
			h.auditEntry(traceID, ip, playerID, g.ID(), "guild.delete", nil, nil)
			h.publish(context.Background(), g.ID(), "removed", gin.H{})
		},
	})
	c.JSON(http.StatusAccepted, gin.H{"pending": "delete", "guild_id": g.ID()})
}

// Leave handles POST /api/guilds/leave. Two-phase; a leaving master
// deletes the guild.
func (h *GuildHandler) Leave(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}

	traceID, ip := mw.GetTraceID(c), c.ClientIP()
	h.actions.Add(playerID, &actions.ConfirmAction{
		OnConfirm: func() {
			// A leaving master deletes the guild, so the vetoable
			// event differs by role.
			evName := events.GuildLeave
			if m := g.GetMember(playerID); m != nil && m.Level == guild.RoleMaster {
				evName = events.GuildRemove
			}
			if err := h.dispatch(events.Event{Name: evName, GuildID: g.ID(), PlayerID: playerID}); err != nil {
				h.auditEntry(traceID, ip, playerID, g.ID(), "guild.leave", nil, err)
				return
			}
			removed, err := h.guilds.Leave(g, playerID)
			h.auditEntry(traceID, ip, playerID, g.ID(), "guild.leave", gin.H{"removed_guild": removed}, err)
			if err != nil {
				h.logger.Warn("guild leave on confirm failed",
					zap.String("player_id", playerID), zap.Error(err))
				return
			}
			h.cooldowns.Set(cooldowns.KindJoin, playerID, h.joinCooldown())
			if !removed {
				h.publish(context.Background(), g.ID(), "member_left", gin.H{"player_id": playerID})
			}
		},
	})
	c.JSON(http.StatusAccepted, gin.H{"pending": "leave", "guild_id": g.ID()})
}

// ---- settings ----

type renameRequest struct {
	Name string `json:"name" binding:"required,min=2,max=32"`
}

// Rename handles PUT /api/guilds/name.
func (h *GuildHandler) Rename(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.ChangeName }) {
		return
	}

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.guilds.Rename(g, req.Name); err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.rename", gin.H{"name": req.Name}, nil)
	c.JSON(http.StatusOK, gin.H{"name": g.Name()})
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=Public Private"`
}

// UpdateStatus handles PUT /api/guilds/status.
func (h *GuildHandler) UpdateStatus(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.ChangeStatus }) {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.UpdateStatus(guild.Status(req.Status))
	c.JSON(http.StatusOK, gin.H{"status": g.Status()})
}

type prefixRequest struct {
	Prefix string `json:"prefix" binding:"max=16"`
}

// UpdatePrefix handles PUT /api/guilds/prefix.
func (h *GuildHandler) UpdatePrefix(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.ChangePrefix }) {
		return
	}

	var req prefixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.UpdatePrefix(req.Prefix)
	c.JSON(http.StatusOK, gin.H{"prefix": g.Prefix()})
}

type motdRequest struct {
	MOTD string `json:"motd" binding:"max=500"`
}

// UpdateMOTD handles PUT /api/guilds/motd.
func (h *GuildHandler) UpdateMOTD(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.ChangeMOTD }) {
		return
	}

	var req motdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.UpdateMOTD(req.MOTD)
	h.publish(c.Request.Context(), g.ID(), "motd", gin.H{"motd": req.MOTD})
	c.JSON(http.StatusOK, gin.H{"motd": req.MOTD})
}

// MOTD handles GET /api/guilds/motd.
func (h *GuildHandler) MOTD(c *gin.Context) {
	g, _, ok := h.myGuild(c)
	if !ok {
		return
	}
	motd, set := g.MOTD()
	c.JSON(http.StatusOK, gin.H{"motd": motd, "set": set})
}

type homeRequest struct {
	Home string `json:"home" binding:"required,max=128"`
}

// SetHome handles PUT /api/guilds/home.
func (h *GuildHandler) SetHome(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.ChangeHome }) {
		return
	}

	var req homeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.dispatch(events.Event{Name: events.GuildHomeSet, GuildID: g.ID(), PlayerID: playerID, Detail: req.Home}); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	g.UpdateHome(req.Home)
	c.JSON(http.StatusOK, gin.H{"home": req.Home})
}

// VisitHome handles POST /api/guilds/home/visit. Subject to the Home
// cooldown per player.
func (h *GuildHandler) VisitHome(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	home, set := g.Home()
	if !set {
		c.JSON(http.StatusNotFound, gin.H{"error": "no home set"})
		return
	}
	if h.cooldowns.Has(cooldowns.KindHome, playerID) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "home cooldown active",
			"remaining_s": int(h.cooldowns.Remaining(cooldowns.KindHome, playerID).Seconds()),
		})
		return
	}
	h.cooldowns.Set(cooldowns.KindHome, playerID,
		time.Duration(h.cfg.HomeCooldownS)*time.Second)
	c.JSON(http.StatusOK, gin.H{"home": home})
}

// Upgrade handles POST /api/guilds/upgrade. Two-phase: the cost is
// shown first and withdrawn only on confirm.
func (h *GuildHandler) Upgrade(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Upgrade }) {
		return
	}
	if g.Tier() >= h.cfg.MaxTier {
		fail(c, guild.ErrMaxTier)
		return
	}
	cost := h.guilds.TierCost(g)

	traceID, ip := mw.GetTraceID(c), c.ClientIP()
	h.actions.Add(playerID, &actions.ConfirmAction{
		OnConfirm: func() {
			err := h.guilds.Upgrade(g)
			h.auditEntry(traceID, ip, playerID, g.ID(), "guild.upgrade", gin.H{"cost": cost}, err)
			if err != nil {
				h.logger.Warn("guild upgrade on confirm failed",
					zap.String("guild_id", g.ID()), zap.Error(err))
				return
			}
			h.publish(context.Background(), g.ID(), "upgraded", gin.H{"tier": g.Tier()})
		},
	})
	c.JSON(http.StatusAccepted, gin.H{"pending": "upgrade", "cost": cost, "next_tier": g.Tier() + 1})
}

type transferRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

// Transfer handles POST /api/guilds/transfer. Master only; the target
// must hold the level directly below the master.
func (h *GuildHandler) Transfer(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Transfer }) {
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.guilds.Transfer(g, playerID, req.PlayerID); err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.transfer", gin.H{"new_master": req.PlayerID}, nil)
	h.publish(c.Request.Context(), g.ID(), "transferred", gin.H{"new_master": req.PlayerID})
	c.JSON(http.StatusOK, gin.H{"master": req.PlayerID})
}
