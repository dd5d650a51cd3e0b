package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasogane/guildhall/cooldowns"
	"github.com/kasogane/guildhall/events"
	"github.com/kasogane/guildhall/guild"
	mw "github.com/kasogane/guildhall/middleware"
)

// ---- bank ----

// Bank handles GET /api/guilds/bank.
func (h *GuildHandler) Bank(c *gin.Context) {
	g, _, ok := h.myGuild(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": g.Balance()})
}

type amountRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Deposit handles POST /api/guilds/bank/deposit.
func (h *GuildHandler) Deposit(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Deposit }) {
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.Deposit(req.Amount)
	h.audit(c, playerID, g.ID(), "guild.bank.deposit", gin.H{"amount": req.Amount}, nil)
	c.JSON(http.StatusOK, gin.H{"balance": g.Balance()})
}

// Withdraw handles POST /api/guilds/bank/withdraw.
func (h *GuildHandler) Withdraw(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.Withdraw }) {
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := g.TryWithdraw(req.Amount); err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.bank.withdraw", gin.H{"amount": req.Amount}, nil)
	c.JSON(http.StatusOK, gin.H{"balance": g.Balance()})
}

// ---- vaults ----

// Vault handles GET /api/guilds/vaults/:idx.
func (h *GuildHandler) Vault(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.OpenVault }) {
		return
	}

	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault index"})
		return
	}
	data, err := g.Vault(idx)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vault": idx, "data": data})
}

type vaultRequest struct {
	Data string `json:"data"`
}

// PutVault handles PUT /api/guilds/vaults/:idx. The index must fall
// within the tier-unlocked vault range.
func (h *GuildHandler) PutVault(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.OpenVault }) {
		return
	}

	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault index"})
		return
	}
	var req vaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := g.SetVault(idx, req.Data, h.guilds.MaxVaults(g)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vault": idx})
}

// ---- codes ----

type createCodeRequest struct {
	Uses int `json:"uses" binding:"required,gt=0,lte=100"`
}

// CreateCode handles POST /api/guilds/codes. Codes are generated
// server-side and checked for collisions across all guilds.
func (h *GuildHandler) CreateCode(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.CreateCode }) {
		return
	}

	var req createCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var code string
	for attempt := 0; ; attempt++ {
		code = newCode(h.cfg.CodeLength)
		if h.guilds.GuildByCode(code) == nil {
			break
		}
		if attempt >= 5 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "code generation failed"})
			return
		}
	}
	if err := g.AddCode(code, req.Uses, playerID, h.cfg.MaxActiveCodes); err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.code.create", gin.H{"code": code, "uses": req.Uses}, nil)
	c.JSON(http.StatusCreated, gin.H{"code": code, "uses": req.Uses})
}

// Codes handles GET /api/guilds/codes.
func (h *GuildHandler) Codes(c *gin.Context) {
	g, playerID, ok := h.myGuild(c)
	if !ok {
		return
	}
	if !h.allow(c, g, playerID, func(r guild.Role) bool { return r.CreateCode }) {
		return
	}

	codes := g.Codes()
	out := make([]gin.H, len(codes))
	for i, code := range codes {
		out[i] = gin.H{
			"code":      code.ID,
			"uses":      code.Uses,
			"creator":   code.Creator,
			"redeemers": code.Redeemers,
		}
	}
	c.JSON(http.StatusOK, gin.H{"codes": out})
}

type redeemRequest struct {
	Code string `json:"code" binding:"required"`
}

// Redeem handles POST /api/guilds/codes/redeem. A valid code admits the
// player even when the owning guild is private.
func (h *GuildHandler) Redeem(c *gin.Context) {
	playerID := mw.GetPlayerID(c)

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.cooldowns.Has(cooldowns.KindJoin, playerID) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "join cooldown active",
			"remaining_s": int(h.cooldowns.Remaining(cooldowns.KindJoin, playerID).Seconds()),
		})
		return
	}
	if owner := h.guilds.GuildByCode(req.Code); owner != nil {
		if err := h.dispatch(events.Event{Name: events.GuildJoin, GuildID: owner.ID(), PlayerID: playerID}); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
	}
	g, err := h.guilds.JoinByCode(playerID, req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	h.audit(c, playerID, g.ID(), "guild.code.redeem", gin.H{"code": req.Code}, nil)
	h.publish(c.Request.Context(), g.ID(), "member_joined", gin.H{"player_id": playerID})
	c.JSON(http.StatusOK, gin.H{"guild_id": g.ID(), "name": g.Name()})
}

// joinCooldown is the duration applied after leaving or being kicked.
func (h *GuildHandler) joinCooldown() time.Duration {
	return time.Duration(h.cfg.JoinCooldownS) * time.Second
}
