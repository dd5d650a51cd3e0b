package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kasogane/guildhall/guild"
)

var errStatus = map[error]int{
	guild.ErrNameTaken:           http.StatusConflict,
	guild.ErrAlreadyInGuild:      http.StatusConflict,
	guild.ErrCodeExists:          http.StatusConflict,
	guild.ErrGuildNotFound:       http.StatusNotFound,
	guild.ErrMemberNotFound:      http.StatusNotFound,
	guild.ErrCodeNotFound:        http.StatusNotFound,
	guild.ErrNoVault:             http.StatusNotFound,
	guild.ErrNoPermission:        http.StatusForbidden,
	guild.ErrMasterOnly:          http.StatusForbidden,
	guild.ErrKickMaster:          http.StatusForbidden,
	guild.ErrNotInvited:          http.StatusForbidden,
	guild.ErrNotInGuild:          http.StatusBadRequest,
	guild.ErrGuildFull:           http.StatusBadRequest,
	guild.ErrMaxTier:             http.StatusBadRequest,
	guild.ErrNotEnoughMembers:    http.StatusBadRequest,
	guild.ErrInsufficientFunds:   http.StatusBadRequest,
	guild.ErrMaxCodes:            http.StatusBadRequest,
	guild.ErrCodeExhausted:       http.StatusBadRequest,
	guild.ErrCodeAlreadyRedeemed: http.StatusBadRequest,
	guild.ErrNoPendingAlly:       http.StatusBadRequest,
	guild.ErrNotAllied:           http.StatusBadRequest,
	guild.ErrAllySelf:            http.StatusBadRequest,
	guild.ErrRoleOutOfRange:      http.StatusBadRequest,
	guild.ErrTransferTarget:      http.StatusBadRequest,
}

// fail maps a domain error to its HTTP status and writes the JSON body.
func fail(c *gin.Context, err error) {
	for sentinel, status := range errStatus {
		if errors.Is(err, sentinel) {
			c.JSON(status, gin.H{"error": sentinel.Error()})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
