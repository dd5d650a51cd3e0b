package guild

import "errors"

// Validation and capacity failures reported to the acting player.
var (
	ErrNameTaken         = errors.New("guild name already taken")
	ErrAlreadyInGuild    = errors.New("player already belongs to a guild")
	ErrNotInGuild        = errors.New("player does not belong to a guild")
	ErrGuildFull         = errors.New("guild is at its member cap")
	ErrNotInvited        = errors.New("player is not invited to this guild")
	ErrNoPermission      = errors.New("role does not permit this action")
	ErrMasterOnly        = errors.New("only the guild master may do this")
	ErrKickMaster        = errors.New("the guild master cannot be kicked")
	ErrMaxTier           = errors.New("guild is already at the maximum tier")
	ErrInsufficientFunds = errors.New("guild balance is too low")
	ErrNotEnoughMembers  = errors.New("guild does not have enough members to upgrade")
)

// Lookup failures. Lookups by name/player return nil rather than an error;
// these are returned by mutating operations whose target vanished.
var (
	ErrGuildNotFound  = errors.New("guild not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrCodeNotFound   = errors.New("code not found")
	ErrNoVault        = errors.New("no vault at that index")
)

// Code redemption and state-conflict failures.
var (
	ErrMaxCodes            = errors.New("guild has too many active codes")
	ErrCodeExists          = errors.New("code id already exists in this guild")
	ErrCodeExhausted       = errors.New("code has no uses left")
	ErrCodeAlreadyRedeemed = errors.New("player already redeemed this code")
	ErrNoPendingAlly       = errors.New("no pending ally request from that guild")
	ErrNotAllied           = errors.New("guilds are not allied")
	ErrAllySelf            = errors.New("a guild cannot ally itself")
	ErrRoleOutOfRange      = errors.New("role level out of range")
	ErrTransferTarget      = errors.New("leadership can only be transferred to the adjacent role")
)
