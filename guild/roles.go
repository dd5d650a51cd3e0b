package guild

// Role levels. Lower level means higher authority.
const (
	RoleMaster  = 0
	RoleOfficer = 1
	RoleVeteran = 2
	RoleMember  = 3
)

// Role is one level of the guild hierarchy with its capability flags.
// The table is process-wide static configuration; per-guild role
// customization is deliberately not supported.
type Role struct {
	Level int
	Name  string

	ChangeHome   bool
	ChangeName   bool
	ChangePrefix bool
	ChangeStatus bool
	ChangeMOTD   bool
	Invite       bool
	Kick         bool
	Promote      bool
	Demote       bool
	Transfer     bool
	Upgrade      bool
	RemoveGuild  bool
	OpenVault    bool
	Deposit      bool
	Withdraw     bool
	CreateCode   bool
	Ally         bool
}

// RoleTable is an ordered role hierarchy indexed by level.
type RoleTable struct {
	roles []Role
}

// DefaultRoles returns the built-in four-level hierarchy.
func DefaultRoles() *RoleTable {
	return &RoleTable{roles: []Role{
		{
			Level: RoleMaster, Name: "Guild Master",
			ChangeHome: true, ChangeName: true, ChangePrefix: true,
			ChangeStatus: true, ChangeMOTD: true,
			Invite: true, Kick: true, Promote: true, Demote: true,
			Transfer: true, Upgrade: true, RemoveGuild: true,
			OpenVault: true, Deposit: true, Withdraw: true,
			CreateCode: true, Ally: true,
		},
		{
			Level: RoleOfficer, Name: "Officer",
			ChangeHome: true, ChangeMOTD: true,
			Invite: true, Kick: true, Promote: true, Demote: true,
			OpenVault: true, Deposit: true, Withdraw: true,
			CreateCode: true, Ally: true,
		},
		{
			Level: RoleVeteran, Name: "Veteran",
			Invite: true, OpenVault: true, Deposit: true,
		},
		{
			Level: RoleMember, Name: "Member",
			Deposit: true,
		},
	}}
}

// RoleByLevel returns the role at the given level.
// ok is false for negative or out-of-range levels.
func (t *RoleTable) RoleByLevel(level int) (Role, bool) {
	if level < 0 || level >= len(t.roles) {
		return Role{}, false
	}
	return t.roles[level], true
}

// LowestLevel returns the level new members join at.
func (t *RoleTable) LowestLevel() int {
	return len(t.roles) - 1
}

// Len returns the number of levels in the hierarchy.
func (t *RoleTable) Len() int {
	return len(t.roles)
}
