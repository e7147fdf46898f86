package model

// Role represents a key's access level. The set is closed and totally
// ordered: user < admin < superadmin.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// Valid checks if the role is a known value.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Outranks reports whether r is strictly above other in the hierarchy.
func (r Role) Outranks(other Role) bool {
	return roleRank[r] > roleRank[other]
}

// AtLeast reports whether r grants the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}
