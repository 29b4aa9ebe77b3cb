package domain

// Role is the congregation role of an authenticated principal.
type Role string

const (
	RoleMember Role = "member"
	RolePastor Role = "pastor"
	RoleAdmin  Role = "admin"
)

// Principal is the identity attached to a request.
type Principal struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
}

// IsAuthenticated reports whether the principal carries an identity.
func (p Principal) IsAuthenticated() bool {
	return p.UserID != ""
}

// CanManageSchedule is true for pastors and admins.
func (p Principal) CanManageSchedule() bool {
	return p.Role == RolePastor || p.Role == RoleAdmin
}

// ParseRole maps a claim value onto a Role, defaulting to member.
func ParseRole(value string) Role {
	switch Role(value) {
	case RolePastor:
		return RolePastor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}
