package model

// Role is a capability label, not a closed enum: any role reported as
// privileged is admin-equivalent, so new privileged roles can be introduced
// without touching the reservation core.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Privileged reports whether the role is exempt from duration rules and
// ownership restrictions.
func (r Role) Privileged() bool {
	return r == RoleAdmin
}

// Principal is an authenticated actor. Authentication happens upstream; the
// service only resolves the identifier to a role.
type Principal struct {
	ID   string `json:"id" bson:"_id" validate:"required,opaque_id"`
	Role Role   `json:"role" bson:"role" validate:"required,oneof=member admin"`
}
