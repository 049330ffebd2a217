package domain

// Role enumerates caller roles consumed from the access layer.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleOperator   Role = "operator"
)

// Valid reports whether the role is one the engine recognizes.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleOperator:
		return true
	}
	return false
}

// Actor is the authenticated caller identity. The engine consumes it as an
// opaque fact; it never issues or refreshes identities itself.
type Actor struct {
	ID   string
	Name string
	Role Role
}
