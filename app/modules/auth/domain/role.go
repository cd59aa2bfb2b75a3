package authdomain

// Role represents a caller's role for authorization purposes.
type Role string

const (
	RoleViewer    Role = "viewer"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:    1,
	RoleOrganizer: 2,
	RoleAdmin:     3,
}

// IsValid checks if the role is a valid value.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Allows reports whether r grants at least the access of min.
func (r Role) Allows(min Role) bool {
	return r.IsValid() && roleRank[r] >= roleRank[min]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}
