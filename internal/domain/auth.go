package domain

// Identity is what the auth oracle yields for a verified bearer token.
type Identity struct {
	UserID   int64
	Username string
	Role     UserRole
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == UserRoleAdmin
}
