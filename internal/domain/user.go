package domain

import "time"

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// UserRole separates customers from support staff.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

// ParseUserRole validates a role name.
func ParseUserRole(raw string) (UserRole, bool) {
	switch role := UserRole(raw); role {
	case UserRoleCustomer, UserRoleAdmin:
		return role, true
	}
	return "", false
}

// User is an account that can open tickets or answer them.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Address      *string    `json:"address"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
}
