package model

// Role is the identity provider's role claim.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// User is the read-only profile record owned by the identity collaborator.
// The reservation service only reads it to address reminder emails and
// confirmations.
//
// Fields:
//
//	ID       – primary key identifier of the user.
//	Email    – unique email address.
//	FullName – display name used in notifications.
//	Role     – CUSTOMER, OWNER or ADMIN.
type User struct {
	ID       uint64 // users.id
	Email    string // users.email
	FullName string // users.full_name
	Role     Role   // users.role
}

// Actor is the authenticated caller of an operation, as asserted by the
// identity provider's token.
type Actor struct {
	UserID uint64
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
