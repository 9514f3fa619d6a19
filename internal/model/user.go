package model

import "time"

// Role is the authorization role assigned to a user at registration.
// The value is embedded in access tokens and checked by the role
// middleware on protected routes.
type Role string

const (
	RoleStudent      Role = "STUDENT"
	RoleInstructor   Role = "INSTRUCTOR"
	RoleAcademyAdmin Role = "ACADEMY_ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAcademyAdmin:
		return true
	}
	return false
}

// UserStatus is the approval state of an account. A freshly registered
// user starts in PENDING_APPROVAL and may only log in once an external
// approval workflow promotes it to ACTIVE. SUSPENDED and REJECTED are
// terminal states set by the same workflow; this service never
// transitions a user back to PENDING_APPROVAL.
type UserStatus string

const (
	StatusPendingApproval UserStatus = "PENDING_APPROVAL"
	StatusActive          UserStatus = "ACTIVE"
	StatusSuspended       UserStatus = "SUSPENDED"
	StatusRejected        UserStatus = "REJECTED"
)

// User represents an account record as stored in the `users` table.
// Emails are unique per tenant, not globally; the (tenant_id, email)
// pair carries a unique key so concurrent registrations cannot create
// duplicates.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name supplied at registration.
//  Email        – email address, unique within the tenant.
//  PasswordHash – bcrypt hashed password, never the raw credential.
//  Role         – authorization role (STUDENT, INSTRUCTOR, ACADEMY_ADMIN).
//  Status       – approval state; only ACTIVE users can log in.
//  TenantID     – customer/organization namespace the user belongs to.
//  AcademyID    – optional organizational sub-unit within the tenant.
//  Phone        – contact phone number.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	TenantID     string
	AcademyID    *uint64 // nullable, users.academy_id
	Phone        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken models an entry in the `refresh_tokens` table. A token
// is a disposable capability: it is written on login, read back on
// refresh, and removed on logout (bulk, per user) or when a refresh
// finds it past its expiry. The token string itself is unique across
// the table; a user may hold any number of live tokens at once.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  Token     – signed token string as handed to the client.
//  ExpiresAt – server-side expiration timestamp of the record.
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the stored record's expiry has passed.
func (t RefreshToken) Expired() bool {
	return time.Now().UTC().After(t.ExpiresAt)
}
