package models

import "time"

// UserRole distinguishes the two campus roles. A mahasiswa (student) owns
// consultation bookings; a dosen (advisor) decides them.
type UserRole string

const (
	RoleMahasiswa UserRole = "MAHASISWA"
	RoleDosen     UserRole = "DOSEN"
)

// Valid reports whether the role is one of the two known values.
func (r UserRole) Valid() bool {
	return r == RoleMahasiswa || r == RoleDosen
}

// User represents an application user stored in the users table. The role is
// fixed at registration; only the password may change afterwards.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
