package models

import "time"

// Activity log actions recorded for the consultation workflow.
const (
	ActivityActionRegister       = "REGISTER"
	ActivityActionLogin          = "LOGIN"
	ActivityActionLogout         = "LOGOUT"
	ActivityActionPasswordChange = "PASSWORD_CHANGE"
	ActivityActionBook           = "BOOK"
	ActivityActionAmend          = "AMEND"
	ActivityActionDecide         = "DECIDE"
	ActivityActionWithdraw       = "WITHDRAW"
)

// ActivityLog records who did what to which resource.
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *int64    `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *int64    `db:"resource_id" json:"resource_id,omitempty"`
	Detail     []byte    `db:"detail" json:"detail,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
