package model

import "time"

const (
	RoleCustomer = "customer"
	RoleRunner   = "runner"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Login        string    `json:"login"`
	PasswordHash []byte    `json:"-"`
	Role         string    `json:"role"`
	DisplayName  string    `json:"display_name,omitempty"`
	// LinkedBank is the legacy single bank-link field; newer accounts use
	// the bank_accounts table instead.
	LinkedBank    *string   `json:"linked_bank,omitempty"`
	AccountStatus string    `json:"account_status"` // active | disabled
	CreatedAt     time.Time `json:"created_at"`
}
