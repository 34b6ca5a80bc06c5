package model

import (
	"time"
)

// Order statuses. Forward progression only; Cancelled is reachable from
// any non-terminal status.
const (
	StatusPending        = "Pending"
	StatusRunnerAccepted = "Runner Accepted"
	StatusRunnerAtATM    = "Runner at ATM"
	StatusCashWithdrawn  = "Cash Withdrawn"
	StatusPendingHandoff = "Pending Handoff"
	StatusCompleted      = "Completed"
	StatusCancelled      = "Cancelled"
)

// AddressSnapshot is an immutable copy of delivery-address fields taken at
// order-creation time. The live address record may be edited or deleted
// later; the snapshot is the binding delivery target.
type AddressSnapshot struct {
	Label      string  `json:"label,omitempty"`
	Line1      string  `json:"line1"`
	Line2      string  `json:"line2,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Lat        float64 `json:"lat,omitempty"`
	Lon        float64 `json:"lon,omitempty"`
}

type Order struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customer_id"`
	RunnerID   *string `json:"runner_id,omitempty"`

	RequestedAmount float64 `json:"requested_amount"`
	Profit          float64 `json:"profit"`
	ComplianceFee   float64 `json:"compliance_fee"`
	DeliveryFee     float64 `json:"delivery_fee"`
	TotalServiceFee float64 `json:"total_service_fee"`
	TotalPayment    float64 `json:"total_payment"`

	Status        string `json:"status"`
	DeliveryStyle string `json:"delivery_style,omitempty"`
	Notes         string `json:"notes,omitempty"`

	CustomerAddress string           `json:"customer_address"`
	CustomerName    string           `json:"customer_name,omitempty"`
	RunnerName      string           `json:"runner_name,omitempty"`
	AddressID       *string          `json:"address_id,omitempty"`
	AddressSnapshot *AddressSnapshot `json:"address_snapshot,omitempty"`

	OTPCode      *string    `json:"-"`
	OTPExpiresAt *time.Time `json:"otp_expires_at,omitempty"`
	OTPAttempts  int        `json:"otp_attempts"`

	RunnerAcceptedAt   *time.Time `json:"runner_accepted_at,omitempty"`
	RunnerAtATMAt      *time.Time `json:"runner_at_atm_at,omitempty"`
	CashWithdrawnAt    *time.Time `json:"cash_withdrawn_at,omitempty"`
	HandoffCompletedAt *time.Time `json:"handoff_completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`

	Rating *int    `json:"rating,omitempty"`
	Review *string `json:"review,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether no further status mutation is legal for the order.
func (o *Order) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}
