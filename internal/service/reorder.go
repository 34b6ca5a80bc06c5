package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"cashdrop/internal/model"
)

// Reorder ineligibility reasons, in check-priority order.
const (
	ReasonMissingBank    = "missing_bank"
	ReasonMissingAddress = "missing_address"
	ReasonBlockedOrder   = "blocked_order"
)

type ReorderInput struct {
	Profile       *model.User
	Addresses     []model.CustomerAddress
	PreviousOrder *model.Order
	BankAccounts  []model.BankAccount
	// RunnerAccountStatus is observed only; a disabled runner never blocks.
	RunnerAccountStatus string
}

type ReorderDecision struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// ValidateReorderEligibility decides whether a customer may recreate a past
// order. Checks run in fixed priority order — bank, address, blocked — and
// the first failure wins; that ordering is part of the contract.
func ValidateReorderEligibility(in ReorderInput) ReorderDecision {
	if !hasLinkedBank(in) {
		return ReorderDecision{Reason: ReasonMissingBank}
	}

	if !hasValidAddress(in) {
		return ReorderDecision{Reason: ReasonMissingAddress}
	}

	if orderBlocked(in.PreviousOrder) {
		return ReorderDecision{Reason: ReasonBlockedOrder}
	}

	if in.RunnerAccountStatus != "" && in.RunnerAccountStatus != "active" {
		slog.Info("previous runner account not active, reorder allowed anyway",
			"runner_account_status", in.RunnerAccountStatus)
	}

	return ReorderDecision{Eligible: true}
}

func hasLinkedBank(in ReorderInput) bool {
	if len(in.BankAccounts) > 0 {
		return true
	}
	// Legacy single bank-link field.
	return in.Profile != nil && in.Profile.LinkedBank != nil && *in.Profile.LinkedBank != ""
}

func hasValidAddress(in ReorderInput) bool {
	o := in.PreviousOrder
	if o == nil {
		return false
	}
	// An immutable snapshot is always a valid delivery target.
	if o.AddressSnapshot != nil {
		return true
	}
	if o.AddressID == nil {
		return false
	}
	for _, a := range in.Addresses {
		if a.ID == *o.AddressID {
			return true
		}
	}
	return false
}

// orderBlocked is the hook point for fraud/admin flags; nothing sets one
// yet, so it only rejects a missing order.
func orderBlocked(o *model.Order) bool {
	return o == nil
}

// ReorderService loads the decision inputs for a customer and past order.
type ReorderService struct {
	db     *sql.DB
	orders *OrderService
}

func NewReorderService(db *sql.DB, orders *OrderService) *ReorderService {
	return &ReorderService{db: db, orders: orders}
}

func (s *ReorderService) Evaluate(ctx context.Context, customerID, orderID string) (ReorderDecision, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return ReorderDecision{}, err
	}
	if order.CustomerID != customerID {
		return ReorderDecision{}, ErrNotFound
	}

	profile, err := s.loadProfile(ctx, customerID)
	if err != nil {
		return ReorderDecision{}, err
	}

	addresses, err := s.loadAddresses(ctx, customerID)
	if err != nil {
		return ReorderDecision{}, err
	}

	banks, err := s.loadBankAccounts(ctx, customerID)
	if err != nil {
		return ReorderDecision{}, err
	}

	runnerStatus := ""
	if order.RunnerID != nil {
		runnerStatus, err = s.loadAccountStatus(ctx, *order.RunnerID)
		if err != nil {
			// Soft input only; degrade to unknown rather than fail.
			slog.Error("load previous runner status failed", "runner_id", *order.RunnerID, "error", err)
			runnerStatus = ""
		}
	}

	return ValidateReorderEligibility(ReorderInput{
		Profile:             profile,
		Addresses:           addresses,
		PreviousOrder:       order,
		BankAccounts:        banks,
		RunnerAccountStatus: runnerStatus,
	}), nil
}

func (s *ReorderService) loadProfile(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	var linkedBank sql.NullString
	var displayName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, login, role, COALESCE(display_name, ''), linked_bank, account_status, created_at
		 FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &u.Login, &u.Role, &displayName, &linkedBank, &u.AccountStatus, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	u.DisplayName = displayName.String
	if linkedBank.Valid {
		u.LinkedBank = &linkedBank.String
	}
	return &u, nil
}

func (s *ReorderService) loadAddresses(ctx context.Context, customerID string) ([]model.CustomerAddress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, label, line1, line2, city, state, postal_code, lat, lon, icon, is_default, created_at
		FROM customer_addresses WHERE customer_id = $1 ORDER BY created_at ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	addresses := []model.CustomerAddress{}
	for rows.Next() {
		var a model.CustomerAddress
		err := rows.Scan(&a.ID, &a.CustomerID, &a.Label, &a.Line1, &a.Line2, &a.City,
			&a.State, &a.PostalCode, &a.Lat, &a.Lon, &a.Icon, &a.IsDefault, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return addresses, nil
}

func (s *ReorderService) loadBankAccounts(ctx context.Context, userID string) ([]model.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, provider, external_id, created_at
		FROM bank_accounts WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query bank accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.BankAccount{}
	for rows.Next() {
		var b model.BankAccount
		if err := rows.Scan(&b.ID, &b.UserID, &b.Provider, &b.ExternalID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bank account: %w", err)
		}
		accounts = append(accounts, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return accounts, nil
}

func (s *ReorderService) loadAccountStatus(ctx context.Context, userID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_status FROM users WHERE id = $1`, userID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load account status: %w", err)
	}
	return status, nil
}
