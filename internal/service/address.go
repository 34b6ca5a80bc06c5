package service

import (
	"context"
	"database/sql"
	"fmt"

	"cashdrop/internal/model"
)

// AddressService manages the saved-address book. Deleting an address never
// touches past orders: they carry their own snapshot.
type AddressService struct {
	db *sql.DB
}

func NewAddressService(db *sql.DB) *AddressService {
	return &AddressService{db: db}
}

type SaveAddressInput struct {
	Label      string  `json:"label"`
	Line1      string  `json:"line1"`
	Line2      string  `json:"line2"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Icon       string  `json:"icon"`
	IsDefault  bool    `json:"is_default"`
}

func (s *AddressService) Create(ctx context.Context, customerID string, in SaveAddressInput) (*model.CustomerAddress, error) {
	if in.Line1 == "" {
		return nil, fmt.Errorf("%w: line1 required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if in.IsDefault {
		_, err = tx.ExecContext(ctx,
			`UPDATE customer_addresses SET is_default = FALSE WHERE customer_id = $1`, customerID)
		if err != nil {
			return nil, fmt.Errorf("clear default address: %w", err)
		}
	}

	a := model.CustomerAddress{
		CustomerID: customerID,
		Label:      in.Label,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Lat:        in.Lat,
		Lon:        in.Lon,
		Icon:       in.Icon,
		IsDefault:  in.IsDefault,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO customer_addresses (customer_id, label, line1, line2, city, state, postal_code, lat, lon, icon, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		a.CustomerID, a.Label, a.Line1, a.Line2, a.City, a.State, a.PostalCode,
		a.Lat, a.Lon, a.Icon, a.IsDefault,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert address: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &a, nil
}

func (s *AddressService) ListByCustomer(ctx context.Context, customerID string) ([]model.CustomerAddress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, label, line1, line2, city, state, postal_code, lat, lon, icon, is_default, created_at
		FROM customer_addresses WHERE customer_id = $1
		ORDER BY is_default DESC, created_at ASC`, customerID)
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

func (s *AddressService) Delete(ctx context.Context, customerID, addressID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM customer_addresses WHERE id = $1 AND customer_id = $2`,
		addressID, customerID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// BankService records linked bank accounts. The link/token exchange itself
// happens at the external bank-link provider; only its result lands here.
type BankService struct {
	db *sql.DB
}

func NewBankService(db *sql.DB) *BankService {
	return &BankService{db: db}
}

func (s *BankService) Link(ctx context.Context, userID, provider, externalID string) (*model.BankAccount, error) {
	if provider == "" || externalID == "" {
		return nil, fmt.Errorf("%w: provider and external_id required", ErrInvalidInput)
	}

	b := model.BankAccount{UserID: userID, Provider: provider, ExternalID: externalID}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bank_accounts (user_id, provider, external_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		userID, provider, externalID,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert bank account: %w", err)
	}
	return &b, nil
}

func (s *BankService) ListByUser(ctx context.Context, userID string) ([]model.BankAccount, error) {
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
