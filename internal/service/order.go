package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cashdrop/internal/fees"
	"cashdrop/internal/model"
	"cashdrop/internal/realtime"
)

// OrderService owns order creation and the status state machine. Every
// transition is a conditional update: the status-equality precondition is
// the concurrency-control primitive, there is no separate lock.
type OrderService struct {
	db          *sql.DB
	pub         ChangePublisher
	events      *EventService
	deliveryFee float64
}

func NewOrderService(db *sql.DB, pub ChangePublisher, events *EventService, deliveryFee float64) *OrderService {
	return &OrderService{db: db, pub: pub, events: events, deliveryFee: deliveryFee}
}

type CreateOrderInput struct {
	Amount        float64 `json:"amount"`
	Address       string  `json:"address"`
	Notes         string  `json:"notes"`
	AddressID     string  `json:"address_id"`
	DeliveryStyle string  `json:"delivery_style"`
}

const orderColumns = `o.id, o.customer_id, o.runner_id,
	o.requested_amount, o.profit, o.compliance_fee, o.delivery_fee, o.total_service_fee, o.total_payment,
	o.status, o.delivery_style, o.notes, o.customer_address, o.customer_name,
	o.address_id, o.address_snapshot,
	o.otp_code, o.otp_expires_at, o.otp_attempts,
	o.runner_accepted_at, o.runner_at_atm_at, o.cash_withdrawn_at, o.handoff_completed_at,
	o.cancelled_at, o.cancellation_reason, o.rating, o.review,
	o.version, o.created_at, o.updated_at,
	COALESCE(ru.display_name, '') AS runner_name`

const orderFrom = ` FROM orders o LEFT JOIN users ru ON ru.id = o.runner_id `

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	var runnerID, addressID, otpCode, cancelReason, review sql.NullString
	var snapshot []byte
	var otpExpires, acceptedAt, atATMAt, withdrawnAt, handoffAt, cancelledAt sql.NullTime
	var rating sql.NullInt64

	err := row.Scan(
		&o.ID, &o.CustomerID, &runnerID,
		&o.RequestedAmount, &o.Profit, &o.ComplianceFee, &o.DeliveryFee, &o.TotalServiceFee, &o.TotalPayment,
		&o.Status, &o.DeliveryStyle, &o.Notes, &o.CustomerAddress, &o.CustomerName,
		&addressID, &snapshot,
		&otpCode, &otpExpires, &o.OTPAttempts,
		&acceptedAt, &atATMAt, &withdrawnAt, &handoffAt,
		&cancelledAt, &cancelReason, &rating, &review,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
		&o.RunnerName,
	)
	if err != nil {
		return nil, err
	}

	if runnerID.Valid {
		o.RunnerID = &runnerID.String
	}
	if addressID.Valid {
		o.AddressID = &addressID.String
	}
	if len(snapshot) > 0 {
		var snap model.AddressSnapshot
		if err := json.Unmarshal(snapshot, &snap); err != nil {
			return nil, fmt.Errorf("decode address snapshot: %w", err)
		}
		o.AddressSnapshot = &snap
	}
	if otpCode.Valid {
		o.OTPCode = &otpCode.String
	}
	if otpExpires.Valid {
		o.OTPExpiresAt = &otpExpires.Time
	}
	if acceptedAt.Valid {
		o.RunnerAcceptedAt = &acceptedAt.Time
	}
	if atATMAt.Valid {
		o.RunnerAtATMAt = &atATMAt.Time
	}
	if withdrawnAt.Valid {
		o.CashWithdrawnAt = &withdrawnAt.Time
	}
	if handoffAt.Valid {
		o.HandoffCompletedAt = &handoffAt.Time
	}
	if cancelledAt.Valid {
		o.CancelledAt = &cancelledAt.Time
	}
	if cancelReason.Valid {
		o.CancellationReason = &cancelReason.String
	}
	if rating.Valid {
		r := int(rating.Int64)
		o.Rating = &r
	}
	if review.Valid {
		o.Review = &review.String
	}

	return &o, nil
}

// Create computes the fee breakdown, persists the order as Pending and
// copies the delivery address into an immutable snapshot. When addressID
// references a saved address it must belong to the customer.
func (s *OrderService) Create(ctx context.Context, customer *model.User, in CreateOrderInput) (*model.Order, error) {
	if customer == nil || customer.ID == "" {
		return nil, ErrUnauthenticated
	}

	breakdown, err := fees.Calculate(in.Amount, s.deliveryFee)
	if err != nil {
		return nil, err
	}

	var addressID *string
	var snapshot *model.AddressSnapshot
	deliveryAddress := in.Address

	if in.AddressID != "" {
		saved, err := s.lookupAddress(ctx, customer.ID, in.AddressID)
		if err != nil {
			return nil, err
		}
		addressID = &saved.ID
		snapshot = saved.Snapshot()
		deliveryAddress = saved.Line1
	} else {
		if in.Address == "" {
			return nil, fmt.Errorf("%w: address required", ErrInvalidInput)
		}
		snapshot = &model.AddressSnapshot{Line1: in.Address}
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode address snapshot: %w", err)
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO orders (
			customer_id, requested_amount, profit, compliance_fee, delivery_fee,
			total_service_fee, total_payment, status, delivery_style, notes,
			customer_address, customer_name, address_id, address_snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		customer.ID, breakdown.RequestedAmount, breakdown.Profit, breakdown.ComplianceFee,
		breakdown.DeliveryFee, breakdown.TotalServiceFee, breakdown.TotalPayment,
		model.StatusPending, in.DeliveryStyle, in.Notes,
		deliveryAddress, customer.DisplayName, addressID, snapshotJSON,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	publishChange(s.pub, realtime.ChangeEvent{Type: realtime.ChangeInsert, New: order})
	s.events.EmitAsync(ctx, EmitInput{
		OrderID:   order.ID,
		EventType: model.EventOrderCreated,
		ToStatus:  &order.Status,
		Actor:     &Actor{ID: customer.ID, Role: customer.Role},
	})

	return order, nil
}

func (s *OrderService) lookupAddress(ctx context.Context, customerID, addressID string) (*model.CustomerAddress, error) {
	var a model.CustomerAddress
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, label, line1, line2, city, state, postal_code, lat, lon, icon, is_default, created_at
		FROM customer_addresses WHERE id = $1 AND customer_id = $2`,
		addressID, customerID,
	).Scan(&a.ID, &a.CustomerID, &a.Label, &a.Line1, &a.Line2, &a.City, &a.State,
		&a.PostalCode, &a.Lat, &a.Lon, &a.Icon, &a.IsDefault, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: address %s", ErrInvalidInput, addressID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup address: %w", err)
	}
	return &a, nil
}

// Accept claims a Pending order for a runner. Safe under concurrent
// acceptance: the conditional update matches only while the order is still
// Pending and unclaimed, so exactly one of the racing runners wins and the
// rest get ErrConflict.
func (s *OrderService) Accept(ctx context.Context, orderID, runnerID string) error {
	if runnerID == "" {
		return ErrUnauthenticated
	}

	old, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET runner_id = $1, status = $2, runner_accepted_at = NOW(),
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND status = $4 AND runner_id IS NULL`,
		runnerID, model.StatusRunnerAccepted, orderID, model.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("accept order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("accept order: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}

	updated, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	publishChange(s.pub, realtime.ChangeEvent{Type: realtime.ChangeUpdate, New: updated, Old: old})
	s.events.EmitAsync(ctx, EmitInput{
		OrderID:    orderID,
		EventType:  model.EventRunnerAssigned,
		FromStatus: &old.Status,
		ToStatus:   &updated.Status,
		Actor:      &Actor{ID: runnerID, Role: model.RoleRunner},
	})

	return nil
}

// UpdateStatus applies a forward transition and stamps the milestone
// timestamp for the target status. The legal-transition table is enforced
// here, inside the conditional update: the row must still hold the target's
// required predecessor status or the call reports ErrConflict.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, newStatus string, actor *Actor) error {
	pred, ok := forwardPredecessor[newStatus]
	if !ok {
		return fmt.Errorf("%w: status %q", ErrInvalidInput, newStatus)
	}

	old, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	set := `status = $1, version = version + 1, updated_at = NOW()`
	if col, ok := milestoneColumn[newStatus]; ok {
		set += `, ` + col + ` = NOW()`
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET `+set+` WHERE id = $2 AND status = $3`,
		newStatus, orderID, pred,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}

	updated, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	publishChange(s.pub, realtime.ChangeEvent{Type: realtime.ChangeUpdate, New: updated, Old: old})

	return nil
}

// Cancel moves any non-terminal order to Cancelled, recording reason and
// timestamp. Idempotent on an already-cancelled order: reports success and
// preserves the original cancelled_at and reason.
func (s *OrderService) Cancel(ctx context.Context, orderID, reason string, actor *Actor) error {
	old, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if old.Status == model.StatusCancelled {
		return nil
	}
	if old.Status == model.StatusCompleted {
		return ErrConflict
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, cancelled_at = NOW(), cancellation_reason = $2,
		    otp_code = NULL, otp_expires_at = NULL,
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND status NOT IN ($4, $5)`,
		model.StatusCancelled, reason, orderID, model.StatusCompleted, model.StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if affected == 0 {
		// Raced with another cancel or completion; re-read to decide.
		current, err := s.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == model.StatusCancelled {
			return nil
		}
		return ErrConflict
	}

	updated, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	publishChange(s.pub, realtime.ChangeEvent{Type: realtime.ChangeUpdate, New: updated, Old: old})
	s.events.EmitAsync(ctx, EmitInput{
		OrderID:    orderID,
		EventType:  model.EventOrderCancelled,
		FromStatus: &old.Status,
		ToStatus:   &updated.Status,
		Actor:      actor,
		Payload:    json.RawMessage(fmt.Sprintf(`{"reason":%q}`, reason)),
	})

	return nil
}

// SetReview writes rating/review on a terminal order. The record is
// otherwise immutable once Completed or Cancelled.
func (s *OrderService) SetReview(ctx context.Context, orderID, customerID string, rating int, review string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be 1..5", ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET rating = $1, review = $2, updated_at = NOW()
		WHERE id = $3 AND customer_id = $4 AND status IN ($5, $6)`,
		rating, review, orderID, customerID, model.StatusCompleted, model.StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("set review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set review: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *OrderService) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+orderFrom+`WHERE o.id = $1`, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *OrderService) ListByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	return s.list(ctx,
		`SELECT `+orderColumns+orderFrom+`WHERE o.customer_id = $1 ORDER BY o.created_at DESC`,
		customerID)
}

func (s *OrderService) ListByRunner(ctx context.Context, runnerID string) ([]model.Order, error) {
	return s.list(ctx,
		`SELECT `+orderColumns+orderFrom+`WHERE o.runner_id = $1 ORDER BY o.created_at DESC`,
		runnerID)
}

// ListAvailable returns unclaimed Pending orders, oldest first.
func (s *OrderService) ListAvailable(ctx context.Context) ([]model.Order, error) {
	return s.list(ctx,
		`SELECT `+orderColumns+orderFrom+`WHERE o.status = $1 AND o.runner_id IS NULL ORDER BY o.created_at ASC`,
		model.StatusPending)
}

func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	return s.list(ctx,
		`SELECT `+orderColumns+orderFrom+`ORDER BY o.created_at DESC`)
}

// list always returns a non-nil slice: no match means empty, never null.
func (s *OrderService) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return orders, nil
}
