package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"cashdrop/internal/model"
)

// EventService appends domain events to the order_events log and triggers
// the push-notification dispatch. Events are distinct from status
// transitions: several events may correlate with zero or one status change.
type EventService struct {
	db       *sql.DB
	notifier NotificationPublisher
}

func NewEventService(db *sql.DB, notifier NotificationPublisher) *EventService {
	return &EventService{db: db, notifier: notifier}
}

type EmitInput struct {
	OrderID        string          `json:"order_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	FromStatus     *string         `json:"from_status,omitempty"`
	ToStatus       *string         `json:"to_status,omitempty"`
	Actor          *Actor          `json:"-"`
	ClientActionID string          `json:"client_action_id,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// Emit appends the event row, then asynchronously triggers the
// notification dispatch keyed by the new event id. The dispatch is fire
// and forget: its failure is logged, never rolled back into the caller.
func (s *EventService) Emit(ctx context.Context, in EmitInput) (*model.OrderEvent, error) {
	if !model.ValidEventType(in.EventType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, in.EventType)
	}
	if in.OrderID == "" {
		return nil, fmt.Errorf("%w: order id required", ErrInvalidInput)
	}

	ev := model.OrderEvent{
		ID:         uuid.New().String(),
		OrderID:    in.OrderID,
		EventType:  in.EventType,
		Payload:    in.Payload,
		FromStatus: in.FromStatus,
		ToStatus:   in.ToStatus,
		Metadata:   in.Metadata,
	}
	if in.Actor != nil {
		ev.ActorID = &in.Actor.ID
		ev.ActorRole = &in.Actor.Role
	}
	if in.ClientActionID != "" {
		ev.ClientActionID = &in.ClientActionID
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO order_events (id, order_id, event_type, payload, from_status, to_status, actor_id, actor_role, client_action_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		ev.ID, ev.OrderID, ev.EventType, nullableJSON(ev.Payload), ev.FromStatus, ev.ToStatus,
		ev.ActorID, ev.ActorRole, ev.ClientActionID, nullableJSON(ev.Metadata),
	).Scan(&ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order event: %w", err)
	}

	if s.notifier != nil {
		go func(eventID string) {
			if err := s.notifier.PublishNotification(eventID); err != nil {
				slog.Error("notification dispatch failed", "event_id", eventID, "error", err)
			}
		}(ev.ID)
	}

	return &ev, nil
}

// EmitAsync is Emit for call sites where the event is a side effect of an
// already-committed write: failure is logged and swallowed.
func (s *EventService) EmitAsync(ctx context.Context, in EmitInput) {
	if _, err := s.Emit(ctx, in); err != nil {
		slog.Error("emit order event failed", "order_id", in.OrderID, "type", in.EventType, "error", err)
	}
}

func (s *EventService) GetByID(ctx context.Context, eventID string) (*model.OrderEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, event_type, payload, from_status, to_status, actor_id, actor_role, client_action_id, metadata, created_at
		FROM order_events WHERE id = $1`, eventID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order event: %w", err)
	}
	return ev, nil
}

func (s *EventService) ListByOrder(ctx context.Context, orderID string) ([]model.OrderEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, event_type, payload, from_status, to_status, actor_id, actor_role, client_action_id, metadata, created_at
		FROM order_events WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order events: %w", err)
	}
	defer rows.Close()

	events := []model.OrderEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		events = append(events, *ev)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return events, nil
}

// HasEvent reports whether an event of the given type exists for the
// order. Used to detect sub-status milestones, e.g. runner_arrived while
// the status is still Pending Handoff.
func (s *EventService) HasEvent(ctx context.Context, orderID, eventType string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM order_events WHERE order_id = $1 AND event_type = $2)`,
		orderID, eventType,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order event: %w", err)
	}
	return exists, nil
}

func scanEvent(row rowScanner) (*model.OrderEvent, error) {
	var ev model.OrderEvent
	var payload, metadata []byte
	var fromStatus, toStatus, actorID, actorRole, clientActionID sql.NullString

	err := row.Scan(&ev.ID, &ev.OrderID, &ev.EventType, &payload, &fromStatus, &toStatus,
		&actorID, &actorRole, &clientActionID, &metadata, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}

	ev.Payload = payload
	ev.Metadata = metadata
	if fromStatus.Valid {
		ev.FromStatus = &fromStatus.String
	}
	if toStatus.Valid {
		ev.ToStatus = &toStatus.String
	}
	if actorID.Valid {
		ev.ActorID = &actorID.String
	}
	if actorRole.Valid {
		ev.ActorRole = &actorRole.String
	}
	if clientActionID.Valid {
		ev.ClientActionID = &clientActionID.String
	}

	return &ev, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
