package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"cashdrop/internal/model"
	"cashdrop/internal/realtime"
)

// StreamHandler bridges the realtime order feed to web clients over SSE.
// The subscription scope follows the actor's role; ?order_id= narrows a
// customer or runner to a single order, ?available=1 switches a runner to
// the unclaimed-orders feed. The subscriber is torn down with the request.
func StreamHandler(amqpURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		scope := scopeFor(a.ID, a.Role, r.URL.Query().Get("order_id"), r.URL.Query().Get("available") != "")

		// Buffered so a slow client sheds events instead of blocking the
		// consumer; the feed is a cache refresher, not the source of truth.
		feed := make(chan realtime.ChangeEvent, 64)
		degraded := make(chan error, 1)

		push := func(ev realtime.ChangeEvent) {
			select {
			case feed <- ev:
			default:
				slog.Warn("dropping change event for slow stream client", "scope", scope.Kind)
			}
		}

		sub := realtime.NewSubscriber(amqpURL, scope, realtime.Handlers{
			OnInsert: func(n *model.Order) {
				push(realtime.ChangeEvent{Type: realtime.ChangeInsert, New: n})
			},
			OnUpdate: func(n, o *model.Order) {
				push(realtime.ChangeEvent{Type: realtime.ChangeUpdate, New: n, Old: o})
			},
			OnDelete: func(o *model.Order) {
				push(realtime.ChangeEvent{Type: realtime.ChangeDelete, Old: o})
			},
			OnDegraded: func(err error) {
				select {
				case degraded <- err:
				default:
				}
			},
		})
		go sub.Run(r.Context())
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case err := <-degraded:
				// Reconnect budget exhausted; tell the client and end the
				// stream rather than pretending to be live.
				fmt.Fprintf(w, "event: degraded\ndata: %q\n\n", err.Error())
				flusher.Flush()
				return
			case ev := <-feed:
				body, err := json.Marshal(ev)
				if err != nil {
					slog.Error("encode change event failed", "error", err)
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", body)
				flusher.Flush()
			}
		}
	}
}

func scopeFor(actorID, role, orderID string, available bool) realtime.Scope {
	if orderID != "" {
		return realtime.Scope{Kind: realtime.ScopeSingle, OrderID: orderID}
	}
	switch role {
	case model.RoleAdmin:
		return realtime.Scope{Kind: realtime.ScopeAdmin}
	case model.RoleRunner:
		if available {
			return realtime.Scope{Kind: realtime.ScopeRunnerAvailable}
		}
		return realtime.Scope{Kind: realtime.ScopeRunnerAssigned, RunnerID: actorID}
	default:
		return realtime.Scope{Kind: realtime.ScopeCustomer, CustomerID: actorID}
	}
}
