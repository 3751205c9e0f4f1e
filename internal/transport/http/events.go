package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/presence-service/internal/domain"
)

// Publisher — fan-out engine.
type Publisher interface {
	Publish(ctx context.Context, occ domain.Occurrence) error
}

type EventsHandler struct {
	publisher Publisher
}

func NewEventsHandler(publisher Publisher) *EventsHandler {
	return &EventsHandler{publisher: publisher}
}

type eventEnvelope struct {
	Kind    domain.OccurrenceKind `json:"kind"`
	Payload json.RawMessage       `json:"payload"`
}

// POST /internal/events — ingest доменных событий из application-слоя.
// Формат: {"kind": "...", "payload": {...}}.
func (h *EventsHandler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var env eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	occ, err := decodeOccurrence(env)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.publisher.Publish(r.Context(), occ); err != nil {
		slog.Error("handler.PublishEvent:", slog.Any("kind", env.Kind), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func decodeOccurrence(env eventEnvelope) (domain.Occurrence, error) {
	unmarshal := func(dst any) error {
		if len(env.Payload) == 0 {
			return errors.New("missing payload")
		}
		return json.Unmarshal(env.Payload, dst)
	}

	switch env.Kind {
	case domain.KindNewAnswer:
		var o domain.NewAnswer
		if err := unmarshal(&o); err != nil {
			return nil, err
		}
		return o, nil
	case domain.KindNewComment:
		var o domain.NewComment
		if err := unmarshal(&o); err != nil {
			return nil, err
		}
		return o, nil
	case domain.KindNewVote:
		var o domain.NewVote
		if err := unmarshal(&o); err != nil {
			return nil, err
		}
		return o, nil
	case domain.KindBadgeEarned:
		var o domain.BadgeEarned
		if err := unmarshal(&o); err != nil {
			return nil, err
		}
		return o, nil
	case domain.KindNewMessage:
		var o domain.NewMessage
		if err := unmarshal(&o); err != nil {
			return nil, err
		}
		return o, nil
	case domain.KindViewerJoined:
		var o domain.ViewerJoined
		if err := unmarshal(&o); err != nil {
			return nil, err
		}
		return o, nil
	case domain.KindViewerLeft:
		var o domain.ViewerLeft
		if err := unmarshal(&o); err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOccurrence, env.Kind)
	}
}
