package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cwrk-planet/presence-service/internal/security"
	httpmw "github.com/cwrk-planet/presence-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/presence-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, events *EventsHandler, wsServer *ws.Server,
	verifier security.TokenVerifier, internalToken string) http.Handler {

	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	// WS endpoint: handshake сам проверяет токен
	r.Get("/ws", wsServer.HandleWS)

	// REST-поверхность уведомлений (тот же сторадж, что и live push)
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(verifier))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/notifications", func(nr chi.Router) {
			nr.Get("/", h.ListNotifications)
			nr.Get("/unread-count", h.UnreadCount)
			nr.Post("/read-all", h.MarkAllRead)
			nr.Post("/{id}/read", h.MarkRead)
			nr.Delete("/{id}", h.DeleteNotification)
			nr.Delete("/", h.DeleteAllNotifications)
		})
	})

	// ingest доменных событий из application-слоя
	r.Group(func(ir chi.Router) {
		ir.Use(httpmw.InternalTokenMiddleware(internalToken))
		ir.Use(middlewareChi.Timeout(10 * time.Second))
		ir.Post("/internal/events", events.PublishEvent)

		// logout/отзыв токена: рвём все сессии пользователя
		ir.Post("/internal/users/{id}/disconnect", func(w http.ResponseWriter, r *http.Request) {
			uid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil || uid <= 0 {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
				return
			}
			wsServer.CloseUser(uid)
			w.WriteHeader(http.StatusNoContent)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
