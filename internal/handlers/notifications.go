package handlers

import (
	"net/http"

	"seaop/internal/apperr"
	"seaop/models"
)

func recipientFromQuery(r *http.Request) (models.RecipientKind, int, error) {
	kind := models.RecipientKind(r.URL.Query().Get("recipientKind"))
	switch kind {
	case models.RecipientClient, models.RecipientContractor, models.RecipientAdmin:
	default:
		return "", 0, apperr.Validation("invalid recipientKind")
	}
	id, err := queryInt(r, "recipientId")
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

// GetNotificationsHandler handles GET /api/notifications.
func (h *Handler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	kind, recipientID, err := recipientFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	// Zero lets the service apply its own default.
	limit := 0
	if r.URL.Query().Get("limit") != "" {
		limit = parsePaginationParams(r).Limit
	}

	notifs, err := h.Notify.List(r.Context(), kind, recipientID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifs)
}

// GetUnreadCountHandler handles GET /api/notifications/unread-count.
func (h *Handler) GetUnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	kind, recipientID, err := recipientFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	count, err := h.Notify.UnreadCount(r.Context(), kind, recipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkNotificationReadHandler handles POST /api/notifications/{notificationId}/read.
func (h *Handler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	notificationID, err := pathID(r, "notificationId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Notify.MarkRead(r.Context(), notificationID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsReadHandler handles POST /api/notifications/read-all.
func (h *Handler) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	kind, recipientID, err := recipientFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Notify.MarkAllRead(r.Context(), kind, recipientID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
