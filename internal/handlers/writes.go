package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/ues"
)

// writeResult answers an add attempt: 201 when added, 400 with the reason
// when the input was refused.
func (h *Handler) writeResult(w http.ResponseWriter, added bool, result any) {
	status := http.StatusCreated
	if !added {
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, result)
}

func (h *Handler) HandleAddSession(w http.ResponseWriter, r *http.Request) {
	existing, err := h.service.Sessions.FetchSessions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.Sessions.AddSessionIfNotExists(r.Context(), r.FormValue("label"), existing)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result.Added, result)
}

func (h *Handler) HandleAddUe(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.Sessions.TryAddUeToSession(r.Context(), sessionID, r.FormValue("ue"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result.Added, result)
}

func (h *Handler) HandleAddEvent(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "sessionId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	compoID, err := h.service.UEs.FetchSessionCompoID(r.Context(), sessionID, r.PathValue("ueId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	events, err := h.service.UEs.FetchEvents(r.Context(), compoID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.UEs.TryAddEvent(r.Context(), r.FormValue("label"), ues.Labels(events), compoID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result.Added, result)
}

func (h *Handler) HandleAddRoom(w http.ResponseWriter, r *http.Request) {
	eventID, err := h.eventPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	room := r.FormValue("room")
	if room == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Please select a room."})
		return
	}

	if err := h.service.Rooms.AddRoomToEvent(r.Context(), eventID, room); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]bool{"added": true})
}

func (h *Handler) HandleUpdateSupervisor(w http.ResponseWriter, r *http.Request) {
	roomID, err := h.roomPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	acro := r.FormValue("supervisor")
	if err := h.service.Attendance.UpdateSupervisor(r.Context(), roomID, acro); err != nil {
		h.writeError(w, r, err)
		return
	}
	logger.Info.Printf("Room %d now supervised by %s", roomID, acro)
	h.writeJSON(w, http.StatusOK, map[string]string{"supervisor": acro})
}

func (h *Handler) HandleTogglePresence(w http.ResponseWriter, r *http.Request) {
	roomID, err := h.roomPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	studentID, err := pathID(r, "studentId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	toggle, err := h.service.Attendance.ToggleStudent(r.Context(), roomID, studentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toggle)
}
