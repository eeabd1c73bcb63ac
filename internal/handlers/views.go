package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/attendo/internal/attendance"
	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/models"
	"github.com/shrimpsizemoose/attendo/internal/nav"
)

// View is the JSON payload of every page.
type View struct {
	Route      string        `json:"route"`
	Breadcrumb []nav.Crumb   `json:"breadcrumb"`
	User       *gateway.User `json:"user"`
	Data       any           `json:"data,omitempty"`
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request, route nav.Route, data any) {
	h.writeJSON(w, http.StatusOK, View{
		Route:      route.Name,
		Breadcrumb: route.Crumbs(r.PathValue),
		User:       h.service.Auth.User(),
		Data:       data,
	})
}

func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, nav.Home, map[string]bool{
		"signed_in":    h.service.Auth.Known(),
		"auth_enabled": h.service.Auth.Enabled(),
	})
}

func (h *Handler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, nav.About, map[string]string{
		"name":        "attendo",
		"description": "Attendance management for examination sessions",
	})
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.Sessions.FetchSessions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, nav.Sessions, map[string]any{"sessions": sessions})
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	detail, err := h.service.Sessions.LoadSessionDetail(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, nav.SessionDetail, detail)
}

func (h *Handler) HandleUEView(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "sessionId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.service.UEs.LoadUEPage(r.Context(), sessionID, r.PathValue("ueId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, nav.UEView, page)
}

func (h *Handler) HandleRoomView(w http.ResponseWriter, r *http.Request) {
	eventID, err := h.eventPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.service.Rooms.LoadEventPage(r.Context(), eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, nav.RoomView, page)
}

type attendancePage struct {
	*attendance.RoomView
	Teachers []models.Teacher `json:"teachers"`
}

func (h *Handler) HandleAttendanceView(w http.ResponseWriter, r *http.Request) {
	roomID, err := h.roomPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	room, err := h.service.Attendance.LoadFullRoomData(r.Context(), roomID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	teachers, err := h.service.Attendance.FetchTeachers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, nav.AttendanceView, attendancePage{RoomView: room, Teachers: teachers})
}
