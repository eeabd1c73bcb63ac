package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/app"
	"github.com/shrimpsizemoose/attendo/internal/attendance"
	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/metrics"
	"github.com/shrimpsizemoose/attendo/internal/nav"
)

type Handler struct {
	service *app.Service
	guard   *nav.Guard
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{
		service: service,
		guard:   nav.NewGuard(service.Auth),
	}
}

// Register mounts every view, write and auth endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	get := func(route nav.Route, fn http.HandlerFunc) {
		nav.Mount(mux, h.guard, route, http.MethodGet, "", fn)
	}
	post := func(route nav.Route, suffix string, fn http.HandlerFunc) {
		nav.Mount(mux, h.guard, route, http.MethodPost, suffix, fn)
	}

	get(nav.Home, h.HandleHome)
	get(nav.About, h.HandleAbout)
	get(nav.Sessions, h.HandleSessions)
	get(nav.SessionDetail, h.HandleSessionDetail)
	get(nav.UEView, h.HandleUEView)
	get(nav.RoomView, h.HandleRoomView)
	get(nav.AttendanceView, h.HandleAttendanceView)

	post(nav.Sessions, "", h.HandleAddSession)
	post(nav.SessionDetail, "/ue", h.HandleAddUe)
	post(nav.UEView, "/event", h.HandleAddEvent)
	post(nav.RoomView, "/room", h.HandleAddRoom)
	post(nav.AttendanceView, "/supervisor", h.HandleUpdateSupervisor)
	post(nav.AttendanceView, "/presence/:studentId", h.HandleTogglePresence)

	mux.HandleFunc("GET /login", h.HandleLogin)
	mux.HandleFunc("GET /auth/callback", h.HandleAuthCallback)
	mux.HandleFunc("POST /logout", h.HandleLogout)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// WithMetrics records the duration of every request by matched pattern.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.APIRequestDuration.WithLabelValues(
			path,
			r.Method,
			strconv.Itoa(rec.status),
		).Observe(time.Since(start).Seconds())
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if h.service.Config.Display.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
	}
}

func errorStatus(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, attendance.ErrCapacityReached), errors.Is(err, attendance.ErrAlreadyPresent):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrNotEnrolled):
		return http.StatusNotFound
	case errors.As(err, &validationErrs), errors.Is(err, errBadParam):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Debug.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

var errBadParam = errors.New("invalid path parameter")

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %s=%q", errBadParam, name, r.PathValue(name))
	}
	return id, nil
}

// eventPath returns the event id of the request after checking that the
// event belongs to the session and UE named before it in the path.
func (h *Handler) eventPath(r *http.Request) (int64, error) {
	sessionID, err := pathID(r, "sessionId")
	if err != nil {
		return 0, err
	}
	eventID, err := pathID(r, "eventId")
	if err != nil {
		return 0, err
	}
	if err := h.service.UEs.CheckEvent(r.Context(), sessionID, r.PathValue("ueId"), eventID); err != nil {
		return 0, err
	}
	return eventID, nil
}

// roomPath is eventPath for an examination room of that event.
func (h *Handler) roomPath(r *http.Request) (int64, error) {
	eventID, err := h.eventPath(r)
	if err != nil {
		return 0, err
	}
	roomID, err := pathID(r, "roomId")
	if err != nil {
		return 0, err
	}
	if err := h.service.Attendance.CheckRoom(r.Context(), eventID, roomID); err != nil {
		return 0, err
	}
	return roomID, nil
}
