package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/shrimpsizemoose/attendo/internal/app"
	"github.com/shrimpsizemoose/attendo/internal/attendance"
	"github.com/shrimpsizemoose/attendo/internal/auth"
	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/gateway/gatewaytest"
	"github.com/shrimpsizemoose/attendo/internal/rooms"
	"github.com/shrimpsizemoose/attendo/internal/sessions"
	"github.com/shrimpsizemoose/attendo/internal/store/storetest"
	"github.com/shrimpsizemoose/attendo/internal/ues"
)

func setupServer(t *testing.T, state *auth.State) http.Handler {
	t.Helper()
	s := storetest.New(t)
	storetest.Seed(t, s)

	svc := &app.Service{
		Config:     &app.Config{},
		Auth:       state,
		Sessions:   sessions.NewService(s),
		Rooms:      rooms.NewService(s),
		Attendance: attendance.NewService(s),
	}
	svc.UEs = ues.NewService(s, svc.Sessions)

	mux := http.NewServeMux()
	NewHandler(svc).Register(mux)
	return WithMetrics(mux)
}

func do(t *testing.T, h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder, data any) View {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var raw struct {
		View
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.View
}

func TestViews(t *testing.T) {
	h := setupServer(t, auth.NewLocalState())

	t.Run("sessions", func(t *testing.T) {
		var data struct {
			Sessions []struct {
				ID    int64  `json:"id"`
				Label string `json:"label"`
			} `json:"sessions"`
		}
		v := decodeView(t, do(t, h, http.MethodGet, "/sessions", nil), &data)
		assert.Equal(t, "Sessions", v.Route)
		assert.Equal(t, "local", v.User.ID)
		require.Len(t, data.Sessions, 1)
		assert.Equal(t, "Juin 2024", data.Sessions[0].Label)
	})

	t.Run("session detail", func(t *testing.T) {
		var data sessions.Detail
		decodeView(t, do(t, h, http.MethodGet, "/sessions/1", nil), &data)
		assert.Equal(t, "Juin 2024", data.Label)
		assert.Len(t, data.UEs, 2)
		require.Len(t, data.Available, 1)
		assert.Equal(t, "MAT3", data.Available[0].Code)
	})

	t.Run("attendance breadcrumb and roster", func(t *testing.T) {
		var data struct {
			RoomLabel string               `json:"room_label"`
			Students  []attendance.Student `json:"students"`
			Teachers  []struct {
				Acro string `json:"acro"`
			} `json:"teachers"`
		}
		v := decodeView(t, do(t, h, http.MethodGet, "/sessions/1/ue/WEB1/event/1/room/1", nil), &data)
		assert.Equal(t, "/sessions/1/ue/WEB1/event/1", v.Breadcrumb[4].To)
		assert.Equal(t, "101", data.RoomLabel)
		assert.Len(t, data.Students, 3)
		assert.Len(t, data.Teachers, 2)
	})

	t.Run("missing room is 404", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/sessions/1/ue/WEB1/event/1/room/404", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id is 400", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/sessions/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWrites(t *testing.T) {
	h := setupServer(t, auth.NewLocalState())

	t.Run("add session", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/sessions", url.Values{"label": {"Septembre 2024"}})
		assert.Equal(t, http.StatusCreated, rec.Code)

		rec = do(t, h, http.MethodPost, "/sessions", url.Values{"label": {"juin 2024"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "This session already exists.")
	})

	t.Run("add UE", func(t *testing.T) {
		assert.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions/1/ue", url.Values{"ue": {"MAT3"}}).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/1/ue", url.Values{"ue": {""}}).Code)
		assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/sessions/1/ue", url.Values{"ue": {"MAT3"}}).Code)
	})

	t.Run("add event", func(t *testing.T) {
		assert.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions/1/ue/WEB1/event", url.Values{"label": {"Rattrapage"}}).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/1/ue/WEB1/event", url.Values{"label": {"écrit"}}).Code)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/sessions/1/ue/NOPE/event", url.Values{"label": {"Oral"}}).Code)
	})

	t.Run("add room and supervisor", func(t *testing.T) {
		assert.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions/1/ue/WEB1/event/1/room", url.Values{"room": {"303"}}).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/1/ue/WEB1/event/1/room", url.Values{}).Code)

		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/sessions/1/ue/WEB1/event/1/room/1/supervisor", url.Values{"supervisor": {"MCD"}}).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/1/ue/WEB1/event/1/room/1/supervisor", url.Values{"supervisor": {""}}).Code)
	})

	t.Run("toggle presence up to capacity", func(t *testing.T) {
		const room = "/sessions/1/ue/WEB1/event/1/room/1/presence/"

		rec := do(t, h, http.MethodPost, room+"2", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var toggle attendance.Toggle
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggle))
		assert.Equal(t, attendance.Toggle{StudentID: 2, Present: true}, toggle)

		assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, room+"3", nil).Code)
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, room+"1", nil).Code)
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, room+"3", nil).Code)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, room+"99", nil).Code)
	})
}

func TestPathChainIsChecked(t *testing.T) {
	h := setupServer(t, auth.NewLocalState())

	for _, target := range []string{
		"/sessions/1/ue/DEV2/event/1",
		"/sessions/1/ue/WEB1/event/2",
		"/sessions/2/ue/WEB1/event/1/room/1",
		"/sessions/1/ue/WEB1/event/1/room/2",
	} {
		rec := do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}

	// room 2 belongs to event 2: neither write may reach it through event 1
	const wrongEvent = "/sessions/1/ue/WEB1/event/1/room/2"
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, wrongEvent+"/presence/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, wrongEvent+"/supervisor", url.Values{"supervisor": {"MCD"}}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/sessions/1/ue/DEV2/event/1/room", url.Values{"room": {"303"}}).Code)

	var data attendance.RoomView
	decodeView(t, do(t, h, http.MethodGet, "/sessions/1/ue/DEV2/event/2/room/2", nil), &data)
	assert.Equal(t, "202", data.RoomLabel)
	assert.Empty(t, data.CurrentSupervisor)
}

func TestSupervisorOfMissingRoom(t *testing.T) {
	h := setupServer(t, auth.NewLocalState())

	rec := do(t, h, http.MethodPost, "/sessions/1/ue/WEB1/event/1/room/404/supervisor", url.Values{"supervisor": {"ABS"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"supervisor"`)
}

func TestGuardedRoutes(t *testing.T) {
	state := auth.NewState(new(gatewaytest.MockAuthenticator), auth.NewMemoryBroker(), "github")
	h := setupServer(t, state)

	for _, target := range []string{"/sessions", "/sessions/1", "/sessions/1/ue/WEB1/event/1/room/1"} {
		rec := do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, target)
		assert.Equal(t, "/", rec.Header().Get("Location"), target)
	}

	rec := do(t, h, http.MethodPost, "/sessions/1/ue/WEB1/event/1/room/1/presence/2", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	var data map[string]bool
	v := decodeView(t, do(t, h, http.MethodGet, "/", nil), &data)
	assert.Nil(t, v.User)
	assert.False(t, data["signed_in"])
	assert.True(t, data["auth_enabled"])

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/about", nil).Code)
}

func TestGuardedRouteWithExpiredSession(t *testing.T) {
	const target = "/sessions/1/ue/WEB1/event/1/room/1"
	expired := &gateway.Session{
		Token: &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-stale", Expiry: time.Now().Add(-time.Minute)},
		User:  gateway.User{ID: "u1", Email: "ada@example.org"},
	}

	start := func(t *testing.T, a *gatewaytest.MockAuthenticator) *auth.State {
		t.Helper()
		ctx := context.Background()
		broker := auth.NewMemoryBroker()
		require.NoError(t, broker.Publish(ctx, auth.Event{Kind: auth.SignedIn, Session: expired}))
		state := auth.NewState(a, broker, "github")
		require.NoError(t, state.Start(ctx))
		t.Cleanup(state.Close)
		return state
	}

	t.Run("token is refreshed before the view", func(t *testing.T) {
		a := new(gatewaytest.MockAuthenticator)
		state := start(t, a)
		fresh := &gateway.Session{
			Token: &oauth2.Token{AccessToken: "fresh", RefreshToken: "refresh-fresh", Expiry: time.Now().Add(time.Hour)},
			User:  expired.User,
		}
		a.On("Refresh", mock.Anything, "refresh-stale").Return(fresh, nil).Once()
		a.On("User", mock.Anything, "fresh").Return(&expired.User, nil).Once()

		h := setupServer(t, state)
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, target, nil).Code)
		}

		tok, err := state.Token()
		require.NoError(t, err)
		assert.Equal(t, "fresh", tok.AccessToken)
		a.AssertExpectations(t)
	})

	t.Run("refused refresh redirects home", func(t *testing.T) {
		a := new(gatewaytest.MockAuthenticator)
		state := start(t, a)
		a.On("Refresh", mock.Anything, "refresh-stale").
			Return(nil, gateway.NewError("refresh", "", gateway.ErrUnauthorized, errors.New("invalid refresh token"))).
			Once()

		rec := do(t, setupServer(t, state), http.MethodGet, target, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		assert.False(t, state.Known())
	})
}

func TestLogout(t *testing.T) {
	h := setupServer(t, auth.NewLocalState())

	rec := do(t, h, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Clear-Site-Data"), `"storage"`)
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, errorStatus(attendance.ErrCapacityReached))
	assert.Equal(t, http.StatusBadRequest, errorStatus(errBadParam))
	assert.Equal(t, http.StatusUnauthorized, errorStatus(gateway.NewError("select", "room", gateway.ErrUnauthorized, nil)))
	assert.Equal(t, http.StatusInternalServerError, errorStatus(assert.AnError))
}
