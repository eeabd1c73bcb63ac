package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/auth"
	"github.com/shrimpsizemoose/attendo/internal/nav"
)

const callbackPath = "/auth/callback"

func (h *Handler) callbackURL(r *http.Request) string {
	if base := h.service.Config.Server.PublicURL; base != "" {
		return strings.TrimRight(base, "/") + callbackPath
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + callbackPath
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.Auth.Enabled() {
		http.Redirect(w, r, nav.Sessions.Path, http.StatusSeeOther)
		return
	}

	authURL, err := h.service.Auth.Login(h.callbackURL(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if msg := q.Get("error_description"); msg != "" {
		logger.Info.Printf("Sign-in refused by provider: %s", msg)
		http.Redirect(w, r, nav.Home.Path, http.StatusSeeOther)
		return
	}

	_, err := h.service.Auth.CompleteLogin(r.Context(), q.Get("state"), q.Get("code"))
	if errors.Is(err, auth.ErrUnknownState) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, nav.Sessions.Path, http.StatusSeeOther)
}

// HandleLogout drops the session and has the browser discard everything it
// kept for this origin so the next page is a full reload.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Auth.Logout(r.Context()); err != nil {
		logger.Error.Printf("Logout: %v", err)
	}
	w.Header().Set("Clear-Site-Data", `"cache", "cookies", "storage"`)
	http.Redirect(w, r, nav.Home.Path, http.StatusSeeOther)
}
