package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/movegate/internal/actions"
	"github.com/tjfontaine/movegate/internal/core/domain"
)

// maxBodyBytes bounds action input size.
const maxBodyBytes = 1 << 20

type actionHandler struct {
	registry      *actions.Registry
	cookieName    string
	secureCookies bool
}

func (h *actionHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *actionHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"actions": h.registry.Names()})
}

// invoke runs one action. The response status follows the outcome: 200 for
// success, 303 with a Location header for a redirect, and the classified
// status for a failure.
func (h *actionHandler) invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	AddLogField(r.Context(), "action", name)

	endpoint, ok := h.registry.Get(name)
	if !ok {
		writeServerError(w, http.StatusNotFound, "Unknown action: "+name)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		AddError(r.Context(), err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServerError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeServerError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	result := endpoint.Invoke(r.Context(), GetCredential(r.Context()), json.RawMessage(body))
	AddLogField(r.Context(), "outcome", string(result.Outcome))

	switch result.Outcome {
	case domain.OutcomeSuccess:
		if out, ok := result.Data.(*actions.SignInOutput); ok && out.UsesCookie() {
			h.setSessionCookie(w, out.Token, out.ExpiresAt)
		}
		writeJSON(w, http.StatusOK, result)
	case domain.OutcomeRedirect:
		w.Header().Set("Location", result.RedirectTo)
		writeJSON(w, http.StatusSeeOther, result)
	default:
		AddLogField(r.Context(), "error_kind", string(result.Error.Kind))
		writeJSON(w, result.Error.HTTPStatusCode(), result)
	}
}

func (h *actionHandler) signOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, domain.Success(nil))
}

func (h *actionHandler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeServerError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"serverError": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.String("error", err.Error()))
	}
}
