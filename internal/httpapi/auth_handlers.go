package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"classgate.org/internal/auth"
	"classgate.org/internal/identity"
	"classgate.org/internal/ratelimit"
	"classgate.org/internal/session"
)

type signUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role,omitempty"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

func requestMeta(r *http.Request) *auth.RequestMeta {
	return &auth.RequestMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	jar := session.NewHTTPJar(w, r)
	user, err := a.auth.SignUp(r.Context(), jar, auth.SignUpRequest{
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
	}, requestMeta(r))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	jar := session.NewHTTPJar(w, r)
	user, err := a.auth.SignIn(r.Context(), jar, auth.SignInRequest{
		Email:    req.Email,
		Password: req.Password,
	}, requestMeta(r))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleRefresh rotates the session's token pair. The token may come from
// the body; absent that, the one stored in the session cookie is used.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errBodyRequired) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	jar := session.NewHTTPJar(w, r)
	token := req.RefreshToken
	if token == "" {
		if current := session.NewStore(jar).Get(); current != nil {
			token = current.RefreshToken
		}
	}

	if err := a.auth.RefreshToken(r.Context(), jar, token, requestMeta(r)); err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	jar := session.NewHTTPJar(w, r)
	account := a.auth.CurrentUser(r.Context(), jar)
	if account == nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": account})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	jar := session.NewHTTPJar(w, r)
	a.auth.SignOut(r.Context(), jar, requestMeta(r))
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

// writeAuthError maps service errors onto the response. Validation detail
// goes back to the client; everything unexpected collapses to a 500 with no
// internals leaked.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	var provErr *identity.ProviderError
	switch {
	case errors.As(err, &verr):
		payload := map[string]any{
			"error":  "invalid input",
			"fields": verr.Fields,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, auth.ErrRateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(ratelimit.DefaultWindow.Seconds())))
		writeError(w, r, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.As(err, &provErr):
		status := provErr.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		writeError(w, r, status, provErr.Message)
	case errors.Is(err, session.ErrNoSession):
		writeError(w, r, http.StatusUnauthorized, "no active session")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
