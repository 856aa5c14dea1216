// Package auth orchestrates sign-up, sign-in, token refresh, and session
// introspection: sanitize, validate, rate-limit, call the identity
// provider, then mint or update the session. Every non-validation outcome
// leaves an audit trail.
package auth

import (
	"context"
	"strings"
	"time"

	"classgate.org/internal/audit"
	"classgate.org/internal/identity"
	"classgate.org/internal/obs"
	"classgate.org/internal/ratelimit"
	"classgate.org/internal/sanitize"
	"classgate.org/internal/session"
)

// Roles known to the LMS.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

const resourceAuth = "auth"

// Provider is the slice of the identity provider this orchestrator needs.
// *identity.Client satisfies it.
type Provider interface {
	Register(ctx context.Context, req identity.RegisterRequest) (*identity.AuthResult, error)
	Login(ctx context.Context, req identity.LoginRequest) (*identity.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.TokenPair, error)
	Me(ctx context.Context, accessToken string) (*identity.Account, error)
}

// RequestMeta carries per-request client attributes used for rate-limit
// keys and audit entries. A nil meta skips rate limiting entirely.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// SignUpRequest is the raw, unsanitized sign-up input.
type SignUpRequest struct {
	Email      string
	Password   string
	Role       string
	FirstName  string
	MiddleName string
	LastName   string
}

// SignInRequest is the raw, unsanitized sign-in input.
type SignInRequest struct {
	Email    string
	Password string
}

// Service composes the security subsystem. Construct one per process and
// share it between requests; all mutable state lives in the injected stores.
type Service struct {
	provider Provider
	limits   *ratelimit.Store
	audit    *audit.Store
	secure   bool
	now      func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithSecureCookies marks session cookies Secure (production).
func WithSecureCookies(secure bool) Option {
	return func(s *Service) { s.secure = secure }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the orchestrator to its collaborators.
func NewService(provider Provider, limits *ratelimit.Store, auditLog *audit.Store, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		limits:   limits,
		audit:    auditLog,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUpKey builds the rate-limit identifier for registrations from an IP.
func SignUpKey(ip string) string { return "signup:" + ip }

// SignInKey buckets sign-in attempts per IP and email so one client cannot
// exhaust another's budget.
func SignInKey(ip, email string) string { return "signin:" + ip + ":" + email }

// SignUp registers a new account and mints a session on success.
func (s *Service) SignUp(ctx context.Context, jar session.Jar, req SignUpRequest, meta *RequestMeta) (*session.User, error) {
	email := sanitize.Email(req.Email)
	firstName := sanitize.String(req.FirstName)
	middleName := sanitize.String(req.MiddleName)
	lastName := sanitize.String(req.LastName)
	role := strings.ToLower(sanitize.String(req.Role))
	if role == "" {
		role = RoleStudent
	}

	verr := newValidationError()
	if !sanitize.ValidEmail(email) {
		verr.add("email", "a valid email address is required")
	}
	if check := sanitize.CheckPassword(req.Password); !check.Valid {
		verr.add("password", check.Errors...)
	}
	if firstName == "" {
		verr.add("firstName", "first name is required")
	}
	if lastName == "" {
		verr.add("lastName", "last name is required")
	}
	if !validRole(role) {
		verr.add("role", "role must be student, teacher, or admin")
	}
	if !verr.empty() {
		obs.ObserveAuthAttempt("signup", "validation_failed")
		return nil, verr
	}

	if meta != nil {
		key := SignUpKey(meta.IP)
		if !s.limits.Allow(key) {
			s.logAudit(ctx, meta, audit.Entry{
				Action:   audit.ActionSignUpRateLimited,
				Resource: resourceAuth,
				Details:  map[string]string{"email": email, "identifier": key},
			})
			obs.ObserveAuthAttempt("signup", "rate_limited")
			return nil, ErrRateLimited
		}
	}

	res, err := s.provider.Register(ctx, identity.RegisterRequest{
		Email:      email,
		Password:   req.Password,
		Role:       role,
		FirstName:  firstName,
		MiddleName: middleName,
		LastName:   lastName,
	})
	if err != nil {
		s.logAudit(ctx, meta, audit.Entry{
			Action:   audit.ActionSignUpFailed,
			Resource: resourceAuth,
			Details:  map[string]string{"email": email, "error": err.Error()},
		})
		obs.ObserveAuthAttempt("signup", "failed")
		return nil, err
	}

	payload := session.Payload{
		User:         accountToUser(res.User),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
	if err := s.sessionStore(jar).Create(payload); err != nil {
		s.logAudit(ctx, meta, audit.Entry{
			UserID:   res.User.ID,
			Action:   audit.ActionSignUpFailed,
			Resource: resourceAuth,
			Details:  map[string]string{"email": email, "error": err.Error()},
		})
		obs.ObserveAuthAttempt("signup", "failed")
		return nil, err
	}

	s.logAudit(ctx, meta, audit.Entry{
		UserID:   res.User.ID,
		Action:   audit.ActionSignUpSuccess,
		Resource: resourceAuth,
		Success:  true,
		Details:  map[string]string{"email": email},
	})
	obs.ObserveAuthAttempt("signup", "success")
	return &payload.User, nil
}

// SignIn authenticates credentials and mints a session on success.
// Successful authentication clears the identifier's failed-attempt counter.
func (s *Service) SignIn(ctx context.Context, jar session.Jar, req SignInRequest, meta *RequestMeta) (*session.User, error) {
	email := sanitize.Email(req.Email)

	verr := newValidationError()
	if !sanitize.ValidEmail(email) {
		verr.add("email", "a valid email address is required")
	}
	if req.Password == "" {
		verr.add("password", "password is required")
	}
	if !verr.empty() {
		obs.ObserveAuthAttempt("signin", "validation_failed")
		return nil, verr
	}

	var key string
	if meta != nil {
		key = SignInKey(meta.IP, email)
		if !s.limits.Allow(key) {
			s.logAudit(ctx, meta, audit.Entry{
				Action:   audit.ActionSignInRateLimited,
				Resource: resourceAuth,
				Details:  map[string]string{"email": email, "identifier": key},
			})
			obs.ObserveAuthAttempt("signin", "rate_limited")
			return nil, ErrRateLimited
		}
	}

	res, err := s.provider.Login(ctx, identity.LoginRequest{Email: email, Password: req.Password})
	if err != nil {
		s.logAudit(ctx, meta, audit.Entry{
			Action:   audit.ActionSignInFailed,
			Resource: resourceAuth,
			Details:  map[string]string{"email": email, "error": err.Error()},
		})
		obs.ObserveAuthAttempt("signin", "failed")
		return nil, err
	}

	payload := session.Payload{
		User:         accountToUser(res.User),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
	if err := s.sessionStore(jar).Create(payload); err != nil {
		s.logAudit(ctx, meta, audit.Entry{
			UserID:   res.User.ID,
			Action:   audit.ActionSignInFailed,
			Resource: resourceAuth,
			Details:  map[string]string{"email": email, "error": err.Error()},
		})
		obs.ObserveAuthAttempt("signin", "failed")
		return nil, err
	}

	if key != "" {
		s.limits.Reset(key)
	}
	s.logAudit(ctx, meta, audit.Entry{
		UserID:   res.User.ID,
		Action:   audit.ActionSignInSuccess,
		Resource: resourceAuth,
		Success:  true,
		Details:  map[string]string{"email": email},
	})
	obs.ObserveAuthAttempt("signin", "success")
	return &payload.User, nil
}

// RefreshToken exchanges the refresh token at the provider and replaces the
// session's token fields in place. The user block never changes here.
func (s *Service) RefreshToken(ctx context.Context, jar session.Jar, refreshToken string, meta *RequestMeta) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		verr := newValidationError()
		verr.add("refresh_token", "refresh token is required")
		return verr
	}

	store := s.sessionStore(jar)
	var userID string
	if current := store.Get(); current != nil {
		userID = current.User.ID
	}

	pair, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		s.logAudit(ctx, meta, audit.Entry{
			UserID:   userID,
			Action:   audit.ActionTokenRefreshFailed,
			Resource: resourceAuth,
			Details:  map[string]string{"error": err.Error()},
		})
		obs.ObserveAuthAttempt("refresh", "failed")
		return err
	}

	if err := store.UpdateToken(pair.AccessToken, pair.RefreshToken); err != nil {
		s.logAudit(ctx, meta, audit.Entry{
			UserID:   userID,
			Action:   audit.ActionTokenRefreshFailed,
			Resource: resourceAuth,
			Details:  map[string]string{"error": err.Error()},
		})
		obs.ObserveAuthAttempt("refresh", "failed")
		return err
	}

	s.logAudit(ctx, meta, audit.Entry{
		UserID:   userID,
		Action:   audit.ActionTokenRefreshed,
		Resource: resourceAuth,
		Success:  true,
	})
	obs.ObserveAuthAttempt("refresh", "success")
	return nil
}

// CurrentUser resolves the account behind the current session. Absent or
// unusable sessions, and provider errors, all read as "no user".
func (s *Service) CurrentUser(ctx context.Context, jar session.Jar) *identity.Account {
	payload := s.sessionStore(jar).Get()
	if payload == nil {
		return nil
	}
	account, err := s.provider.Me(ctx, payload.AccessToken)
	if err != nil {
		return nil
	}
	return account
}

// SignOut deletes the session cookie and records the event. Idempotent.
func (s *Service) SignOut(ctx context.Context, jar session.Jar, meta *RequestMeta) {
	store := s.sessionStore(jar)
	var userID string
	if current := store.Get(); current != nil {
		userID = current.User.ID
	}
	store.Delete()
	s.logAudit(ctx, meta, audit.Entry{
		UserID:   userID,
		Action:   audit.ActionSessionDeleted,
		Resource: "session",
		Success:  true,
	})
}

func (s *Service) sessionStore(jar session.Jar) *session.Store {
	return session.NewStore(jar, session.WithSecure(s.secure), session.WithClock(s.now))
}

// logAudit records the entry enriched with client attributes. Auditing must
// never fail the request; the store guarantees that.
func (s *Service) logAudit(ctx context.Context, meta *RequestMeta, entry audit.Entry) {
	if meta != nil {
		entry.IP = meta.IP
		entry.UserAgent = meta.UserAgent
	}
	s.audit.Log(ctx, entry)
}

func accountToUser(a identity.Account) session.User {
	return session.User{
		ID:         a.ID,
		Email:      a.Email,
		Role:       a.Role,
		FirstName:  a.FirstName,
		MiddleName: a.MiddleName,
		LastName:   a.LastName,
	}
}

func validRole(role string) bool {
	switch role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}
