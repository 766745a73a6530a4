package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/NordCoder/campauth/internal/domain/user"
	"github.com/NordCoder/campauth/internal/obs"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	tokenType       = "Bearer"
	maxBodyBytes    = 1 << 20
	msgBadRefresh   = "invalid or expired refresh token"
	msgInternal     = "internal server error"
	msgLoggedOut    = "Logged out successfully."
	msgLoggedOutAll = "Logged out from all devices successfully."
	msgRegistered   = "Coordinator registered successfully."
)

type Server struct {
	uc      *Usecase
	cookies *CookieManager
	log     *zap.Logger
}

type Opts struct {
	Logger *zap.Logger
	Cookie CookieConfig
}

func NewServer(uc *Usecase, o Opts) *Server {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{uc: uc, cookies: NewCookieManager(o.Cookie), log: log}
}

// Routes mounts the /auth endpoints. The Authenticator middleware must run
// before them.
func (s *Server) Routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Post("/refresh", s.refresh)
		r.Post("/logout", s.logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity)
			r.Post("/logout-all", s.logoutAll)
			r.Get("/me", s.me)
		})
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	District  string `json:"district"`
	Phone     string `json:"phone"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

type messageResponse struct {
	Message string `json:"message"`
	Revoked *int64 `json:"revoked,omitempty"`
}

type errorResponse struct {
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req, false); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	res, err := s.uc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	s.cookies.Set(w, res.RefreshToken)
	roles := res.User.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   tokenType,
		Username:    res.User.Email,
		Authorities: roles,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	_, err := s.uc.Register(r.Context(), RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		District:  req.District,
		Phone:     req.Phone,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: msgRegistered})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := s.uc.Refresh(r.Context(), s.cookies.Read(r, req.RefreshToken))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	s.cookies.Set(w, res.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: res.AccessToken, TokenType: tokenType})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.uc.Logout(r.Context(), s.cookies.Read(r, req.RefreshToken)); err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.cookies.Clear(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	n, err := s.uc.LogoutAll(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.cookies.Clear(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOutAll, Revoked: &n})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	acc, err := s.uc.Me(r.Context(), id.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, domainauth.ErrInvalidCredentials.Error())
	case errors.Is(err, domainauth.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domainauth.ErrNoRefreshProvided):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domainauth.ErrRefreshNotFound),
		errors.Is(err, domainauth.ErrRefreshRevoked),
		errors.Is(err, domainauth.ErrRefreshExpired):
		obs.WithTrace(r.Context(), s.log).Debug("refresh rejected", zap.Error(err))
		writeError(w, http.StatusUnauthorized, msgBadRefresh)
	case errors.Is(err, ErrEmailExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		obs.WithTrace(r.Context(), s.log).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// decodeBody reads a JSON body. With optional set an empty body is accepted.
func decodeBody(r *http.Request, v any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return io.EOF
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Status: code, Message: msg, Timestamp: time.Now().UTC()})
}
