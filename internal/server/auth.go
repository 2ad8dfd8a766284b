package server

import (
	"net/http"
	"strings"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type loginStatus struct {
	LoggedIn bool `json:"loggedIn"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, successResponse{Success: false})
		return
	}

	token, err := s.sessions.Login(req.Username, req.Password)
	if err != nil {
		s.metrics.LoginAttempt(false)
		s.log.Warn("auth.login.fail", "request_id", RequestID(r.Context()), "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, successResponse{Success: false})
		return
	}

	s.metrics.LoginAttempt(true)
	s.log.Info("auth.login.ok", "request_id", RequestID(r.Context()))
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := s.sessionToken(r); ok {
		s.sessions.Logout(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleCheckLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, loginStatus{LoggedIn: s.loggedIn(r)})
}

func (s *Server) sessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}

func (s *Server) loggedIn(r *http.Request) bool {
	token, ok := s.sessionToken(r)
	return ok && s.sessions.IsValid(token)
}
