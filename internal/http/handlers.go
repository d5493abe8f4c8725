package http

import (
	"context"
	"net/http"
	"time"

	"umkm/internal/core"
	applog "umkm/internal/log"
	"umkm/internal/session"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.deps.Ready != nil {
		if err := s.deps.Ready(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	} else {
		checks["backend"] = "not_configured"
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":          status,
		"checks":          checks,
		"active_sessions": s.deps.Sessions.Active(),
	}).Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	reg, err := parseRegistration(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.deps.Auth.Register(r.Context(), reg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).Info("UMKM registered",
		applog.NewFields().WithOperation(applog.OpRegister).WithUMKM(profile.ID).ToSlice()...)

	msg := "registration received, waiting for approval"
	if profile.Status == core.StatusApproved {
		msg = "registration complete"
	}
	NewResponse().Status(http.StatusCreated).JSON(map[string]any{
		"message": msg,
		"umkm":    profile,
	}).Write(w)
}

// handleLogin accepts JSON or a form post from the page. Form posts are
// redirected back to the page instead of receiving JSON.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, isForm, err := parseCredentials(w, r)
	if err == nil {
		var res core.LoginResult
		res, err = s.deps.Auth.Login(r.Context(), creds)
		if err == nil {
			_, err = s.deps.Sessions.Begin(r.Context(), res)
		}
		if err == nil {
			s.setSessionCookie(w, res.Token)
			applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).Info("UMKM logged in",
				applog.NewFields().WithOperation(applog.OpLogin).WithUMKM(res.Profile.ID).ToSlice()...)
			if isForm {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			NewResponse().JSON(res).Write(w)
			return
		}
	}

	if isForm {
		http.Redirect(w, r, "/?login=failed", http.StatusSeeOther)
		return
	}
	s.writeError(w, r, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := session.TokenFromRequest(r); token != "" {
		s.deps.Sessions.End(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if isFormPost(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewResponse().JSON(map[string]string{"message": "logged out"}).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	_, sess, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(sess.Profile).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Categories.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewResponse().JSON(cats).Write(w)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.deps.Profiles.GetProfile(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(profile).Write(w)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := parseProfile(w, r, p.UMKMID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.deps.Profiles.UpdateProfile(r.Context(), p, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.deps.Sessions.Refresh(p.Token, updated)
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.deps.Sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func isFormPost(r *http.Request) bool {
	return r.Header.Get("Content-Type") == "application/x-www-form-urlencoded"
}
