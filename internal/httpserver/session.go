// internal/httpserver/session.go
//
// Session tokens and the session routes.
//
// A session token is an HS256 JWT carrying the session id ("sid") plus
// iat/exp. Clients send it as `Authorization: Bearer <token>` or via the
// session cookie; the stream route also accepts `?token=` because browsers
// cannot set headers on WebSocket requests.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/oceantree/internal/game"
	"github.com/robalobadob/oceantree/internal/store"
)

const cookieName = "oceantree_session"

// ctxSessionKey is the context key type for the resolved session.
type ctxSessionKey struct{}

type session struct {
	ID      string
	Machine *game.Machine
}

func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(ctxSessionKey{}).(*session)
	return s
}

// mountSession registers POST /session and the token-gated /session routes.
func (s *Server) mountSession(r chi.Router) {
	r.Post("/session", s.handleNewSession)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession(false))
		r.Get("/session/state", s.handleState)
		r.Post("/session/place", s.handlePlace)
		r.Post("/session/reset", s.handleReset)
		r.Delete("/session", s.handleDeleteSession)
	})
}

// ------------------------------ tokens -------------------------------------

// signToken creates an HS256 JWT for session id sid.
func (s *Server) signToken(sid string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.tokenTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sid,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	ss, err := t.SignedString(s.secret)
	return ss, exp, err
}

// parseToken verifies a token and returns its session id.
func (s *Server) parseToken(tok string) (string, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !t.Valid {
		return "", errors.New("parse token: invalid")
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", errors.New("parse token: missing sid")
	}
	return sid, nil
}

// tokenFrom extracts a token from the Authorization header, the session
// cookie, or (when allowQuery) the "token" query parameter.
func tokenFrom(r *http.Request, allowQuery bool) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// requireSession enforces a valid token and injects the session into the
// request context.
func (s *Server) requireSession(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := tokenFrom(r, allowQuery)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			sid, err := s.parseToken(tok)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			m, err := s.store.Get(r.Context(), sid)
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			if err != nil {
				s.log.Error().Err(err).Str("session", sid).Msg("load session")
				writeError(w, http.StatusInternalServerError, "server_error")
				return
			}
			ctx := context.WithValue(r.Context(), ctxSessionKey{}, &session{ID: sid, Machine: m})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// ------------------------------ handlers -----------------------------------

type newSessionRes struct {
	SessionID string        `json:"sessionId"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	State     game.Snapshot `json:"state"`
}

// handleNewSession starts a fresh game and hands out its token.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	m := s.newGame()
	sid, err := s.store.Create(r.Context(), m)
	if err != nil {
		s.log.Error().Err(err).Msg("create session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	tok, exp, err := s.signToken(sid)
	if err != nil {
		_ = s.store.Delete(r.Context(), sid)
		s.log.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setSessionCookie(w, tok, exp)
	s.log.Info().Str("session", sid).Msg("session started")
	_ = json.NewEncoder(w).Encode(newSessionRes{SessionID: sid, Token: tok, ExpiresAt: exp, State: m.State()})
}

// handleState returns the current snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(sessionFrom(r.Context()).Machine.State())
}

type placeReq struct {
	NodeID    string `json:"nodeId"`
	SpeciesID string `json:"speciesId"`
}

type placeRes struct {
	Accepted bool          `json:"accepted"`
	Correct  bool          `json:"correct"`
	State    game.Snapshot `json:"state"`
}

// handlePlace applies one placement attempt. Unknown nodes, unknown species
// and occupied nodes come back as accepted=false.
func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess := sessionFrom(r.Context())
	res := sess.Machine.AttemptPlacement(req.NodeID, req.SpeciesID)
	if res.Accepted {
		s.log.Debug().
			Str("session", sess.ID).
			Str("node", req.NodeID).
			Str("species", req.SpeciesID).
			Bool("correct", res.Correct).
			Msg("place")
	}
	_ = json.NewEncoder(w).Encode(placeRes{Accepted: res.Accepted, Correct: res.Correct, State: sess.Machine.State()})
}

// handleReset restarts the session's game.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	m := sessionFrom(r.Context()).Machine
	m.Reset()
	_ = json.NewEncoder(w).Encode(map[string]any{"state": m.State()})
}

// handleDeleteSession drops the session and clears the cookie.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	s.clearSessionCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
