package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ticketTTL is how long a WebSocket ticket stays valid after issue.
const ticketTTL = 60 * time.Second

// ticketCleanInterval is how often expired tickets are swept.
const ticketCleanInterval = time.Minute

// ticketStore holds short-lived, single-use WebSocket upgrade tickets.
//
// Browsers cannot set an Authorization header on a WebSocket upgrade, so an
// authenticated client first exchanges its bearer token for a ticket and
// passes that as a query parameter instead.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticket
}

type ticket struct {
	subject string
	expires time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticket)}
}

// issue creates a ticket bound to the given token subject.
func (ts *ticketStore) issue(subject string) (string, time.Time) {
	id := uuid.NewString()
	expires := time.Now().Add(ticketTTL)

	ts.mu.Lock()
	ts.tickets[id] = ticket{subject: subject, expires: expires}
	ts.mu.Unlock()

	return id, expires
}

// redeem validates and consumes a ticket. Tickets are single-use; a second
// redemption of the same ticket fails even inside the TTL.
func (ts *ticketStore) redeem(id string) (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	tk, ok := ts.tickets[id]
	if !ok {
		return "", false
	}
	delete(ts.tickets, id)

	if time.Now().After(tk.expires) {
		return "", false
	}
	return tk.subject, true
}

// cleanLoop sweeps expired tickets until the context is cancelled. Redeemed
// tickets are deleted inline; this catches the ones never redeemed.
func (ts *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketCleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			ts.mu.Lock()
			for id, tk := range ts.tickets {
				if now.After(tk.expires) {
					delete(ts.tickets, id)
				}
			}
			ts.mu.Unlock()
		}
	}
}

// tokenRequest is the device-key credential exchange payload.
type tokenRequest struct {
	DeviceKey string `json:"device_key"`
	DeviceID  string `json:"device_id"`
}

// tokenResponse carries the issued bearer token.
type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleToken exchanges the shared device key for a signed bearer token.
//
// POST /api/v1/auth/token
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.DeviceKey), []byte(s.secCfg.DeviceKey)) != 1 {
		s.logger.Warn("token request with bad device key", "device_id", req.DeviceID)
		writeUnauthorized(w, "invalid device key")
		return
	}

	ttl := time.Duration(s.secCfg.JWT.TokenTTL) * time.Minute
	now := time.Now()
	expires := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub": req.DeviceID,
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secCfg.JWT.Secret))
	if err != nil {
		s.logger.Error("signing token", "error", err)
		writeInternalError(w, "failed to issue token")
		return
	}

	s.logger.Info("token issued", "device_id", req.DeviceID, "expires_at", expires)
	writeJSON(w, http.StatusOK, tokenResponse{Token: signed, ExpiresAt: expires})
}

// wsTicketResponse carries a single-use WebSocket upgrade ticket.
type wsTicketResponse struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleWSTicket issues a single-use WebSocket ticket for the authenticated
// caller.
//
// POST /api/v1/auth/ws-ticket
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	subject, _ := r.Context().Value(ctxKeySubject).(string)

	id, expires := s.tickets.issue(subject)
	writeJSON(w, http.StatusOK, wsTicketResponse{Ticket: id, ExpiresAt: expires})
}
