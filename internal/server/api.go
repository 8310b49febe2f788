package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"atmdapp/internal/dapp"
	"atmdapp/internal/hmacauth"
)

type txRequest struct {
	Amount string `json:"amount"`
}

type txResponse struct {
	Success bool      `json:"success"`
	Kind    string    `json:"kind"`
	Amount  string    `json:"amount"`
	Message string    `json:"message"`
	TxHash  string    `json:"txHash,omitempty"`
	State   stateView `json:"state"`
}

type errorResponse struct {
	Error string    `json:"error"`
	State stateView `json:"state"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := s.ensureBalance(r.Context(), s.session(r))
	writeJSON(w, http.StatusOK, s.view(st))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	sess := s.session(r)
	st := s.connect(ctx, sess)

	switch st.Region() {
	case dapp.RegionDashboard:
		st = s.ensureBalance(ctx, sess)
		writeJSON(w, http.StatusOK, s.view(st))
	case dapp.RegionInstallWallet:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "no wallet available", State: s.view(st)})
	default:
		writeJSON(w, http.StatusForbidden, errorResponse{Error: st.ConnectError, State: s.view(st)})
	}
}

// handleTx runs a deposit or withdrawal. An X-Idempotency-Key header makes
// retries of the same request replay the recorded response.
func (s *Server) handleTx(kind dapp.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var payload txRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json payload", http.StatusBadRequest)
			return
		}

		amount := s.defaultAmount(kind)
		if payload.Amount != "" {
			parsed, err := parseAmount(payload.Amount)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			amount = parsed
		}

		var key string
		if raw := strings.TrimSpace(r.Header.Get("X-Idempotency-Key")); raw != "" {
			key = "api:" + string(kind) + ":" + raw
		}

		sid, sess := hmacauth.SessionID(r.Context()), s.session(r)
		rec, replayed, err := s.transact(r.Context(), sid, sess, kind, amount, key, func(res dapp.TxResult, st dapp.State) (int, []byte) {
			status := http.StatusOK
			if !res.Success {
				status = http.StatusBadGateway
			}
			body, _ := json.Marshal(txResponse{
				Success: res.Success,
				Kind:    string(kind),
				Amount:  amount.String(),
				Message: res.Message,
				TxHash:  res.TxHash,
				State:   s.view(st),
			})
			return status, body
		})
		switch {
		case errors.Is(err, errNotConnected):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), State: s.view(sess.State())})
			return
		case errors.Is(err, errInFlight):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if replayed {
			w.Header().Set("Idempotent-Replayed", "true")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Response)
	}
}
