package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/providers"
	"github.com/swappilot/quoterank/internal/receipt"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// handleQuotes runs the full ranking decision for a quote request.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if err := validateRequest(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	decision, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

func validateRequest(req domain.QuoteRequest) error {
	if req.ChainID <= 0 {
		return errors.New("chainId must be positive")
	}
	if req.SellToken == "" || req.BuyToken == "" {
		return errors.New("sellToken and buyToken are required")
	}
	if _, err := domain.ParseAmount(req.SellAmount); err != nil {
		return errors.New("sellAmount must be a non-negative integer string")
	}
	if req.SlippageBps < 0 || req.SlippageBps > 10000 {
		return errors.New("slippageBps out of range")
	}
	if _, err := domain.ParseMode(string(req.Mode)); err != nil {
		return err
	}
	return nil
}

// handleReceipt returns a persisted decision receipt.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rcpt, err := s.receipts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, receipt.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "no receipt with that id")
			return
		}
		s.log.Error().Err(err).Str("receipt_id", id).Msg("receipt lookup failed")
		s.writeError(w, http.StatusInternalServerError, "internal_error", "receipt lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, rcpt)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleProviderHealth reports the runtime health of every observed
// provider.
func (s *Server) handleProviderHealth(w http.ResponseWriter, _ *http.Request) {
	snapshot := []providers.ProviderHealth{}
	if s.health != nil {
		snapshot = s.health.Snapshot()
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"providers": snapshot})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "not_found", "unknown route: "+r.URL.Path)
}
