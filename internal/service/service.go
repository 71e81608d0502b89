// Package service provides the HTTP surface of the settlement engine:
// match lifecycle operations, read queries, price quotes, and the WebSocket
// event feed.
package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/goalpost/settlement-engine/internal/auth"
	"github.com/goalpost/settlement-engine/internal/curve"
	"github.com/goalpost/settlement-engine/internal/engine"
	"github.com/goalpost/settlement-engine/internal/model"
	"github.com/goalpost/settlement-engine/internal/settlement"
	"github.com/goalpost/settlement-engine/internal/store"
)

// Service handles HTTP requests and dispatches them to the engine.
type Service struct {
	engine *engine.Engine
}

// NewService creates the HTTP service around an engine.
func NewService(eng *engine.Engine) *Service {
	return &Service{engine: eng}
}

// Routes mounts all API routes on r. Mutating routes require a caller
// identity.
func (s *Service) Routes(r chi.Router) {
	r.Get("/matches", s.ListMatches)
	r.Get("/matches/{matchID}", s.GetMatch)
	r.Get("/matches/{matchID}/quote", s.GetQuote)
	r.Get("/matches/{matchID}/positions/{participantID}", s.GetPosition)

	r.Group(func(r chi.Router) {
		r.Use(Identity)
		r.Post("/matches", s.CreateMatch)
		r.Post("/matches/{matchID}/start", s.StartGame)
		r.Post("/matches/{matchID}/deposit", s.Deposit)
		r.Post("/matches/{matchID}/score", s.UpdateScore)
		r.Post("/matches/{matchID}/end", s.EndGame)
		r.Post("/matches/{matchID}/claim", s.ClaimRewards)
	})
}

// --- Request/Response types ---

// CreateMatchRequest is the JSON body for match initialization. The caller
// identity becomes the match admin.
type CreateMatchRequest struct {
	MatchID          string `json:"match_id"`
	OracleIdentity   string `json:"oracle_identity"`
	InitialLiquidity uint64 `json:"initial_liquidity"`
	OutcomeAName     string `json:"outcome_a"`
	OutcomeBName     string `json:"outcome_b"`
}

// DepositRequest is the JSON body for deposits. Side must equal one of the
// match's outcome names exactly.
type DepositRequest struct {
	Amount uint64 `json:"amount"`
	Side   string `json:"side"`
}

// DepositResponse reports the minted shares and updated position.
type DepositResponse struct {
	MatchID  string `json:"match_id"`
	Side     string `json:"side"`
	Amount   uint64 `json:"amount"`
	Minted   uint64 `json:"minted_shares"`
	Position struct {
		SharesA   uint64 `json:"shares_a"`
		SharesB   uint64 `json:"shares_b"`
		Deposited uint64 `json:"deposited"`
	} `json:"position"`
}

// UpdateScoreRequest is the JSON body for oracle score reports.
type UpdateScoreRequest struct {
	ScoreA uint32 `json:"score_a"`
	ScoreB uint32 `json:"score_b"`
}

// ClaimResponse reports the settled payout.
type ClaimResponse struct {
	MatchID string `json:"match_id"`
	Winner  string `json:"winner"`
	Payout  uint64 `json:"payout"`
}

// QuoteResponse is the informational pricing view of a live match.
type QuoteResponse struct {
	MatchID             string          `json:"match_id"`
	ImpliedProbabilityA decimal.Decimal `json:"implied_probability_a"`
	ImpliedProbabilityB decimal.Decimal `json:"implied_probability_b"`
	SharesPerUnitA      decimal.Decimal `json:"shares_per_unit_a"`
	SharesPerUnitB      decimal.Decimal `json:"shares_per_unit_b"`
}

// --- Handlers ---

// CreateMatch handles POST /api/v1/matches
func (s *Service) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "BadRequest", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MatchID == "" {
		writeError(w, "BadRequest", "match_id is required", http.StatusBadRequest)
		return
	}

	m, err := s.engine.Initialize(r.Context(), engine.InitializeParams{
		MatchID:          req.MatchID,
		Caller:           callerFrom(r.Context()),
		OracleIdentity:   req.OracleIdentity,
		InitialLiquidity: req.InitialLiquidity,
		OutcomeAName:     req.OutcomeAName,
		OutcomeBName:     req.OutcomeBName,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// StartGame handles POST /api/v1/matches/{matchID}/start
func (s *Service) StartGame(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.StartGame(r.Context(), chi.URLParam(r, "matchID"), callerFrom(r.Context()))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Deposit handles POST /api/v1/matches/{matchID}/deposit
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "BadRequest", "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.engine.Deposit(r.Context(), chi.URLParam(r, "matchID"),
		callerFrom(r.Context()), req.Amount, req.Side)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var resp DepositResponse
	resp.MatchID = res.Match.MatchID
	resp.Side = req.Side
	resp.Amount = req.Amount
	resp.Minted = res.Minted
	resp.Position.SharesA = res.Position.SharesA
	resp.Position.SharesB = res.Position.SharesB
	resp.Position.Deposited = res.Position.Deposited
	writeJSON(w, http.StatusOK, resp)
}

// UpdateScore handles POST /api/v1/matches/{matchID}/score
func (s *Service) UpdateScore(w http.ResponseWriter, r *http.Request) {
	var req UpdateScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "BadRequest", "invalid request body", http.StatusBadRequest)
		return
	}

	m, err := s.engine.UpdateScore(r.Context(), chi.URLParam(r, "matchID"),
		callerFrom(r.Context()), req.ScoreA, req.ScoreB)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// EndGame handles POST /api/v1/matches/{matchID}/end
func (s *Service) EndGame(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.EndGame(r.Context(), chi.URLParam(r, "matchID"), callerFrom(r.Context()))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ClaimRewards handles POST /api/v1/matches/{matchID}/claim
func (s *Service) ClaimRewards(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ClaimRewards(r.Context(), chi.URLParam(r, "matchID"), callerFrom(r.Context()))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClaimResponse{
		MatchID: res.Match.MatchID,
		Winner:  string(res.Winner),
		Payout:  res.Payout,
	})
}

// GetMatch handles GET /api/v1/matches/{matchID}
func (s *Service) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Store().GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMatches handles GET /api/v1/matches
func (s *Service) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.engine.Store().ListMatches(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if matches == nil {
		matches = []model.MatchState{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// GetQuote handles GET /api/v1/matches/{matchID}/quote
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Store().GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, QuoteResponse{
		MatchID:             m.MatchID,
		ImpliedProbabilityA: curve.ImpliedProbability(m.VirtualReserveA, m.VirtualReserveB),
		ImpliedProbabilityB: curve.ImpliedProbability(m.VirtualReserveB, m.VirtualReserveA),
		SharesPerUnitA:      curve.SharesPerUnit(m.VirtualReserveA, m.VirtualReserveB),
		SharesPerUnitB:      curve.SharesPerUnit(m.VirtualReserveB, m.VirtualReserveA),
	})
}

// GetPosition handles GET /api/v1/matches/{matchID}/positions/{participantID}
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Store().GetPosition(r.Context(),
		chi.URLParam(r, "matchID"), chi.URLParam(r, "participantID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Error mapping ---

// codeOf maps an engine error to its caller-facing code and HTTP status.
func codeOf(err error) (string, int) {
	switch {
	case errors.Is(err, store.ErrMatchExists):
		return "AlreadyInitialized", http.StatusConflict
	case errors.Is(err, store.ErrMatchNotFound):
		return "MatchNotFound", http.StatusNotFound
	case errors.Is(err, store.ErrPositionNotFound):
		return "PositionNotFound", http.StatusNotFound
	case errors.Is(err, auth.ErrUnauthorizedAdmin):
		return "UnauthorizedAdmin", http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthorizedOracle):
		return "UnauthorizedOracle", http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidTeamName):
		return "InvalidTeamName", http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, curve.ErrZeroAmount):
		return "InvalidAmount", http.StatusBadRequest
	case errors.Is(err, curve.ErrInvalidLiquidity):
		return "InvalidLiquidity", http.StatusBadRequest
	case errors.Is(err, engine.ErrMatchNotLiveYet):
		return "MatchNotLiveYet", http.StatusConflict
	case errors.Is(err, engine.ErrMatchNotEndedYet):
		return "MatchNotEndedYet", http.StatusConflict
	case errors.Is(err, engine.ErrMatchAlreadyStarted):
		return "MatchAlreadyStarted", http.StatusConflict
	case errors.Is(err, engine.ErrMatchAlreadyEnded):
		return "MatchAlreadyEnded", http.StatusConflict
	case errors.Is(err, engine.ErrScoreCannotDecrease):
		return "ScoreCannotDecrease", http.StatusBadRequest
	case errors.Is(err, engine.ErrScoreTooHigh):
		return "ScoreTooHigh", http.StatusBadRequest
	case errors.Is(err, engine.ErrNoScoreChange):
		return "NoScoreChange", http.StatusBadRequest
	case errors.Is(err, curve.ErrOverflow), errors.Is(err, settlement.ErrOverflow):
		return "ArithmeticOverflow", http.StatusUnprocessableEntity
	default:
		return "Internal", http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	code, status := codeOf(err)
	writeError(w, code, err.Error(), status)
}

// writeError writes a JSON error response with a stable error code.
func writeError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
