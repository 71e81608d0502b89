package engine_test

import (
	"context"
	"testing"

	"github.com/goalpost/settlement-engine/internal/auth"
	"github.com/goalpost/settlement-engine/internal/engine"
	"github.com/goalpost/settlement-engine/internal/escrow"
	"github.com/goalpost/settlement-engine/internal/model"
	"github.com/goalpost/settlement-engine/internal/store"
)

const (
	adminID  = "admin"
	oracleID = "oracle"
)

// newTestEngine creates an engine over in-memory store and escrow.
func newTestEngine(t *testing.T) (*engine.Engine, *escrow.MemoryEscrow) {
	t.Helper()
	esc := escrow.NewMemoryEscrow()
	eng := engine.New(store.NewMemoryStore(), esc, engine.DefaultConfig(), nil)
	return eng, esc
}

// newLiveMatch initializes and starts a match with the given liquidity.
func newLiveMatch(t *testing.T, eng *engine.Engine, matchID string, liquidity uint64) {
	t.Helper()
	ctx := context.Background()
	_, err := eng.Initialize(ctx, engine.InitializeParams{
		MatchID:          matchID,
		Caller:           adminID,
		OracleIdentity:   oracleID,
		InitialLiquidity: liquidity,
		OutcomeAName:     "A",
		OutcomeBName:     "B",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := eng.StartGame(ctx, matchID, adminID); err != nil {
		t.Fatalf("start game: %v", err)
	}
}

// --- Initialization tests ---

func TestInitialize_SeedsReserves(t *testing.T) {
	eng, _ := newTestEngine(t)
	m, err := eng.Initialize(context.Background(), engine.InitializeParams{
		MatchID:          "m1",
		Caller:           adminID,
		OracleIdentity:   oracleID,
		InitialLiquidity: 100,
		OutcomeAName:     "Reds",
		OutcomeBName:     "Blues",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.VirtualReserveA != 100 || m.VirtualReserveB != 100 {
		t.Errorf("reserves not seeded equal: (%d, %d)", m.VirtualReserveA, m.VirtualReserveB)
	}
	if m.Status != model.StatusNotStarted {
		t.Errorf("expected NotStarted, got %s", m.Status)
	}
	if m.AdminIdentity != adminID || m.OracleIdentity != oracleID {
		t.Errorf("identities not recorded: %q %q", m.AdminIdentity, m.OracleIdentity)
	}
}

func TestInitialize_DuplicateID(t *testing.T) {
	eng, _ := newTestEngine(t)
	params := engine.InitializeParams{
		MatchID: "m1", Caller: adminID, OracleIdentity: oracleID,
		InitialLiquidity: 100, OutcomeAName: "A", OutcomeBName: "B",
	}
	if _, err := eng.Initialize(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := eng.Initialize(context.Background(), params); err != store.ErrMatchExists {
		t.Errorf("expected ErrMatchExists on ID reuse, got %v", err)
	}
}

func TestInitialize_BadInputs(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Initialize(ctx, engine.InitializeParams{
		MatchID: "m1", Caller: adminID, InitialLiquidity: 0,
		OutcomeAName: "A", OutcomeBName: "B",
	})
	if err == nil {
		t.Error("zero liquidity should be rejected")
	}

	_, err = eng.Initialize(ctx, engine.InitializeParams{
		MatchID: "m1", Caller: adminID, InitialLiquidity: 10,
		OutcomeAName: "A", OutcomeBName: "A",
	})
	if err != engine.ErrInvalidTeamName {
		t.Errorf("identical outcome names should be rejected, got %v", err)
	}
}

// --- Lifecycle ordering tests ---

func TestLifecycle_Ordering(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, engine.InitializeParams{
		MatchID: "m1", Caller: adminID, OracleIdentity: oracleID,
		InitialLiquidity: 100, OutcomeAName: "A", OutcomeBName: "B",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Before start: no deposits, no scores, no end, no claims.
	if _, err := eng.Deposit(ctx, "m1", "p1", 10, "A"); err != engine.ErrMatchNotLiveYet {
		t.Errorf("deposit before start: expected ErrMatchNotLiveYet, got %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 0); err != engine.ErrMatchNotLiveYet {
		t.Errorf("score before start: expected ErrMatchNotLiveYet, got %v", err)
	}
	if _, err := eng.EndGame(ctx, "m1", adminID); err != engine.ErrMatchNotLiveYet {
		t.Errorf("end before start: expected ErrMatchNotLiveYet, got %v", err)
	}
	if _, err := eng.ClaimRewards(ctx, "m1", "p1"); err != engine.ErrMatchNotEndedYet {
		t.Errorf("claim before end: expected ErrMatchNotEndedYet, got %v", err)
	}

	if _, err := eng.StartGame(ctx, "m1", adminID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := eng.StartGame(ctx, "m1", adminID); err != engine.ErrMatchAlreadyStarted {
		t.Errorf("second start: expected ErrMatchAlreadyStarted, got %v", err)
	}
	if _, err := eng.ClaimRewards(ctx, "m1", "p1"); err != engine.ErrMatchNotEndedYet {
		t.Errorf("claim while live: expected ErrMatchNotEndedYet, got %v", err)
	}

	if _, err := eng.EndGame(ctx, "m1", adminID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := eng.EndGame(ctx, "m1", adminID); err != engine.ErrMatchAlreadyEnded {
		t.Errorf("second end: expected ErrMatchAlreadyEnded, got %v", err)
	}
	if _, err := eng.Deposit(ctx, "m1", "p1", 10, "A"); err != engine.ErrMatchNotLiveYet {
		t.Errorf("deposit after end: expected ErrMatchNotLiveYet, got %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 0); err != engine.ErrMatchNotLiveYet {
		t.Errorf("score after end: expected ErrMatchNotLiveYet, got %v", err)
	}
}

// --- Authorization tests ---

func TestAuthorization(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, engine.InitializeParams{
		MatchID: "m1", Caller: adminID, OracleIdentity: oracleID,
		InitialLiquidity: 100, OutcomeAName: "A", OutcomeBName: "B",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, err := eng.StartGame(ctx, "m1", "intruder"); err != auth.ErrUnauthorizedAdmin {
		t.Errorf("expected ErrUnauthorizedAdmin, got %v", err)
	}
	if _, err := eng.StartGame(ctx, "m1", adminID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", adminID, 1, 0); err != auth.ErrUnauthorizedOracle {
		t.Errorf("expected ErrUnauthorizedOracle, got %v", err)
	}
	if _, err := eng.EndGame(ctx, "m1", oracleID); err != auth.ErrUnauthorizedAdmin {
		t.Errorf("expected ErrUnauthorizedAdmin, got %v", err)
	}
}

// --- Deposit tests ---

func TestDeposit_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 100)

	if _, err := eng.Deposit(ctx, "m1", "p1", 10, "C"); err != engine.ErrInvalidTeamName {
		t.Errorf("bad side: expected ErrInvalidTeamName, got %v", err)
	}
	if _, err := eng.Deposit(ctx, "m1", "p1", 0, "A"); err != engine.ErrInvalidAmount {
		t.Errorf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := eng.Deposit(ctx, "missing", "p1", 10, "A"); err != store.ErrMatchNotFound {
		t.Errorf("unknown match: expected ErrMatchNotFound, got %v", err)
	}
}

func TestDeposit_MintsAndTracks(t *testing.T) {
	eng, esc := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 10)

	res, err := eng.Deposit(ctx, "m1", "p1", 5, "A")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// (10, 10) + 5 into A: out' = floor(100/15) = 6, minted 4.
	if res.Minted != 4 {
		t.Errorf("expected 4 minted shares, got %d", res.Minted)
	}
	if res.Match.VirtualReserveA != 15 || res.Match.VirtualReserveB != 6 {
		t.Errorf("reserves (%d, %d), want (15, 6)",
			res.Match.VirtualReserveA, res.Match.VirtualReserveB)
	}
	if res.Match.TotalSharesA != 4 || res.Match.EscrowBalance != 5 {
		t.Errorf("totals: shares_a=%d escrow=%d", res.Match.TotalSharesA, res.Match.EscrowBalance)
	}
	if res.Position.SharesA != 4 || res.Position.Deposited != 5 {
		t.Errorf("position: %+v", res.Position)
	}

	bal, _ := esc.Balance(ctx, "m1")
	if bal != 5 {
		t.Errorf("escrow collaborator holds %d, engine tracks 5", bal)
	}
}

func TestDeposit_EarlierGetsBetterPrice(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 1000)

	first, err := eng.Deposit(ctx, "m1", "p1", 100, "A")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	second, err := eng.Deposit(ctx, "m1", "p2", 100, "A")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if second.Minted >= first.Minted {
		t.Errorf("later equal deposit should mint strictly fewer shares: %d then %d",
			first.Minted, second.Minted)
	}
}

// --- Score update tests ---

func TestUpdateScore_Rules(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 1000)

	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 0, 0); err != engine.ErrNoScoreChange {
		t.Errorf("no-op update: expected ErrNoScoreChange, got %v", err)
	}

	m, err := eng.UpdateScore(ctx, "m1", oracleID, 2, 1)
	if err != nil {
		t.Fatalf("update score: %v", err)
	}
	if m.ScoreA != 2 || m.ScoreB != 1 {
		t.Errorf("scores (%d, %d), want (2, 1)", m.ScoreA, m.ScoreB)
	}

	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 1); err != engine.ErrScoreCannotDecrease {
		t.Errorf("regression: expected ErrScoreCannotDecrease, got %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 51, 1); err != engine.ErrScoreTooHigh {
		t.Errorf("above ceiling: expected ErrScoreTooHigh, got %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 50, 1); err != nil {
		t.Errorf("ceiling itself is allowed: %v", err)
	}
}

func TestUpdateScore_RebalancesReserves(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 1000)

	m, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 0)
	if err != nil {
		t.Fatalf("update score: %v", err)
	}
	if m.VirtualReserveA != 1250 || m.VirtualReserveB != 750 {
		t.Errorf("reserves (%d, %d), want (1250, 750)", m.VirtualReserveA, m.VirtualReserveB)
	}
}

// --- Settlement tests ---

func TestEndGame_FeeExactness(t *testing.T) {
	eng, esc := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 1000)

	if _, err := eng.Deposit(ctx, "m1", "p1", 6000, "A"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := eng.Deposit(ctx, "m1", "p2", 4000, "B"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 0); err != nil {
		t.Fatalf("score: %v", err)
	}

	m, err := eng.EndGame(ctx, "m1", adminID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	// floor(10000 × 500 / 10000) = 500.
	if m.EscrowBalance != 9500 {
		t.Errorf("post-fee escrow %d, want 9500", m.EscrowBalance)
	}
	if m.Winner != model.OutcomeA {
		t.Errorf("winner %s, want A", m.Winner)
	}

	var feePaid uint64
	for _, tr := range esc.Transfers("m1") {
		if tr.Direction == "disburse" && tr.Party == adminID {
			feePaid += tr.Amount
		}
	}
	if feePaid != 500 {
		t.Errorf("admin fee transfer %d, want 500", feePaid)
	}
}

// TestScenario_MatchSettlement walks the full lifecycle: two participants
// back opposite sides, the score moves twice, A wins, only A's backer is
// paid.
func TestScenario_MatchSettlement(t *testing.T) {
	eng, esc := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Initialize(ctx, engine.InitializeParams{
		MatchID: "42", Caller: adminID, OracleIdentity: oracleID,
		InitialLiquidity: 10, OutcomeAName: "A", OutcomeBName: "B",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := eng.StartGame(ctx, "42", adminID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := eng.Deposit(ctx, "42", "p1", 5, "A"); err != nil {
		t.Fatalf("p1 deposit: %v", err)
	}
	if _, err := eng.Deposit(ctx, "42", "p2", 3, "B"); err != nil {
		t.Fatalf("p2 deposit: %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "42", oracleID, 1, 0); err != nil {
		t.Fatalf("score 1-0: %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "42", oracleID, 3, 1); err != nil {
		t.Fatalf("score 3-1: %v", err)
	}
	if _, err := eng.EndGame(ctx, "42", adminID); err != nil {
		t.Fatalf("end: %v", err)
	}

	p1, err := eng.ClaimRewards(ctx, "42", "p1")
	if err != nil {
		t.Fatalf("p1 claim: %v", err)
	}
	if p1.Payout == 0 {
		t.Error("winner's backer should receive a positive payout")
	}

	p2, err := eng.ClaimRewards(ctx, "42", "p2")
	if err != nil {
		t.Fatalf("p2 claim: %v", err)
	}
	if p2.Payout != 0 {
		t.Errorf("loser's backer should receive 0, got %d", p2.Payout)
	}

	// Conservation: collected == disbursed + remaining escrow.
	var collected, disbursed uint64
	for _, tr := range esc.Transfers("42") {
		switch tr.Direction {
		case "collect":
			collected += tr.Amount
		case "disburse":
			disbursed += tr.Amount
		}
	}
	m, _ := eng.Store().GetMatch(ctx, "42")
	if collected != disbursed+m.EscrowBalance {
		t.Errorf("conservation violated: collected=%d disbursed=%d remaining=%d",
			collected, disbursed, m.EscrowBalance)
	}
	bal, _ := esc.Balance(ctx, "42")
	if bal != m.EscrowBalance {
		t.Errorf("engine tracks %d, escrow holds %d", m.EscrowBalance, bal)
	}
}

// TestScenario_TimeOrderedROI: equal deposits into the eventual winner, one
// before and one after a score update favoring that side. The earlier
// depositor mints more shares and realizes the higher return.
func TestScenario_TimeOrderedROI(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 1000)

	early, err := eng.Deposit(ctx, "m1", "early", 500, "A")
	if err != nil {
		t.Fatalf("early deposit: %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 0); err != nil {
		t.Fatalf("score: %v", err)
	}
	late, err := eng.Deposit(ctx, "m1", "late", 500, "A")
	if err != nil {
		t.Fatalf("late deposit: %v", err)
	}
	if late.Minted >= early.Minted {
		t.Fatalf("deposit after favorable score should mint strictly fewer shares: %d then %d",
			early.Minted, late.Minted)
	}

	if _, err := eng.EndGame(ctx, "m1", adminID); err != nil {
		t.Fatalf("end: %v", err)
	}
	earlyClaim, err := eng.ClaimRewards(ctx, "m1", "early")
	if err != nil {
		t.Fatalf("early claim: %v", err)
	}
	lateClaim, err := eng.ClaimRewards(ctx, "m1", "late")
	if err != nil {
		t.Fatalf("late claim: %v", err)
	}
	// Stakes are equal, so the higher payout is the higher return.
	if earlyClaim.Payout <= lateClaim.Payout {
		t.Errorf("earlier deposit should realize the higher return: early=%d late=%d",
			earlyClaim.Payout, lateClaim.Payout)
	}
}

func TestClaim_Idempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 1000)

	if _, err := eng.Deposit(ctx, "m1", "p1", 1000, "A"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 0); err != nil {
		t.Fatalf("score: %v", err)
	}
	if _, err := eng.EndGame(ctx, "m1", adminID); err != nil {
		t.Fatalf("end: %v", err)
	}

	first, err := eng.ClaimRewards(ctx, "m1", "p1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if first.Payout == 0 {
		t.Fatal("expected positive payout on first claim")
	}

	second, err := eng.ClaimRewards(ctx, "m1", "p1")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second.Payout != 0 {
		t.Errorf("second claim must pay 0, got %d", second.Payout)
	}
	if !second.Position.Empty() {
		t.Errorf("position should stay empty: %+v", second.Position)
	}
}

func TestClaim_NoPosition(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 1000)
	if _, err := eng.EndGame(ctx, "m1", adminID); err != nil {
		t.Fatalf("end: %v", err)
	}

	res, err := eng.ClaimRewards(ctx, "m1", "bystander")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Payout != 0 {
		t.Errorf("no position should pay 0, got %d", res.Payout)
	}
}

func TestScenario_DrawRefund(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	newLiveMatch(t, eng, "m1", 1000)

	if _, err := eng.Deposit(ctx, "m1", "p1", 6000, "A"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := eng.Deposit(ctx, "m1", "p2", 4000, "B"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// Scores move but finish level.
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 0); err != nil {
		t.Fatalf("score: %v", err)
	}
	if _, err := eng.UpdateScore(ctx, "m1", oracleID, 1, 1); err != nil {
		t.Fatalf("score: %v", err)
	}

	m, err := eng.EndGame(ctx, "m1", adminID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if m.Winner != model.OutcomeDraw {
		t.Fatalf("winner %s, want Draw", m.Winner)
	}

	// Pro-rata refund of the post-fee pool: floor(6000 × 9500 / 10000).
	p1, err := eng.ClaimRewards(ctx, "m1", "p1")
	if err != nil {
		t.Fatalf("p1 claim: %v", err)
	}
	if p1.Payout != 5700 {
		t.Errorf("p1 refund %d, want 5700", p1.Payout)
	}
}
