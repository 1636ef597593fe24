package betting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockLedger tracks escrow movements per address for verification.
type mockLedger struct {
	mu         sync.Mutex
	deposited  map[string]int64 // addr -> total locked
	released   map[string]int64 // addr -> total released
	escrowed   map[string]int64 // reference -> balance
	depositErr error
	releaseErr error
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		deposited: make(map[string]int64),
		released:  make(map[string]int64),
		escrowed:  make(map[string]int64),
	}
}

func (m *mockLedger) EscrowDeposit(ctx context.Context, addr string, amount int64, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.depositErr != nil {
		return m.depositErr
	}
	m.deposited[addr] += amount
	m.escrowed[reference] += amount
	return nil
}

func (m *mockLedger) EscrowRelease(ctx context.Context, addr string, amount int64, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return m.releaseErr
	}
	m.released[addr] += amount
	m.escrowed[reference] -= amount
	return nil
}

func (m *mockLedger) releasedTo(addr string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released[addr]
}

type mockRecorder struct {
	mu        sync.Mutex
	arbiter   string
	volume    int64
	decisions int
}

func (m *mockRecorder) RecordDecision(ctx context.Context, arbiter string, volume int64, decisionTime time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arbiter = arbiter
	m.volume = volume
	m.decisions++
	return nil
}

func testConfig() Config {
	return Config{
		PlatformFeeBps: 2000,
		ArbiterFeeBps:  200,
		MinDecision:    0,
		ExpiryWindow:   time.Hour,
	}
}

func newTestService(ledger LedgerService) *Service {
	return NewService(NewMemoryStore(), ledger, testConfig())
}

// activeTwoParty creates a two-party bet and deposits both stakes.
func activeTwoParty(t *testing.T, svc *Service, id uint64, amount int64) *Bet {
	t.Helper()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: id, Type: TypeTwoParty, Counterparty: "0xBob", Arbiter: "0xJudge", Amount: amount,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Deposit(ctx, id, "0xAlice"); err != nil {
		t.Fatalf("alice deposit failed: %v", err)
	}
	bet, err := svc.Deposit(ctx, id, "0xBob")
	if err != nil {
		t.Fatalf("bob deposit failed: %v", err)
	}
	return bet
}

func TestCreateTwoParty(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)

	bet, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: 1, Type: TypeTwoParty, Counterparty: "0xBob", Arbiter: "0xJudge", Amount: 100,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if bet.Status != StatusWaiting {
		t.Errorf("status = %s, want waiting", bet.Status)
	}
	if len(bet.Participants) != 2 || bet.Participants[0] != "0xalice" || bet.Participants[1] != "0xbob" {
		t.Errorf("participants = %v, want [0xalice 0xbob]", bet.Participants)
	}
	// Creation must not move funds
	if len(ledger.deposited) != 0 {
		t.Errorf("deposits at creation = %v, want none", ledger.deposited)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockLedger())

	if _, err := svc.Create(ctx, "0xa", CreateRequest{BetID: 1, Type: TypeTwoParty, Counterparty: "0xb", Arbiter: "0xj", Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.Create(ctx, "0xa", CreateRequest{BetID: 1, Type: TypeTwoParty, Counterparty: "0xa", Arbiter: "0xj", Amount: 100}); !errors.Is(err, ErrInvalidBetType) {
		t.Errorf("self counterparty: err = %v, want ErrInvalidBetType", err)
	}
	if _, err := svc.Create(ctx, "0xa", CreateRequest{BetID: 1, Type: "tontine", Counterparty: "0xb", Arbiter: "0xj", Amount: 100}); !errors.Is(err, ErrInvalidBetType) {
		t.Errorf("unknown type: err = %v, want ErrInvalidBetType", err)
	}
	if _, err := svc.Create(ctx, "0xa", CreateRequest{BetID: 1, Type: TypeMultiParty, MaxParticipants: 7, Arbiter: "0xj", Amount: 100}); !errors.Is(err, ErrInvalidBetType) {
		t.Errorf("capacity 7: err = %v, want ErrInvalidBetType", err)
	}
	if _, err := svc.Create(ctx, "0xa", CreateRequest{BetID: 1, Type: TypeTwoParty, Counterparty: "0xb", Arbiter: "0xB", Amount: 100}); !errors.Is(err, ErrArbiterIsParticipant) {
		t.Errorf("arbiter is counterparty: err = %v, want ErrArbiterIsParticipant", err)
	}
}

func TestDepositActivates(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)

	if _, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: 1, Type: TypeTwoParty, Counterparty: "0xBob", Arbiter: "0xJudge", Amount: 100,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	bet, err := svc.Deposit(ctx, 1, "0xAlice")
	if err != nil {
		t.Fatalf("first deposit failed: %v", err)
	}
	if bet.Status != StatusWaiting {
		t.Errorf("status after one deposit = %s, want waiting", bet.Status)
	}
	if bet.TotalPool != 100 {
		t.Errorf("pool = %d, want 100", bet.TotalPool)
	}

	bet, err = svc.Deposit(ctx, 1, "0xBob")
	if err != nil {
		t.Fatalf("second deposit failed: %v", err)
	}
	if bet.Status != StatusActive {
		t.Errorf("status after both deposits = %s, want active", bet.Status)
	}
	if bet.ActivatedAt == nil {
		t.Error("ActivatedAt not set on activation")
	}
	if bet.TotalPool != 200 {
		t.Errorf("pool = %d, want 200", bet.TotalPool)
	}
	if ledger.escrowed["bet:1"] != 200 {
		t.Errorf("escrowed = %d, want 200", ledger.escrowed["bet:1"])
	}
}

func TestDepositRejections(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockLedger())

	if _, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: 1, Type: TypeTwoParty, Counterparty: "0xBob", Arbiter: "0xJudge", Amount: 100,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Deposit(ctx, 1, "0xMallory"); !errors.Is(err, ErrUnauthorizedDepositor) {
		t.Errorf("outsider deposit: err = %v, want ErrUnauthorizedDepositor", err)
	}
	if _, err := svc.Deposit(ctx, 1, "0xAlice"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := svc.Deposit(ctx, 1, "0xAlice"); !errors.Is(err, ErrAlreadyDeposited) {
		t.Errorf("double deposit: err = %v, want ErrAlreadyDeposited", err)
	}
	if _, err := svc.Deposit(ctx, 99, "0xAlice"); !errors.Is(err, ErrBetNotFound) {
		t.Errorf("missing bet: err = %v, want ErrBetNotFound", err)
	}
}

func TestDepositFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)

	if _, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: 1, Type: TypeTwoParty, Counterparty: "0xBob", Arbiter: "0xJudge", Amount: 100,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ledger.depositErr = errors.New("insufficient balance")
	if _, err := svc.Deposit(ctx, 1, "0xAlice"); err == nil {
		t.Fatal("expected deposit error")
	}

	bet, _ := svc.Get(ctx, 1)
	if bet.Deposits[0] || bet.TotalPool != 0 {
		t.Errorf("bet mutated after failed deposit: deposits=%v pool=%d", bet.Deposits, bet.TotalPool)
	}
}

func TestMultiPartyJoinActivatesAtCapacity(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)

	if _, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: 2, Type: TypeMultiParty, MaxParticipants: 3, Arbiter: "0xJudge", Amount: 50,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, p := range []string{"0xA", "0xB"} {
		bet, err := svc.Join(ctx, 2, p)
		if err != nil {
			t.Fatalf("join %s failed: %v", p, err)
		}
		if bet.Status != StatusWaiting {
			t.Errorf("status after %s = %s, want waiting", p, bet.Status)
		}
	}

	bet, err := svc.Join(ctx, 2, "0xC")
	if err != nil {
		t.Fatalf("final join failed: %v", err)
	}
	if bet.Status != StatusActive {
		t.Errorf("status at capacity = %s, want active", bet.Status)
	}
	if bet.TotalPool != 150 {
		t.Errorf("pool = %d, want 150", bet.TotalPool)
	}

	if _, err := svc.Join(ctx, 2, "0xD"); !errors.Is(err, ErrInvalidBetStatus) {
		t.Errorf("join after activation: err = %v, want ErrInvalidBetStatus", err)
	}
}

func TestMultiPartyJoinRejections(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockLedger())

	if _, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: 2, Type: TypeMultiParty, MaxParticipants: 4, Arbiter: "0xJudge", Amount: 50,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Join(ctx, 2, "0xA"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := svc.Join(ctx, 2, "0xA"); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("double join: err = %v, want ErrAlreadyJoined", err)
	}
	if _, err := svc.Join(ctx, 2, "0xJudge"); !errors.Is(err, ErrArbiterIsParticipant) {
		t.Errorf("arbiter join: err = %v, want ErrArbiterIsParticipant", err)
	}
	if _, err := svc.Deposit(ctx, 2, "0xA"); !errors.Is(err, ErrInvalidBetType) {
		t.Errorf("deposit on multi-party: err = %v, want ErrInvalidBetType", err)
	}
}

func TestDeclareWinnerComputesFees(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)
	recorder := &mockRecorder{}
	svc.WithArbiterRecorder(recorder)

	activeTwoParty(t, svc, 1, 100)

	bet, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xBob")
	if err != nil {
		t.Fatalf("DeclareWinner failed: %v", err)
	}

	// Pool 200 at 2000 bps platform + 200 bps arbiter: 40 + 4, payout 156
	if bet.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", bet.Status)
	}
	if bet.Winner != "0xbob" {
		t.Errorf("winner = %s, want 0xbob", bet.Winner)
	}
	if bet.PlatformFee != 40 || bet.ArbiterFee != 4 || bet.Payout != 156 {
		t.Errorf("split = platform %d / arbiter %d / payout %d, want 40/4/156",
			bet.PlatformFee, bet.ArbiterFee, bet.Payout)
	}
	// Ruling must not move funds
	if ledger.releasedTo("0xbob") != 0 {
		t.Errorf("released at declaration = %d, want 0", ledger.releasedTo("0xbob"))
	}
	if recorder.decisions != 1 || recorder.arbiter != "0xjudge" || recorder.volume != 200 {
		t.Errorf("recorder = %+v, want one decision by 0xjudge over 200", recorder)
	}
}

func TestDeclareWinnerGuards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockLedger())
	activeTwoParty(t, svc, 1, 100)

	if _, err := svc.DeclareWinner(ctx, 1, "0xAlice", "0xAlice"); !errors.Is(err, ErrUnauthorizedArbiter) {
		t.Errorf("participant declares: err = %v, want ErrUnauthorizedArbiter", err)
	}
	if _, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xMallory"); !errors.Is(err, ErrInvalidWinner) {
		t.Errorf("outsider winner: err = %v, want ErrInvalidWinner", err)
	}
	if _, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xBob"); err != nil {
		t.Fatalf("DeclareWinner failed: %v", err)
	}
	if _, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xAlice"); !errors.Is(err, ErrInvalidBetStatus) {
		t.Errorf("second ruling: err = %v, want ErrInvalidBetStatus", err)
	}
}

func TestDeclareWinnerMinimumDecisionTime(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MinDecision = time.Hour
	svc := NewService(NewMemoryStore(), newMockLedger(), cfg)
	activeTwoParty(t, svc, 1, 100)

	if _, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xBob"); !errors.Is(err, ErrMinimumTimeNotMet) {
		t.Errorf("immediate ruling: err = %v, want ErrMinimumTimeNotMet", err)
	}
}

func TestWithdrawWinningsOneShot(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)
	activeTwoParty(t, svc, 1, 100)

	if _, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xBob"); err != nil {
		t.Fatalf("DeclareWinner failed: %v", err)
	}

	if _, err := svc.WithdrawWinnings(ctx, 1, "0xAlice"); !errors.Is(err, ErrNotWinner) {
		t.Errorf("loser withdraws: err = %v, want ErrNotWinner", err)
	}

	bet, err := svc.WithdrawWinnings(ctx, 1, "0xBob")
	if err != nil {
		t.Fatalf("WithdrawWinnings failed: %v", err)
	}
	if !bet.WinningsClaimed {
		t.Error("WinningsClaimed not set")
	}
	if ledger.releasedTo("0xbob") != 156 {
		t.Errorf("released to winner = %d, want 156", ledger.releasedTo("0xbob"))
	}
	if ledger.releasedTo(PlatformAccount) != 40 {
		t.Errorf("released to platform = %d, want 40", ledger.releasedTo(PlatformAccount))
	}

	if _, err := svc.WithdrawWinnings(ctx, 1, "0xBob"); !errors.Is(err, ErrWinningsClaimed) {
		t.Errorf("second withdraw: err = %v, want ErrWinningsClaimed", err)
	}
	if ledger.releasedTo("0xbob") != 156 {
		t.Errorf("released to winner after replay = %d, want 156", ledger.releasedTo("0xbob"))
	}
}

func TestPayArbiterFeeOneShot(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)
	activeTwoParty(t, svc, 1, 100)

	if _, err := svc.PayArbiterFee(ctx, 1, "0xJudge"); !errors.Is(err, ErrInvalidBetStatus) {
		t.Errorf("fee before ruling: err = %v, want ErrInvalidBetStatus", err)
	}
	if _, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xBob"); err != nil {
		t.Fatalf("DeclareWinner failed: %v", err)
	}

	if _, err := svc.PayArbiterFee(ctx, 1, "0xBob"); !errors.Is(err, ErrUnauthorizedArbiter) {
		t.Errorf("winner takes fee: err = %v, want ErrUnauthorizedArbiter", err)
	}

	bet, err := svc.PayArbiterFee(ctx, 1, "0xJudge")
	if err != nil {
		t.Fatalf("PayArbiterFee failed: %v", err)
	}
	if !bet.ArbiterFeePaid {
		t.Error("ArbiterFeePaid not set")
	}
	if ledger.releasedTo("0xjudge") != 4 {
		t.Errorf("released to arbiter = %d, want 4", ledger.releasedTo("0xjudge"))
	}

	if _, err := svc.PayArbiterFee(ctx, 1, "0xJudge"); !errors.Is(err, ErrArbiterFeePaid) {
		t.Errorf("second fee claim: err = %v, want ErrArbiterFeePaid", err)
	}
}

func TestCancelExpiredRefundsDepositors(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	cfg := testConfig()
	cfg.ExpiryWindow = time.Millisecond
	svc := NewService(NewMemoryStore(), ledger, cfg)

	if _, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: 1, Type: TypeTwoParty, Counterparty: "0xBob", Arbiter: "0xJudge", Amount: 100,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Only one side deposits; the other never shows up
	if _, err := svc.Deposit(ctx, 1, "0xAlice"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	bet, err := svc.CancelExpired(ctx, 1)
	if err != nil {
		t.Fatalf("CancelExpired failed: %v", err)
	}
	if bet.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", bet.Status)
	}
	if ledger.releasedTo("0xalice") != 100 {
		t.Errorf("refund to alice = %d, want 100", ledger.releasedTo("0xalice"))
	}
	if ledger.releasedTo("0xbob") != 0 {
		t.Errorf("refund to bob = %d, want 0 (never deposited)", ledger.releasedTo("0xbob"))
	}
}

func TestCancelExpiredGuards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockLedger())

	if _, err := svc.Create(ctx, "0xAlice", CreateRequest{
		BetID: 1, Type: TypeTwoParty, Counterparty: "0xBob", Arbiter: "0xJudge", Amount: 100,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.CancelExpired(ctx, 1); !errors.Is(err, ErrNotExpired) {
		t.Errorf("fresh bet: err = %v, want ErrNotExpired", err)
	}

	activeTwoParty(t, svc, 2, 100)
	if _, err := svc.CancelExpired(ctx, 2); !errors.Is(err, ErrInvalidBetStatus) {
		t.Errorf("active bet: err = %v, want ErrInvalidBetStatus", err)
	}
}

func TestPlaceGroupBet(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)
	activeTwoParty(t, svc, 1, 100)

	gb, err := svc.PlaceGroupBet(ctx, 1, "0xCarol", "0xBob", 300)
	if err != nil {
		t.Fatalf("PlaceGroupBet failed: %v", err)
	}
	if gb.Choice != "0xbob" || gb.Amount != 300 {
		t.Errorf("group bet = %+v, want choice 0xbob amount 300", gb)
	}
	if !strings.HasPrefix(gb.ID, "gb_") {
		t.Errorf("group bet id = %q, want gb_ prefix", gb.ID)
	}
	// Side-bet funds live in their own escrow, apart from the stakes
	if ledger.escrowed["betgroup:1"] != 300 {
		t.Errorf("group escrow = %d, want 300", ledger.escrowed["betgroup:1"])
	}
	if ledger.escrowed["bet:1"] != 200 {
		t.Errorf("stake escrow = %d, want 200 untouched", ledger.escrowed["bet:1"])
	}

	bet, _ := svc.Get(ctx, 1)
	if bet.GroupPool != 300 {
		t.Errorf("group pool = %d, want 300", bet.GroupPool)
	}

	if _, err := svc.PlaceGroupBet(ctx, 1, "0xCarol", "0xMallory", 100); !errors.Is(err, ErrInvalidChoice) {
		t.Errorf("choice outside participants: err = %v, want ErrInvalidChoice", err)
	}
	if _, err := svc.PlaceGroupBet(ctx, 1, "0xCarol", "0xBob", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v, want ErrInvalidAmount", err)
	}
}

func TestGroupBetParimutuelPayout(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)
	activeTwoParty(t, svc, 1, 100)

	// Pool 1000: 300 + 200 on the eventual winner, 500 on the loser.
	gbCarol, err := svc.PlaceGroupBet(ctx, 1, "0xCarol", "0xBob", 300)
	if err != nil {
		t.Fatalf("carol bet failed: %v", err)
	}
	gbDave, err := svc.PlaceGroupBet(ctx, 1, "0xDave", "0xBob", 200)
	if err != nil {
		t.Fatalf("dave bet failed: %v", err)
	}
	gbEve, err := svc.PlaceGroupBet(ctx, 1, "0xEve", "0xAlice", 500)
	if err != nil {
		t.Fatalf("eve bet failed: %v", err)
	}

	if _, err := svc.ClaimGroupBet(ctx, gbCarol.ID, "0xCarol"); !errors.Is(err, ErrInvalidBetStatus) {
		t.Errorf("claim before ruling: err = %v, want ErrInvalidBetStatus", err)
	}

	if _, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xBob"); err != nil {
		t.Fatalf("DeclareWinner failed: %v", err)
	}

	// Distributable after 2000 bps fee: 800 over 500 staked on the winner.
	gb, err := svc.ClaimGroupBet(ctx, gbCarol.ID, "0xCarol")
	if err != nil {
		t.Fatalf("carol claim failed: %v", err)
	}
	if gb.Payout != 480 {
		t.Errorf("carol payout = %d, want 480", gb.Payout)
	}
	// First claim also moves the platform's cut of the group pool
	if ledger.releasedTo(PlatformAccount) != 200 {
		t.Errorf("platform group fee = %d, want 200", ledger.releasedTo(PlatformAccount))
	}

	gb, err = svc.ClaimGroupBet(ctx, gbDave.ID, "0xDave")
	if err != nil {
		t.Fatalf("dave claim failed: %v", err)
	}
	if gb.Payout != 320 {
		t.Errorf("dave payout = %d, want 320", gb.Payout)
	}
	// The fee must not be taken again on the second claim
	if ledger.releasedTo(PlatformAccount) != 200 {
		t.Errorf("platform total = %d, want 200 after second claim", ledger.releasedTo(PlatformAccount))
	}

	if _, err := svc.ClaimGroupBet(ctx, gbEve.ID, "0xEve"); !errors.Is(err, ErrGroupBetLost) {
		t.Errorf("losing claim: err = %v, want ErrGroupBetLost", err)
	}
	if _, err := svc.ClaimGroupBet(ctx, gbCarol.ID, "0xCarol"); !errors.Is(err, ErrGroupBetClaimed) {
		t.Errorf("double claim: err = %v, want ErrGroupBetClaimed", err)
	}
	if _, err := svc.ClaimGroupBet(ctx, gbDave.ID, "0xCarol"); !errors.Is(err, ErrNotWinner) {
		t.Errorf("claim someone else's bet: err = %v, want ErrNotWinner", err)
	}
}

func TestGroupBetPayoutLargePool(t *testing.T) {
	ctx := context.Background()
	ledger := newMockLedger()
	svc := newTestService(ledger)
	activeTwoParty(t, svc, 1, 100)

	// Side pools this size make stake * distributable exceed int64; the
	// share must still come out exact.
	const side = int64(5_000_000_000)
	gbCarol, err := svc.PlaceGroupBet(ctx, 1, "0xCarol", "0xBob", side)
	if err != nil {
		t.Fatalf("carol bet failed: %v", err)
	}
	if _, err := svc.PlaceGroupBet(ctx, 1, "0xEve", "0xAlice", side); err != nil {
		t.Fatalf("eve bet failed: %v", err)
	}

	if _, err := svc.DeclareWinner(ctx, 1, "0xJudge", "0xBob"); err != nil {
		t.Fatalf("DeclareWinner failed: %v", err)
	}

	gb, err := svc.ClaimGroupBet(ctx, gbCarol.ID, "0xCarol")
	if err != nil {
		t.Fatalf("carol claim failed: %v", err)
	}
	// Pool 10e9, 2000 bps fee leaves 8e9, all of it to the only winner.
	if want := 2*side - (2*side)/5; gb.Payout != want {
		t.Errorf("payout = %d, want %d", gb.Payout, want)
	}
}

func TestListByParticipant(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockLedger())

	activeTwoParty(t, svc, 1, 100)
	if _, err := svc.Create(ctx, "0xCarol", CreateRequest{
		BetID: 2, Type: TypeTwoParty, Counterparty: "0xDave", Arbiter: "0xJudge", Amount: 50,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	bets, err := svc.ListByParticipant(ctx, "0xAlice", 10)
	if err != nil {
		t.Fatalf("ListByParticipant failed: %v", err)
	}
	if len(bets) != 1 || bets[0].ID != 1 {
		t.Errorf("alice bets = %v, want just bet 1", bets)
	}

	// The arbiter sees every bet they were named on
	bets, err = svc.ListByParticipant(ctx, "0xJudge", 10)
	if err != nil {
		t.Fatalf("ListByParticipant failed: %v", err)
	}
	if len(bets) != 2 {
		t.Errorf("judge bets = %d, want 2", len(bets))
	}
}
