package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/infra/security"
)

func newTestLedger() (*VerificationCodeLedger, *memCodes, *testClock) {
	store := &memCodes{}
	clock := newTestClock()
	return NewVerificationCodeLedger(store, 0).WithClock(clock.Now), store, clock
}

func TestLedger_CreateStoresOnlyTheHash(t *testing.T) {
	ledger, store, clock := newTestLedger()

	code, err := ledger.Create(context.Background(), "user-1", domain.CodeKindPasswordReset, 10*time.Minute)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(code.Code) != defaultCodeLength {
		t.Fatalf("expected %d digits, got %q", defaultCodeLength, code.Code)
	}
	if _, err := ulid.Parse(code.ID); err != nil {
		t.Fatalf("id should be a ULID: %v", err)
	}
	if !code.ExpiresAt.Equal(clock.Now().Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", code.ExpiresAt)
	}

	rows := store.rows("user-1", domain.CodeKindPasswordReset)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0].LinkToken != "" {
		t.Fatal("raw link token must not be stored")
	}
	if rows[0].LinkTokenHash != security.HashToken(code.LinkToken) {
		t.Fatal("stored hash must match the returned token")
	}

	if _, err := ledger.Create(context.Background(), "user-1", domain.CodeKindPasswordReset, 0); err == nil {
		t.Fatal("non-positive ttl should be rejected")
	}
}

func TestLedger_FindActive(t *testing.T) {
	ledger, _, clock := newTestLedger()
	ctx := context.Background()

	active, err := ledger.FindActive(ctx, "user-1", domain.CodeKindPasswordReset)
	if err != nil || active != nil {
		t.Fatalf("expected no active code, got %+v, %v", active, err)
	}

	created, _ := ledger.Create(ctx, "user-1", domain.CodeKindPasswordReset, 5*time.Minute)
	active, err = ledger.FindActive(ctx, "user-1", domain.CodeKindPasswordReset)
	if err != nil || active == nil || active.ID != created.ID {
		t.Fatalf("expected the created code, got %+v, %v", active, err)
	}
	if other, _ := ledger.FindActive(ctx, "user-1", domain.CodeKindEmailVerification); other != nil {
		t.Fatal("kinds must not mix")
	}

	clock.Advance(5 * time.Minute)
	if active, _ := ledger.FindActive(ctx, "user-1", domain.CodeKindPasswordReset); active != nil {
		t.Fatal("a code at its expiry is no longer active")
	}
}

func TestLedger_ConsumeByCodeOrToken(t *testing.T) {
	ledger, _, _ := newTestLedger()
	ctx := context.Background()
	kind := domain.CodeKindPasswordReset

	byHash, _ := ledger.Create(ctx, "user-1", kind, time.Minute)
	got, err := ledger.Consume(ctx, ConsumeQuery{Code: byHash.Code, LinkTokenHash: byHash.LinkTokenHash}, kind)
	if err != nil {
		t.Fatalf("consume by hash: %v", err)
	}
	if got.Status != domain.CodeStatusVerified || got.VerifiedAt == nil {
		t.Fatalf("consumed code should be verified: %+v", got)
	}

	byToken, _ := ledger.Create(ctx, "user-2", kind, time.Minute)
	if _, err := ledger.Consume(ctx, ConsumeQuery{LinkToken: byToken.LinkToken}, kind); err != nil {
		t.Fatalf("consume by raw token: %v", err)
	}

	if _, err := ledger.Consume(ctx, ConsumeQuery{Code: byHash.Code}, kind); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("digits alone must not match, got %v", err)
	}
	if _, err := ledger.Consume(ctx, ConsumeQuery{LinkToken: byToken.LinkToken}, domain.CodeKindEmailVerification); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("wrong kind must not match, got %v", err)
	}
}

func TestLedger_LookupReportsExpiry(t *testing.T) {
	ledger, _, clock := newTestLedger()
	ctx := context.Background()
	kind := domain.CodeKindEmailVerification

	code, _ := ledger.Create(ctx, "user-1", kind, time.Minute)
	clock.Advance(2 * time.Minute)

	got, err := ledger.Lookup(ctx, ConsumeQuery{LinkToken: code.LinkToken}, kind)
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if got == nil || got.ID != code.ID {
		t.Fatal("the expired record should be returned")
	}
}

func TestLedger_ConcurrentConsumeHasOneWinner(t *testing.T) {
	ledger, _, _ := newTestLedger()
	ctx := context.Background()
	kind := domain.CodeKindPasswordReset

	code, _ := ledger.Create(ctx, "user-1", kind, time.Minute)
	q := ConsumeQuery{Code: code.Code, LinkTokenHash: code.LinkTokenHash}

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Consume(ctx, q, kind)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrCodeNotFound):
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || notFound != workers-1 {
		t.Fatalf("expected one winner, got %d wins and %d not found", wins, notFound)
	}
}

func TestLedger_ReuseCountsIssuances(t *testing.T) {
	ledger, _, clock := newTestLedger()
	ctx := context.Background()
	kind := domain.CodeKindPasswordReset
	start := clock.Now()

	code, _ := ledger.Create(ctx, "user-1", kind, 10*time.Minute)
	clock.Advance(time.Minute)
	if err := ledger.Reuse(ctx, code); err != nil {
		t.Fatalf("Reuse: %v", err)
	}
	if code.IssueCount != 2 || !code.LastIssuedAt.Equal(clock.Now()) {
		t.Fatalf("reuse should update the record: %+v", code)
	}

	n, err := ledger.CountSince(ctx, "user-1", kind, start)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 issuances, got %d, %v", n, err)
	}

	if _, err := ledger.Consume(ctx, ConsumeQuery{LinkToken: code.LinkToken}, kind); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := ledger.Reuse(ctx, code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("a consumed code cannot be reused, got %v", err)
	}
	if n, _ := ledger.CountSince(ctx, "user-1", kind, start); n != 2 {
		t.Fatalf("consumed codes keep counting, got %d", n)
	}
}

// otherDigits returns a code of the same length that differs from code.
func otherDigits(code string) string {
	b := []byte(code)
	b[0] = '0' + (b[0]-'0'+1)%10
	return string(b)
}

func TestLedger_WrongDigitsLockTheCode(t *testing.T) {
	ledger, store, _ := newTestLedger()
	ledger.WithMaxAttempts(3)
	ctx := context.Background()
	kind := domain.CodeKindPasswordReset

	code, _ := ledger.Create(ctx, "user-1", kind, 10*time.Minute)
	wrong := ConsumeQuery{Code: otherDigits(code.Code), LinkTokenHash: code.LinkTokenHash}

	if _, err := ledger.Lookup(ctx, wrong, kind); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("wrong digits should not match, got %v", err)
	}
	if rows := store.rows("user-1", kind); rows[0].FailedAttempts != 1 || rows[0].Status != domain.CodeStatusPending {
		t.Fatalf("one miss should be recorded: %+v", rows[0])
	}
	if _, err := ledger.Lookup(ctx, ConsumeQuery{Code: code.Code, LinkTokenHash: code.LinkTokenHash}, kind); err != nil {
		t.Fatalf("the right digits still redeem below the limit: %v", err)
	}

	for i := 0; i < 2; i++ {
		ledger.Lookup(ctx, wrong, kind)
	}
	if rows := store.rows("user-1", kind); rows[0].Status != domain.CodeStatusExpired {
		t.Fatalf("the code should expire at the limit: %+v", rows[0])
	}
	if _, err := ledger.Consume(ctx, ConsumeQuery{Code: code.Code, LinkTokenHash: code.LinkTokenHash}, kind); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("a locked code cannot be redeemed, got %v", err)
	}
	if active, _ := ledger.FindActive(ctx, "user-1", kind); active != nil {
		t.Fatal("a locked code is not handed out again")
	}
}

func TestLedger_UnknownLinkTokenRecordsNothing(t *testing.T) {
	ledger, store, _ := newTestLedger()
	ctx := context.Background()
	kind := domain.CodeKindPasswordReset

	code, _ := ledger.Create(ctx, "user-1", kind, 10*time.Minute)
	if _, err := ledger.Lookup(ctx, ConsumeQuery{Code: otherDigits(code.Code), LinkTokenHash: "unknown"}, kind); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
	if rows := store.rows("user-1", kind); rows[0].FailedAttempts != 0 {
		t.Fatalf("a miss on an unknown token must not touch other codes: %+v", rows[0])
	}
}

func TestLedger_IssuanceWindowSlides(t *testing.T) {
	ledger, _, clock := newTestLedger()
	ctx := context.Background()
	kind := domain.CodeKindPasswordReset
	window := 15 * time.Minute

	code, _ := ledger.Create(ctx, "user-1", kind, 30*time.Minute)
	clock.Advance(9 * time.Minute)
	if err := ledger.Reuse(ctx, code); err != nil {
		t.Fatalf("Reuse: %v", err)
	}

	clock.Advance(7 * time.Minute)
	n, err := ledger.CountSince(ctx, "user-1", kind, clock.Now().Add(-window))
	if err != nil || n != 1 {
		t.Fatalf("only the reuse at minute 9 is inside the window, got %d, %v", n, err)
	}

	pruned, err := ledger.PruneIssuances(ctx, window)
	if err != nil || pruned != 1 {
		t.Fatalf("expected the minute 0 issuance pruned, got %d, %v", pruned, err)
	}
	if n, _ := ledger.CountSince(ctx, "user-1", kind, clock.Now().Add(-time.Hour)); n != 1 {
		t.Fatalf("expected one issuance left, got %d", n)
	}
}

func TestLedger_StoreErrorsAreWrapped(t *testing.T) {
	ledger, store, _ := newTestLedger()
	boom := errors.New("boom")
	store.err = boom
	ctx := context.Background()

	if _, err := ledger.FindActive(ctx, "user-1", domain.CodeKindPasswordReset); !errors.Is(err, boom) {
		t.Fatalf("FindActive: expected wrapped error, got %v", err)
	}
	if _, err := ledger.Lookup(ctx, ConsumeQuery{LinkTokenHash: "h"}, domain.CodeKindPasswordReset); !errors.Is(err, boom) || errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("Lookup: expected wrapped error, got %v", err)
	}
	if _, err := ledger.SweepExpired(ctx); !errors.Is(err, boom) {
		t.Fatalf("SweepExpired: expected wrapped error, got %v", err)
	}
}
