package repo

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	"github.com/radieske/challenge-escrow/internal/shared/config"
)

func TestMemoryRollsBackOnError(t *testing.T) {
	m := NewMemory()
	m.PutUser("alice", 1000, false)
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithinTx(ctx, func(tx engine.Tx) error {
		if _, err := tx.AddBalance(ctx, "alice", -400); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &engine.Transaction{ID: "t1", UserID: "alice", AmountCents: -400, ReferenceID: "c1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	u, _ := m.GetUser(ctx, "alice")
	if u.BalanceCents != 1000 {
		t.Fatalf("balance leaked from rolled back tx: %d", u.BalanceCents)
	}
	if sum, _ := m.SumByReference(ctx, "c1"); sum != 0 {
		t.Fatalf("transaction leaked from rolled back tx: %d", sum)
	}
}

func TestMemoryAddBalanceGuardsNegative(t *testing.T) {
	m := NewMemory()
	m.PutUser("bob", 100, false)
	ctx := context.Background()

	err := m.WithinTx(ctx, func(tx engine.Tx) error {
		_, err := tx.AddBalance(ctx, "bob", -101)
		return err
	})
	if !errors.Is(err, engine.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	err = m.WithinTx(ctx, func(tx engine.Tx) error {
		_, err := tx.AddBalance(ctx, "ghost", 1)
		return err
	})
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStagedReadsAndDepositLookup(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.WithinTx(ctx, func(tx engine.Tx) error {
		if _, err := tx.EnsureUser(ctx, "dave"); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &engine.Transaction{ID: "t1", UserID: "dave", Type: engine.TxDeposit, ReferenceID: "pi_1", AmountCents: 10}); err != nil {
			return err
		}
		seen, err := tx.HasTransaction(ctx, "dave", engine.TxDeposit, "pi_1")
		if err != nil || !seen {
			t.Fatalf("staged transaction not visible inside tx: %v %v", seen, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if _, err := m.GetUser(ctx, "dave"); err != nil {
		t.Fatalf("ensured user not committed: %v", err)
	}
}

func TestOpenMemoryPromotesAdmins(t *testing.T) {
	cfg := config.Config{StoreDriver: "memory", AdminUserIDs: []string{"ops"}, SeedUserIDs: []string{"alice"}, SeedBalanceCents: 2500}
	b, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	ok, err := b.Admins.IsAdmin(context.Background(), "ops")
	if err != nil || !ok {
		t.Fatalf("expected ops to be admin, got %v (%v)", ok, err)
	}
	u, err := b.Store.GetUser(context.Background(), "alice")
	if err != nil || u.BalanceCents != 2500 {
		t.Fatalf("expected seeded alice with 2500, got %+v (%v)", u, err)
	}
	if _, err := Open(context.Background(), config.Config{StoreDriver: "mongo"}, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestExtractUpMigration(t *testing.T) {
	got := ExtractUpMigration("-- +migrate Up\nCREATE TABLE a();\n-- +migrate Down\nDROP TABLE a;")
	if got != "\nCREATE TABLE a();\n" {
		t.Fatalf("unexpected up section %q", got)
	}
	if got := ExtractUpMigration("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("expected whole content without markers, got %q", got)
	}
}
