package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/radieske/challenge-escrow/internal/challenge-service/dto"
	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	"github.com/radieske/challenge-escrow/internal/challenge-service/repo"
)

type fixture struct {
	eng    *engine.Engine
	closed int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemory()
	store.PutUser("alice", 5000, false)
	store.PutUser("bob", 5000, false)
	store.PutUser("ops", 0, true)
	return &fixture{eng: engine.New(store, store, nil, zaptest.NewLogger(t))}
}

func (f *fixture) opener(context.Context) (Escrow, func() error, error) {
	return f.eng, func() error { f.closed++; return nil }, nil
}

// executeCommand roda o comando com args e devolve stdout e stderr capturados.
func executeCommand(open Opener, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	root, a := newRoot(open)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	_ = a.shutdown()
	return out.String(), errOut.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCmd(nil)
	want := map[string]bool{"balance": false, "deposit": false, "dispute": false, "audit": false, "challenge": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected subcommand %q", name)
		}
	}
}

func TestDisputeResolveDrawAndAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.eng.CreateChallenge(ctx, engine.CreateParams{CreatorID: "alice", StakeCents: 1000, Type: "CHESS"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.eng.JoinChallenge(ctx, c.ID, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.eng.SubmitResult(ctx, c.ID, "alice", "alice"); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	res, err := f.eng.SubmitResult(ctx, c.ID, "bob", "bob")
	if err != nil || res.DisputeID == "" {
		t.Fatalf("expected dispute, got %+v (%v)", res, err)
	}

	out, _, err := executeCommand(f.opener, "dispute", "list", "--actor", "ops")
	if err != nil {
		t.Fatalf("dispute list: %v", err)
	}
	var pending []dto.DisputeResponse
	if err := json.Unmarshal([]byte(out), &pending); err != nil || len(pending) != 1 || pending[0].ID != res.DisputeID {
		t.Fatalf("unexpected pending disputes %s (%v)", out, err)
	}

	if _, _, err := executeCommand(f.opener, "dispute", "resolve", res.DisputeID, "--actor", "ops"); err == nil {
		t.Fatalf("expected error without --winner or --draw")
	}

	out, _, err = executeCommand(f.opener, "dispute", "resolve", res.DisputeID, "--draw", "--actor", "ops")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var resolution dto.ResolutionResponse
	if err := json.Unmarshal([]byte(out), &resolution); err != nil {
		t.Fatalf("decode resolution: %v", err)
	}
	if !resolution.Draw || resolution.Payouts["alice"] != "10.00" || resolution.Payouts["bob"] != "10.00" {
		t.Fatalf("unexpected resolution %+v", resolution)
	}

	out, _, err = executeCommand(f.opener, "audit", c.ID, "--actor", "ops")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var audit dto.AuditResponse
	if err := json.Unmarshal([]byte(out), &audit); err != nil || !audit.Balanced || audit.Sum != "0.00" {
		t.Fatalf("unexpected audit %s (%v)", out, err)
	}
	if f.closed != 4 {
		t.Fatalf("expected escrow closed after each run, got %d", f.closed)
	}
}

func TestAdminCommandsRequireActor(t *testing.T) {
	f := newFixture(t)
	_, _, err := executeCommand(f.opener, "balance", "adjust", "alice", "--amount", "5.00", "--reason", "promo")
	if err == nil || !strings.Contains(err.Error(), "--actor") {
		t.Fatalf("expected missing actor error, got %v", err)
	}
	_, _, err = executeCommand(f.opener, "balance", "adjust", "alice", "--amount", "5.00", "--reason", "promo", "--actor", "bob")
	if !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}

	out, _, err := executeCommand(f.opener, "balance", "adjust", "alice", "--amount=-2.50", "--reason", "chargeback", "--actor", "ops")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	var bal dto.BalanceResponse
	if err := json.Unmarshal([]byte(out), &bal); err != nil || bal.BalanceCents != 4750 {
		t.Fatalf("unexpected balance %s (%v)", out, err)
	}
}

func TestDepositIsIdempotentByRef(t *testing.T) {
	f := newFixture(t)
	if _, _, err := executeCommand(f.opener, "deposit", "bob", "12.34", "--ref", "pi_1"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	out, errOut, err := executeCommand(f.opener, "deposit", "bob", "12.34", "--ref", "pi_1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(errOut, "already applied") {
		t.Fatalf("expected replay notice, got %q", errOut)
	}
	var bal dto.BalanceResponse
	if err := json.Unmarshal([]byte(out), &bal); err != nil || bal.Balance != "62.34" {
		t.Fatalf("unexpected balance %s (%v)", out, err)
	}

	if _, _, err := executeCommand(f.opener, "deposit", "bob", "abc", "--ref", "pi_2"); !errors.Is(err, dto.ErrBadAmount) {
		t.Fatalf("expected ErrBadAmount, got %v", err)
	}
}

func TestOpenFailureIsReported(t *testing.T) {
	boom := errors.New("db down")
	open := func(context.Context) (Escrow, func() error, error) { return nil, nil, boom }
	if _, _, err := executeCommand(open, "challenge", "get", "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped open error, got %v", err)
	}
}
