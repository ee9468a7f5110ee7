package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/radieske/challenge-escrow/internal/challenge-service/dto"
	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	"github.com/radieske/challenge-escrow/internal/challenge-service/repo"
)

const testSecret = "test-secret"

type apiClient struct {
	t       *testing.T
	srv     *httptest.Server
	handler http.Handler
}

func newAPI(t *testing.T) apiClient {
	t.Helper()
	store := repo.NewMemory()
	store.PutUser("alice", 5000, false)
	store.PutUser("bob", 5000, false)
	store.PutUser("carol", 0, false)
	store.PutUser("root", 0, true)

	log := zaptest.NewLogger(t)
	eng := engine.New(store, store, nil, log)
	handler := NewServer(log, eng, testSecret).Router()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return apiClient{t: t, srv: srv, handler: handler}
}

// do executa a requisição como userID e decodifica a resposta em out (se não nil).
func (c apiClient) do(method, path, userID string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		token, err := IssueToken([]byte(testSecret), userID, time.Minute)
		if err != nil {
			c.t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestRequiresBearerToken(t *testing.T) {
	api := newAPI(t)
	if code := api.do(http.MethodGet, "/v1/wallet/balance", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}

	req, _ := http.NewRequest(http.MethodGet, api.srv.URL+"/v1/wallet/balance", nil)
	forged, _ := IssueToken([]byte("other-secret"), "alice", time.Minute)
	req.Header.Set("Authorization", "Bearer "+forged)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401, got %d", resp.StatusCode)
	}
}

func TestChallengeLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)

	var created dto.ChallengeResponse
	if code := api.do(http.MethodPost, "/v1/challenges", "alice", dto.CreateChallengeRequest{Stake: "10.00", Type: "chess"}, &created); code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", code)
	}
	if created.Status != "OPEN" || created.LockedFunds != "10.00" || created.Type != "CHESS" {
		t.Fatalf("unexpected created challenge: %+v", created)
	}

	var open []dto.ChallengeResponse
	api.do(http.MethodGet, "/v1/challenges?status=open", "bob", nil, &open)
	if len(open) != 1 || open[0].ID != created.ID {
		t.Fatalf("expected challenge listed as open, got %+v", open)
	}

	if code := api.do(http.MethodPost, "/v1/challenges/"+created.ID+"/join", "alice", nil, nil); code != http.StatusForbidden {
		t.Fatalf("self join: expected 403, got %d", code)
	}
	var joined dto.ChallengeResponse
	if code := api.do(http.MethodPost, "/v1/challenges/"+created.ID+"/join", "bob", nil, &joined); code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", code)
	}
	if joined.LockedFunds != "20.00" {
		t.Fatalf("expected 20.00 locked, got %s", joined.LockedFunds)
	}

	var first dto.SubmitResultResponse
	api.do(http.MethodPost, "/v1/challenges/"+created.ID+"/result", "alice", dto.SubmitResultRequest{WinnerID: "bob"}, &first)
	if first.Outcome != "PENDING" || first.WaitingFor != "bob" {
		t.Fatalf("unexpected first submission: %+v", first)
	}
	if code := api.do(http.MethodPost, "/v1/challenges/"+created.ID+"/result", "alice", dto.SubmitResultRequest{WinnerID: "alice"}, nil); code != http.StatusConflict {
		t.Fatalf("resubmit: expected 409, got %d", code)
	}

	var second dto.SubmitResultResponse
	api.do(http.MethodPost, "/v1/challenges/"+created.ID+"/result", "bob", dto.SubmitResultRequest{WinnerID: "bob"}, &second)
	if second.Outcome != "COMPLETED" || second.Challenge.Status != "PAID" {
		t.Fatalf("unexpected second submission: %+v", second)
	}

	var bal dto.BalanceResponse
	api.do(http.MethodGet, "/v1/wallet/balance", "bob", nil, &bal)
	if bal.Balance != "60.00" {
		t.Fatalf("expected bob balance 60.00, got %s", bal.Balance)
	}

	var txs []dto.TransactionResponse
	api.do(http.MethodGet, "/v1/wallet/transactions", "bob", nil, &txs)
	if len(txs) != 2 || txs[0].Type != string(engine.TxChallengeWinnings) {
		t.Fatalf("unexpected bob history: %+v", txs)
	}

	var audit dto.AuditResponse
	if code := api.do(http.MethodGet, "/v1/admin/audit/"+created.ID, "root", nil, &audit); code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", code)
	}
	if !audit.Balanced || audit.Sum != "0.00" || len(audit.Transactions) != 3 {
		t.Fatalf("unexpected audit: %+v", audit)
	}
}

func TestDisputeResolutionOverHTTP(t *testing.T) {
	api := newAPI(t)

	var c dto.ChallengeResponse
	api.do(http.MethodPost, "/v1/challenges", "alice", dto.CreateChallengeRequest{Stake: "10.00", Type: "FIFA", OpponentID: "bob"}, &c)
	api.do(http.MethodPost, "/v1/challenges/"+c.ID+"/join", "bob", nil, nil)
	api.do(http.MethodPost, "/v1/challenges/"+c.ID+"/result", "alice", dto.SubmitResultRequest{WinnerID: "alice"}, nil)

	var contested dto.SubmitResultResponse
	api.do(http.MethodPost, "/v1/challenges/"+c.ID+"/confirm", "bob", dto.ConfirmResultRequest{Confirmed: false, Reason: "lag"}, &contested)
	if contested.Outcome != "DISPUTED" || contested.DisputeID == "" {
		t.Fatalf("unexpected contest response: %+v", contested)
	}

	if code := api.do(http.MethodGet, "/v1/admin/disputes", "alice", nil, nil); code != http.StatusForbidden {
		t.Fatalf("non-admin list: expected 403, got %d", code)
	}
	var pending []dto.DisputeResponse
	api.do(http.MethodGet, "/v1/admin/disputes", "root", nil, &pending)
	if len(pending) != 1 || pending[0].Reason != "lag" {
		t.Fatalf("unexpected pending disputes: %+v", pending)
	}

	outsider := "mallory"
	if code := api.do(http.MethodPost, "/v1/admin/disputes/"+contested.DisputeID+"/resolve", "root", dto.ResolveDisputeRequest{WinnerID: &outsider}, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("outsider winner: expected 422, got %d", code)
	}

	var res dto.ResolutionResponse
	if code := api.do(http.MethodPost, "/v1/admin/disputes/"+contested.DisputeID+"/resolve", "root", dto.ResolveDisputeRequest{}, &res); code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", code)
	}
	if !res.Draw || res.Payouts["alice"] != "10.00" || res.Payouts["bob"] != "10.00" || res.Challenge.Status != "PAID" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if code := api.do(http.MethodPost, "/v1/admin/disputes/"+contested.DisputeID+"/resolve", "root", dto.ResolveDisputeRequest{}, nil); code != http.StatusConflict {
		t.Fatalf("second resolve: expected 409, got %d", code)
	}
}

func TestResolveWithEmptyChunkedBodyIsDraw(t *testing.T) {
	api := newAPI(t)

	var c dto.ChallengeResponse
	api.do(http.MethodPost, "/v1/challenges", "alice", dto.CreateChallengeRequest{Stake: "10.01", Type: "CHESS"}, &c)
	api.do(http.MethodPost, "/v1/challenges/"+c.ID+"/join", "bob", nil, nil)
	var d dto.DisputeResponse
	if code := api.do(http.MethodPost, "/v1/challenges/"+c.ID+"/disputes", "bob", dto.OpenDisputeRequest{Reason: "no show"}, &d); code != http.StatusCreated {
		t.Fatalf("open dispute: expected 201, got %d", code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/disputes/"+d.ID+"/resolve", strings.NewReader(""))
	req.ContentLength = -1
	token, err := IssueToken([]byte(testSecret), "root", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res dto.ResolutionResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Draw || res.Payouts["alice"] != "10.01" || res.Payouts["bob"] != "10.01" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func strPtr(s string) *string { return &s }

func TestUpdateOpenChallengeOverHTTP(t *testing.T) {
	api := newAPI(t)

	var c dto.ChallengeResponse
	api.do(http.MethodPost, "/v1/challenges", "alice", dto.CreateChallengeRequest{Stake: "10.00", Type: "CHESS"}, &c)

	var updated dto.ChallengeResponse
	req := dto.UpdateChallengeRequest{Stake: strPtr("25.50"), Type: strPtr(" fifa "), OpponentID: strPtr("bob")}
	if code := api.do(http.MethodPatch, "/v1/challenges/"+c.ID, "alice", req, &updated); code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", code)
	}
	if updated.Stake != "25.50" || updated.LockedFunds != "25.50" || updated.Type != "FIFA" || updated.InvitedOpponentID != "bob" {
		t.Fatalf("unexpected updated challenge: %+v", updated)
	}
	var bal dto.BalanceResponse
	api.do(http.MethodGet, "/v1/wallet/balance", "alice", nil, &bal)
	if bal.Balance != "24.50" {
		t.Fatalf("expected alice 24.50 after raise, got %s", bal.Balance)
	}

	if code := api.do(http.MethodPatch, "/v1/challenges/"+c.ID, "bob", dto.UpdateChallengeRequest{Stake: strPtr("1.00")}, nil); code != http.StatusForbidden {
		t.Fatalf("non-creator: expected 403, got %d", code)
	}
	if code := api.do(http.MethodPatch, "/v1/challenges/"+c.ID, "alice", dto.UpdateChallengeRequest{Stake: strPtr("1.001")}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad stake: expected 400, got %d", code)
	}
	if code := api.do(http.MethodPatch, "/v1/challenges/"+c.ID, "alice", dto.UpdateChallengeRequest{}, nil); code != http.StatusBadRequest {
		t.Fatalf("empty update: expected 400, got %d", code)
	}
	if code := api.do(http.MethodPatch, "/v1/challenges/"+c.ID, "alice", dto.UpdateChallengeRequest{Stake: strPtr("100.00")}, nil); code != http.StatusConflict {
		t.Fatalf("raise beyond balance: expected 409, got %d", code)
	}

	api.do(http.MethodPost, "/v1/challenges/"+c.ID+"/join", "bob", nil, nil)
	if code := api.do(http.MethodPatch, "/v1/challenges/"+c.ID, "alice", dto.UpdateChallengeRequest{Stake: strPtr("5.00")}, nil); code != http.StatusConflict {
		t.Fatalf("update after join: expected 409, got %d", code)
	}
}

func TestChallengeDisputesVisibleToParticipantsOnly(t *testing.T) {
	api := newAPI(t)

	var c dto.ChallengeResponse
	api.do(http.MethodPost, "/v1/challenges", "alice", dto.CreateChallengeRequest{Stake: "3.00", Type: "CHESS"}, &c)
	api.do(http.MethodPost, "/v1/challenges/"+c.ID+"/join", "bob", nil, nil)
	var d dto.DisputeResponse
	api.do(http.MethodPost, "/v1/challenges/"+c.ID+"/disputes", "alice", dto.OpenDisputeRequest{Reason: "lag"}, &d)

	for _, user := range []string{"alice", "bob", "root"} {
		var ds []dto.DisputeResponse
		if code := api.do(http.MethodGet, "/v1/challenges/"+c.ID+"/disputes", user, nil, &ds); code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", user, code)
		}
		if len(ds) != 1 || ds[0].ID != d.ID || ds[0].OpenedBy != "alice" {
			t.Fatalf("%s: unexpected disputes %+v", user, ds)
		}
	}
	if code := api.do(http.MethodGet, "/v1/challenges/"+c.ID+"/disputes", "carol", nil, nil); code != http.StatusForbidden {
		t.Fatalf("outsider: expected 403, got %d", code)
	}
	if code := api.do(http.MethodGet, "/v1/challenges/missing/disputes", "alice", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing challenge: expected 404, got %d", code)
	}
}

func TestAdminAdjustAndErrors(t *testing.T) {
	api := newAPI(t)

	var bal dto.BalanceResponse
	if code := api.do(http.MethodPost, "/v1/admin/balance/adjust", "root", dto.AdjustBalanceRequest{UserID: "alice", Amount: "-5.50", Reason: "chargeback"}, &bal); code != http.StatusOK {
		t.Fatalf("adjust: expected 200, got %d", code)
	}
	if bal.BalanceCents != 4450 {
		t.Fatalf("expected 4450 cents, got %d", bal.BalanceCents)
	}
	if code := api.do(http.MethodPost, "/v1/admin/balance/adjust", "root", dto.AdjustBalanceRequest{UserID: "alice", Amount: "-100.00", Reason: "x"}, nil); code != http.StatusConflict {
		t.Fatalf("overdraw: expected 409, got %d", code)
	}
	if code := api.do(http.MethodPost, "/v1/admin/balance/adjust", "alice", dto.AdjustBalanceRequest{UserID: "alice", Amount: "1.00", Reason: "x"}, nil); code != http.StatusForbidden {
		t.Fatalf("non-admin adjust: expected 403, got %d", code)
	}
	if code := api.do(http.MethodPost, "/v1/challenges", "alice", dto.CreateChallengeRequest{Stake: "1.001", Type: "CHESS"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad stake: expected 400, got %d", code)
	}
	if code := api.do(http.MethodPost, "/v1/challenges", "alice", dto.CreateChallengeRequest{Stake: "500.00", Type: "CHESS"}, nil); code != http.StatusConflict {
		t.Fatalf("insufficient: expected 409, got %d", code)
	}
	if code := api.do(http.MethodGet, "/v1/challenges/nope", "alice", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing challenge: expected 404, got %d", code)
	}
}
