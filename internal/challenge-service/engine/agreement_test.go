package engine

import "testing"

func TestReconcile(t *testing.T) {
	base := Challenge{CreatorID: "a", OpponentID: "b", Status: StatusInProgress}
	tests := []struct {
		name     string
		creator  string
		opponent string
		want     SubmitOutcome
	}{
		{"nobody submitted", "", "", Pending{}},
		{"waiting for opponent", "a", "", Pending{WaitingFor: "b"}},
		{"waiting for creator", "", "b", Pending{WaitingFor: "a"}},
		{"agree on creator", "a", "a", Completed{WinnerID: "a"}},
		{"agree on opponent", "b", "b", Completed{WinnerID: "b"}},
		{"disagree", "a", "b", Disputed{Reason: DisagreementReason}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			c.CreatorSubmittedWinnerID = tt.creator
			c.OpponentSubmittedWinnerID = tt.opponent
			if got := Reconcile(c); got != tt.want {
				t.Fatalf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestSplitDrawGivesRemainderToCreator(t *testing.T) {
	tests := []struct {
		locked, creator, opponent int64
	}{
		{2000, 1000, 1000},
		{15, 8, 7},
		{1, 1, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		c, o := SplitDraw(tt.locked)
		if c != tt.creator || o != tt.opponent {
			t.Fatalf("SplitDraw(%d) = %d/%d, want %d/%d", tt.locked, c, o, tt.creator, tt.opponent)
		}
		if c+o != tt.locked {
			t.Fatalf("SplitDraw(%d) lost %d cents", tt.locked, tt.locked-c-o)
		}
	}
}

func TestRecordSubmissionSides(t *testing.T) {
	c := Challenge{CreatorID: "a", OpponentID: "b"}
	recordSubmission(&c, "b", "a")
	if c.OpponentSubmittedWinnerID != "a" || c.CreatorSubmittedWinnerID != "" {
		t.Fatalf("submission recorded on wrong side: %+v", c)
	}
	if submittedBy(&c, "b") != "a" || otherSide(&c, "a") != "a" {
		t.Fatalf("side lookup mismatch")
	}
}
