package dto

import (
	"errors"
	"testing"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"10.00", 1000},
		{"10", 1000},
		{"0.15", 15},
		{"10.5", 1050},
		{"-5.00", -500},
		{"92233720368547758.07", 9223372036854775807},
		{"-92233720368547758.08", -9223372036854775808},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "abc", "10.001", "1e-3", "92233720368547758.08", "184467440737095526.16", "1e30", "-1e30"} {
		if _, err := ParseAmount(bad); !errors.Is(err, ErrBadAmount) {
			t.Fatalf("ParseAmount(%q): expected ErrBadAmount, got %v", bad, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[int64]string{
		0:     "0.00",
		7:     "0.07",
		1000:  "10.00",
		-1550: "-15.50",
	}
	for in, want := range tests {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFromSubmitResultFlattensOutcome(t *testing.T) {
	pending := FromSubmitResult(engine.SubmitResult{Outcome: engine.Pending{WaitingFor: "bob"}})
	if pending.Outcome != "PENDING" || pending.WaitingFor != "bob" || pending.Message != "pending other player" {
		t.Fatalf("unexpected pending response: %+v", pending)
	}
	disputed := FromSubmitResult(engine.SubmitResult{Outcome: engine.Disputed{Reason: engine.DisagreementReason}, DisputeID: "d1"})
	if disputed.Outcome != "DISPUTED" || disputed.DisputeID != "d1" {
		t.Fatalf("unexpected disputed response: %+v", disputed)
	}
}
