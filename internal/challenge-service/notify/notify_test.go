package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakePublisher struct {
	channel string
	payload []byte
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	p.channel = channel
	p.payload = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

type failing struct{ calls int }

func (f *failing) Notify(context.Context, string, events.ChallengeEvent) error {
	f.calls++
	return errors.New("unavailable")
}

func TestKafkaKeysByChallenge(t *testing.T) {
	w := &fakeWriter{}
	k := NewKafka(w, zaptest.NewLogger(t))
	ev := events.ChallengeEvent{Type: events.ChallengePaid, ChallengeID: "c1", WinnerID: "alice", AmountCents: 2000, Ts: time.Now()}

	if err := k.Notify(context.Background(), ev.Type, ev); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "c1" {
		t.Fatalf("unexpected messages: %+v", w.msgs)
	}
	var got events.ChallengeEvent
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.WinnerID != "alice" || got.AmountCents != 2000 {
		t.Fatalf("unexpected payload: %+v", got)
	}

	balance := events.ChallengeEvent{Type: events.BalanceAdjusted, UserID: "bob"}
	_ = k.Notify(context.Background(), balance.Type, balance)
	if string(w.msgs[1].Key) != "bob" {
		t.Fatalf("balance events should be keyed by user, got %q", w.msgs[1].Key)
	}
}

func TestKafkaWrapsWriterError(t *testing.T) {
	k := NewKafka(&fakeWriter{err: errors.New("leader not available")}, zaptest.NewLogger(t))
	if err := k.Notify(context.Background(), "x", events.ChallengeEvent{ChallengeID: "c1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRedisPublishesUpdate(t *testing.T) {
	p := &fakePublisher{}
	r := NewRedis(p, "challenge_updates_broadcast")
	if err := r.Notify(context.Background(), events.ChallengeJoined, events.ChallengeEvent{Type: events.ChallengeJoined, ChallengeID: "c9", UserID: "bob"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if p.channel != "challenge_updates_broadcast" {
		t.Fatalf("unexpected channel %q", p.channel)
	}
	var u events.ChallengeEvent
	if err := json.Unmarshal(p.payload, &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ChallengeID != "c9" || u.Type != events.ChallengeJoined {
		t.Fatalf("unexpected update: %+v", u)
	}
}

func TestMultiDeliversToAllAndJoinsErrors(t *testing.T) {
	bad := &failing{}
	w := &fakeWriter{}
	m := Multi{bad, NewKafka(w, zaptest.NewLogger(t))}

	err := m.Notify(context.Background(), "t", events.ChallengeEvent{ChallengeID: "c1"})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if bad.calls != 1 || len(w.msgs) != 1 {
		t.Fatalf("expected delivery to every notifier, got calls=%d msgs=%d", bad.calls, len(w.msgs))
	}
}
