package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
)

type ping struct{ N int }

func (ping) Kind() string { return "ping" }

type recorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *recorder) Handle(_ context.Context, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, env.Msg.(ping).N)
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func waitIdle(t *testing.T, b *Local) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.WaitIdle(ctx); err != nil {
		t.Fatalf("bus did not settle: %v", err)
	}
}

func TestLocal_FIFOPerPair(t *testing.T) {
	b := NewLocal(zap.NewNop())
	defer b.Close()

	rec := &recorder{}
	if err := b.Register("child", rec); err != nil {
		t.Fatal(err)
	}

	want := make([]int, 100)
	for i := range want {
		want[i] = i
		if err := b.Send(context.Background(), Envelope{From: "top", To: "child", Msg: ping{N: i}}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	waitIdle(t, b)

	if diff := cmp.Diff(want, rec.values()); diff != "" {
		t.Errorf("delivery order mismatch (-want +got):\n%s", diff)
	}
}

func TestLocal_WaitIdleCoversCascades(t *testing.T) {
	b := NewLocal(zap.NewNop())
	defer b.Close()

	leaf := &recorder{}
	if err := b.Register("leaf", leaf); err != nil {
		t.Fatal(err)
	}
	relay := HandlerFunc(func(ctx context.Context, env Envelope) {
		n := env.Msg.(ping).N
		if n > 0 {
			_ = b.Send(ctx, Envelope{From: "relay", To: "relay", Msg: ping{N: n - 1}})
			return
		}
		_ = b.Send(ctx, Envelope{From: "relay", To: "leaf", Msg: ping{N: 42}})
	})
	if err := b.Register("relay", relay); err != nil {
		t.Fatal(err)
	}

	if err := b.Send(context.Background(), Envelope{To: "relay", Msg: ping{N: 10}}); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, b)

	if diff := cmp.Diff([]int{42}, leaf.values()); diff != "" {
		t.Errorf("cascade did not finish before idle (-want +got):\n%s", diff)
	}
}

func TestLocal_MissingDelivery(t *testing.T) {
	b := NewLocal(zap.NewNop())
	defer b.Close()

	err := b.Send(context.Background(), Envelope{To: "nobody", Msg: ping{}})
	if !errors.Is(err, domain.ErrMissingDelivery) {
		t.Fatalf("expected ErrMissingDelivery, got %v", err)
	}

	if err := b.Register("gone", &recorder{}); err != nil {
		t.Fatal(err)
	}
	b.Remove("gone")
	err = b.Send(context.Background(), Envelope{To: "gone", Msg: ping{}})
	if !errors.Is(err, domain.ErrMissingDelivery) {
		t.Fatalf("expected ErrMissingDelivery after remove, got %v", err)
	}
	waitIdle(t, b)
}

func TestLocal_RemoveDiscardsQueue(t *testing.T) {
	b := NewLocal(zap.NewNop())
	defer b.Close()

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	h := HandlerFunc(func(context.Context, Envelope) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
	})
	if err := b.Register("slow", h); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := b.Send(context.Background(), Envelope{To: "slow", Msg: ping{N: i}}); err != nil {
			t.Fatal(err)
		}
	}
	<-started
	b.Remove("slow")
	close(block)

	waitIdle(t, b)
}

func TestLocal_InterceptorDrops(t *testing.T) {
	rec := &recorder{}
	b := NewLocal(zap.NewNop(), WithInterceptor(func(env Envelope) bool {
		return env.Msg.(ping).N%2 == 0
	}))
	defer b.Close()

	if err := b.Register(hint.ContextID("c"), rec); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 6; i++ {
		if err := b.Send(context.Background(), Envelope{To: "c", Msg: ping{N: i}}); err != nil {
			t.Fatal(err)
		}
	}
	waitIdle(t, b)

	if diff := cmp.Diff([]int{0, 2, 4}, rec.values()); diff != "" {
		t.Errorf("interceptor mismatch (-want +got):\n%s", diff)
	}
}

func TestLocal_RegisterTwice(t *testing.T) {
	b := NewLocal(zap.NewNop())
	defer b.Close()

	if err := b.Register("x", &recorder{}); err != nil {
		t.Fatal(err)
	}
	if err := b.Register("x", &recorder{}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
