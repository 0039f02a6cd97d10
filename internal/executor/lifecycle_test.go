package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// scriptedOracle reports Filled for instruments listed per state and counts
// how often each instrument was asked about.
type scriptedOracle struct {
	mu     sync.Mutex
	filled map[domain.OrderState]map[string]bool
	calls  map[string]int
	err    error
	forgot []string
}

func newScriptedOracle() *scriptedOracle {
	return &scriptedOracle{
		filled: map[domain.OrderState]map[string]bool{
			domain.OrderStateBuying:  {},
			domain.OrderStateSelling: {},
		},
		calls: map[string]int{},
	}
}

func (o *scriptedOracle) fill(state domain.OrderState, instrument string) {
	o.mu.Lock()
	o.filled[state][instrument] = true
	o.mu.Unlock()
}

func (o *scriptedOracle) FillStatus(ctx context.Context, order domain.Order) (domain.FillStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[order.InstrumentID]++
	if o.err != nil {
		return domain.FillPending, o.err
	}
	if o.filled[order.State][order.InstrumentID] {
		return domain.FillFilled, nil
	}
	return domain.FillPending, nil
}

func (o *scriptedOracle) Forget(id string) {
	o.mu.Lock()
	o.forgot = append(o.forgot, id)
	o.mu.Unlock()
}

type recorded struct {
	order  domain.Order
	profit float64
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []recorded
}

func (r *fakeRecorder) Record(ctx context.Context, order domain.Order, profit float64) {
	r.mu.Lock()
	r.recs = append(r.recs, recorded{order, profit})
	r.mu.Unlock()
}

func newTestManager(capacity int, oracle domain.FillOracle, rec ProfitRecorder, clock *fakeClock) *Manager {
	return NewManager(Config{
		MaxConcurrent: capacity,
		OrderTimeout:  60 * time.Second,
		Now:           clock.Now,
	}, oracle, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func opp(id string, buy, sell float64, qty int) domain.Opportunity {
	return domain.Opportunity{InstrumentID: id, BuyPrice: buy, SellPrice: sell, Quantity: qty}
}

func TestAdmitRespectsConcurrencyCap(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newTestManager(2, newScriptedOracle(), nil, clock)

	for _, id := range []string{"A", "B"} {
		o, err := m.Admit(opp(id, 10, 12, 4))
		if err != nil {
			t.Fatalf("admit %s: %v", id, err)
		}
		if o.State != domain.OrderStateBuying || o.TotalCost != 40 || o.ID == "" {
			t.Fatalf("unexpected order %+v", o)
		}
		if !o.EnteredStateAt.Equal(clock.Now()) {
			t.Fatalf("EnteredStateAt = %v, want %v", o.EnteredStateAt, clock.Now())
		}
	}
	if _, err := m.Admit(opp("C", 10, 12, 4)); !errors.Is(err, domain.ErrConcurrencyCap) {
		t.Fatalf("third admit err = %v, want ErrConcurrencyCap", err)
	}
	if m.Count() != 2 {
		t.Fatalf("count = %d, want 2", m.Count())
	}
}

func TestBuyingOrderExpiresAfterTimeout(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	oracle := newScriptedOracle()
	m := newTestManager(5, oracle, nil, clock)
	ctx := context.Background()

	if _, err := m.Admit(opp("A", 10, 12, 1)); err != nil {
		t.Fatal(err)
	}

	clock.Advance(59_999 * time.Millisecond)
	if tr := m.Check(ctx); len(tr) != 0 || m.Count() != 1 {
		t.Fatalf("order should still be present at t0+59999ms, transitions=%v", tr)
	}

	clock.Advance(2 * time.Millisecond)
	tr := m.Check(ctx)
	if len(tr) != 1 || tr[0].Kind != domain.EventOrderExpired {
		t.Fatalf("transitions = %+v, want one expiry", tr)
	}
	if tr[0].Order.State != domain.OrderStateBuying {
		t.Fatalf("expired in state %s, want buying", tr[0].Order.State)
	}
	if m.Count() != 0 {
		t.Fatalf("count = %d, want 0", m.Count())
	}
	if len(oracle.forgot) != 1 {
		t.Fatalf("expired order not forgotten by venue")
	}
}

func TestSellTimeoutMeasuredFromFill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	oracle := newScriptedOracle()
	m := newTestManager(5, oracle, nil, clock)
	ctx := context.Background()

	if _, err := m.Admit(opp("A", 10, 12, 1)); err != nil {
		t.Fatal(err)
	}

	clock.Advance(50 * time.Second)
	oracle.fill(domain.OrderStateBuying, "A")
	tr := m.Check(ctx)
	if len(tr) != 1 || tr[0].Kind != domain.EventBuyFilled {
		t.Fatalf("transitions = %+v, want buy fill", tr)
	}
	filledAt := clock.Now()
	if got := m.Active()[0]; got.State != domain.OrderStateSelling || !got.EnteredStateAt.Equal(filledAt) {
		t.Fatalf("after fill: %+v", got)
	}

	clock.Advance(59_999 * time.Millisecond)
	if tr := m.Check(ctx); len(tr) != 0 {
		t.Fatalf("selling order expired early: %+v", tr)
	}

	clock.Advance(2 * time.Millisecond)
	tr = m.Check(ctx)
	if len(tr) != 1 || tr[0].Kind != domain.EventOrderExpired || tr[0].Order.State != domain.OrderStateSelling {
		t.Fatalf("transitions = %+v, want selling expiry", tr)
	}
}

func TestCompletionRecordsProfit(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	oracle := newScriptedOracle()
	rec := &fakeRecorder{}
	m := newTestManager(5, oracle, rec, clock)
	ctx := context.Background()

	if _, err := m.Admit(opp("A", 1000, 1100, 64)); err != nil {
		t.Fatal(err)
	}
	oracle.fill(domain.OrderStateBuying, "A")
	oracle.fill(domain.OrderStateSelling, "A")

	m.Check(ctx)
	tr := m.Check(ctx)
	if len(tr) != 1 || tr[0].Kind != domain.EventFlipCompleted {
		t.Fatalf("transitions = %+v, want completion", tr)
	}
	if want := 1100.0*64 - 1000.0*64; tr[0].Profit != want {
		t.Fatalf("profit = %v, want %v", tr[0].Profit, want)
	}
	if len(rec.recs) != 1 || rec.recs[0].profit != tr[0].Profit {
		t.Fatalf("recorder got %+v", rec.recs)
	}
	if m.Count() != 0 {
		t.Fatalf("completed order still managed")
	}
}

func TestCheckEvaluatesEachOrderOnce(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	oracle := newScriptedOracle()
	m := newTestManager(10, oracle, &fakeRecorder{}, clock)
	ctx := context.Background()

	if _, err := m.Admit(opp("OLD", 10, 12, 1)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(61 * time.Second)
	for _, id := range []string{"B", "C", "D"} {
		if _, err := m.Admit(opp(id, 10, 12, 1)); err != nil {
			t.Fatal(err)
		}
	}
	oracle.fill(domain.OrderStateBuying, "B")
	oracle.fill(domain.OrderStateBuying, "C")
	oracle.fill(domain.OrderStateSelling, "C")

	tr := m.Check(ctx)
	if len(tr) != 3 {
		t.Fatalf("transitions = %+v, want 3", tr)
	}
	if oracle.calls["OLD"] != 0 {
		t.Fatalf("expired order was polled")
	}
	for _, id := range []string{"B", "C", "D"} {
		if oracle.calls[id] != 1 {
			t.Fatalf("%s polled %d times, want 1", id, oracle.calls[id])
		}
	}

	active := m.Active()
	if len(active) != 3 {
		t.Fatalf("active = %d, want 3", len(active))
	}
	states := map[string]domain.OrderState{}
	for _, o := range active {
		states[o.InstrumentID] = o.State
	}
	if states["B"] != domain.OrderStateSelling || states["C"] != domain.OrderStateSelling || states["D"] != domain.OrderStateBuying {
		t.Fatalf("states = %v", states)
	}
}

func TestOracleErrorLeavesOrderPending(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	oracle := newScriptedOracle()
	oracle.err = errors.New("venue offline")
	m := newTestManager(5, oracle, nil, clock)

	if _, err := m.Admit(opp("A", 10, 12, 1)); err != nil {
		t.Fatal(err)
	}
	if tr := m.Check(context.Background()); len(tr) != 0 {
		t.Fatalf("transitions = %+v, want none", tr)
	}
	if got := m.Active()[0].State; got != domain.OrderStateBuying {
		t.Fatalf("state = %s, want buying", got)
	}
}

func TestAbandonClearsOrders(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newTestManager(5, newScriptedOracle(), nil, clock)
	if _, err := m.Admit(opp("A", 10, 12, 1)); err != nil {
		t.Fatal(err)
	}
	if got := m.Abandon(); len(got) != 1 {
		t.Fatalf("abandoned %d orders, want 1", len(got))
	}
	if m.Count() != 0 {
		t.Fatalf("count = %d after abandon", m.Count())
	}
}

// seenOracle fills every buy and records the live state of each order at the
// moment the next one is polled.
type seenOracle struct {
	m    *Manager
	seen []map[string]domain.OrderState
}

func (o *seenOracle) FillStatus(ctx context.Context, order domain.Order) (domain.FillStatus, error) {
	states := map[string]domain.OrderState{}
	for _, a := range o.m.Active() {
		states[a.InstrumentID] = a.State
	}
	o.seen = append(o.seen, states)
	if order.State == domain.OrderStateBuying {
		return domain.FillFilled, nil
	}
	return domain.FillPending, nil
}

func TestCheckAppliesBuyFillBeforeNextPoll(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	oracle := &seenOracle{}
	m := newTestManager(5, oracle, nil, clock)
	oracle.m = m

	for _, id := range []string{"A", "B"} {
		if _, err := m.Admit(opp(id, 10, 12, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if tr := m.Check(context.Background()); len(tr) != 2 {
		t.Fatalf("transitions = %+v, want 2", tr)
	}
	if len(oracle.seen) != 2 {
		t.Fatalf("polls = %d, want 2", len(oracle.seen))
	}
	// The first order polled must already be selling when the second is asked.
	second := oracle.seen[1]
	selling := 0
	for _, st := range second {
		if st == domain.OrderStateSelling {
			selling++
		}
	}
	if selling != 1 {
		t.Fatalf("states during second poll = %v, want one selling", second)
	}
}
