package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"payoff/internal/core"
)

// fakeRedis answers with canned results built by go-redis' result helpers.
type fakeRedis struct {
	store  map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.store[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.store[key] = string(v)
	case string:
		f.store[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.store[k]; ok {
			delete(f.store, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := NewRedisCache[entry](fake, "payoff:", 5*time.Minute, nil)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, "k", entry{Name: "plan", Count: 3})
	if _, ok := fake.store["payoff:k"]; !ok {
		t.Fatalf("value not stored under prefix: %v", fake.store)
	}
	if fake.ttls["payoff:k"] != 5*time.Minute {
		t.Errorf("ttl = %v, want 5m", fake.ttls["payoff:k"])
	}

	got, ok := c.Get(ctx, "k")
	if !ok || got != (entry{Name: "plan", Count: 3}) {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}

	c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestRedisCache_FailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := NewRedisCache[entry](fake, "", time.Minute, nil)

	fake.store["bad"] = "not gob"
	if _, ok := c.Get(ctx, "bad"); ok {
		t.Error("undecodable entry must be a miss")
	}

	fake.getErr = errors.New("connection refused")
	c.Set(ctx, "k", entry{Name: "x"})
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("backend error must be a miss")
	}
}

func TestRedisCache_KeepsExactAmounts(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCache[core.SimulationOutput](newFakeRedis(), "", time.Minute, nil)
	lru := NewLRUCache[core.SimulationOutput](10, time.Minute)

	out := core.SimulationOutput{
		Method:       core.Avalanche,
		ExtraPayment: core.MustParseMoney("12.345"),
		Results: []core.PayoffResult{{
			DebtID:            "card",
			PaidOff:           true,
			PayoffMonth:       7,
			OriginalBalance:   core.MustParseMoney("1000.005"),
			TotalInterestPaid: core.MustParseMoney("41.23456789"),
		}},
		Aggregate: core.AggregateStats{TotalMonthsToPayoff: 7, TotalInterestPaid: core.MustParseMoney("41.23456789")},
	}
	c.Set(ctx, "k", out)
	lru.Set(ctx, "k", out)

	fromRedis, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	fromLRU, _ := lru.Get(ctx, "k")

	for _, tc := range []struct {
		name      string
		got, want core.Money
	}{
		{"extra payment", fromRedis.ExtraPayment, fromLRU.ExtraPayment},
		{"original balance", fromRedis.Results[0].OriginalBalance, fromLRU.Results[0].OriginalBalance},
		{"interest", fromRedis.Aggregate.TotalInterestPaid, out.Aggregate.TotalInterestPaid},
	} {
		if !tc.got.Equal(tc.want) {
			t.Errorf("%s = %s, want exact %s", tc.name, tc.got.Decimal(), tc.want.Decimal())
		}
	}
	if fromRedis.Method != core.Avalanche || fromRedis.Results[0].PayoffMonth != 7 {
		t.Errorf("unexpected output %+v", fromRedis)
	}
}
