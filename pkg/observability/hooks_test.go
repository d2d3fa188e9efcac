package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	d := NoopDegradeHooks{}
	d.OnDegradeStart(ctx, "256x256", "gaussian", "power_law")
	d.OnDegradeComplete(ctx, "256x256", "gaussian", "power_law", time.Second, nil)

	s := NoopSweepHooks{}
	s.OnPointStart(ctx, "fixed/base128_x4")
	s.OnPointComplete(ctx, "fixed/base128_x4", 1, time.Minute)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "sweep")
	c.OnCacheMiss(ctx, "sweep")
	c.OnCacheSet(ctx, "sweep", 128)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Degrade().(NoopDegradeHooks); !ok {
		t.Error("Degrade() should return NoopDegradeHooks by default")
	}
	if _, ok := Sweep().(NoopSweepHooks); !ok {
		t.Error("Sweep() should return NoopSweepHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	customDegrade := &countingDegradeHooks{}
	SetDegradeHooks(customDegrade)
	if Degrade() != customDegrade {
		t.Error("SetDegradeHooks should set custom hooks")
	}

	customSweep := &testSweepHooks{}
	SetSweepHooks(customSweep)
	if Sweep() != customSweep {
		t.Error("SetSweepHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	Reset()
	if _, ok := Degrade().(NoopDegradeHooks); !ok {
		t.Error("Reset() should restore NoopDegradeHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &countingDegradeHooks{}
	SetDegradeHooks(custom)
	SetDegradeHooks(nil)

	if Degrade() != custom {
		t.Error("SetDegradeHooks(nil) should be ignored")
	}

	Degrade().OnDegradeStart(context.Background(), "128x128", "uniform", "fixed_grain")
	if custom.starts != 1 {
		t.Errorf("starts = %d, want 1", custom.starts)
	}
}

type countingDegradeHooks struct {
	NoopDegradeHooks
	starts int
}

func (h *countingDegradeHooks) OnDegradeStart(context.Context, string, string, string) { h.starts++ }

type testSweepHooks struct{ NoopSweepHooks }
type testCacheHooks struct{ NoopCacheHooks }
