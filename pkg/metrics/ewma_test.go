package metrics

import "testing"

func TestEWMAZeroBeforeFirstTick(t *testing.T) {
	e := NewEWMA1()
	if e.Rate() != 0 {
		t.Fatalf("expected zero rate before any Tick, got %f", e.Rate())
	}
}

func TestEWMAFirstTickSetsInstantRate(t *testing.T) {
	e := StandardEWMA(0.5)
	e.Update(50) // 50 cycles over the 5-second interval
	e.Tick()
	if got := e.Rate(); got != 10 {
		t.Fatalf("expected first tick to set the instant rate 10, got %f", got)
	}
}

func TestEWMADecaysTowardNewRate(t *testing.T) {
	e := StandardEWMA(0.5)
	e.Update(50)
	e.Tick()
	first := e.Rate()

	e.Update(250) // a burst of chunk throughput
	e.Tick()
	second := e.Rate()

	if second <= first {
		t.Fatalf("expected rate to move toward the higher instant rate: first=%f second=%f", first, second)
	}
}

func TestEWMAWindowConstructors(t *testing.T) {
	if NewEWMA1().alpha <= NewEWMA5().alpha {
		t.Fatalf("expected the 1-minute window's alpha to exceed the 5-minute window's")
	}
	if NewEWMA5().alpha <= NewEWMA15().alpha {
		t.Fatalf("expected the 5-minute window's alpha to exceed the 15-minute window's")
	}
}
