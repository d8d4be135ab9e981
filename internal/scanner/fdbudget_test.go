package scanner

import "testing"

// TestFDStarvedSystem reproduces spec.md §8 scenario 4: ulimit -n 256.
func TestFDStarvedSystem(t *testing.T) {
	b := DeriveBudget(256, 0)
	if b.Available != 53 {
		t.Errorf("available = %d, want 53", b.Available)
	}
	if b.PortBatchSize != 10 {
		t.Errorf("port batch = %d, want 10", b.PortBatchSize)
	}
	if b.ConcurrentHosts != 1 {
		t.Errorf("concurrent hosts = %d, want 1", b.ConcurrentHosts)
	}
}

func TestUserConcurrencyOverride(t *testing.T) {
	b := DeriveBudget(100000, 7)
	if b.ConcurrentHosts != 7 {
		t.Errorf("concurrent hosts = %d, want override 7", b.ConcurrentHosts)
	}
}

func TestDeriveBudgetNeverReturnsZeroAvailable(t *testing.T) {
	b := DeriveBudget(0, 0)
	if b.Available < 1 {
		t.Errorf("available = %d, want >= 1", b.Available)
	}
}
