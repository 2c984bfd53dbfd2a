package inhibition

import (
	"testing"
	"time"
)

func TestDefaultBetaIsOne(t *testing.T) {
	s := New(10 * time.Millisecond)
	if got := s.CurrentBeta(); got != 1.0 {
		t.Errorf("default beta = %v, want 1.0", got)
	}
}

func TestActivateThenExpire(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.Activate(2.0, 2) // expires in 10ms

	if got := s.CurrentBeta(); got != 2.0 {
		t.Fatalf("beta right after activate = %v, want 2.0", got)
	}

	time.Sleep(20 * time.Millisecond)

	if got := s.CurrentBeta(); got != 1.0 {
		t.Errorf("beta after expiry = %v, want 1.0", got)
	}
}

func TestActivateOverwritesPriorValue(t *testing.T) {
	s := New(time.Millisecond)
	s.Activate(3.0, 1000)
	s.Activate(5.0, 1000)
	if got := s.CurrentBeta(); got != 5.0 {
		t.Errorf("second activate should overwrite, got beta=%v want 5.0", got)
	}
}

func TestActivateNegativeStepsTreatedAsZero(t *testing.T) {
	s := New(time.Hour)
	s.Activate(4.0, -3)
	// With zero steps, expiry should be ~now, so beta reverts immediately.
	time.Sleep(time.Millisecond)
	if got := s.CurrentBeta(); got != 1.0 {
		t.Errorf("negative step count should behave like 0, got beta=%v", got)
	}
}

func TestSnapshotMatchesCurrentBeta(t *testing.T) {
	s := New(time.Second)
	s.Activate(1.5, 5)
	snap := s.Snapshot()
	if snap.Beta != 1.5 {
		t.Errorf("snapshot beta = %v, want 1.5", snap.Beta)
	}
	if snap.Expiry.IsZero() {
		t.Errorf("snapshot expiry should not be zero while active")
	}
}
