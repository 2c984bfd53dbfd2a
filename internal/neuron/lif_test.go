package neuron

import "testing"

func TestSensorFiresAndResets(t *testing.T) {
	s := NewSensor(1.0, 10.0, 0)
	var spike bool
	for i := 0; i < 5; i++ {
		spike, _ = s.Step(2.0, 1.0)
	}
	if !spike {
		t.Fatalf("expected spike on 5th step")
	}
	if got := s.Potential(); got != 0 {
		t.Errorf("potential after firing = %v, want 0", got)
	}
}

func TestSensorRefractorySilence(t *testing.T) {
	s := NewSensor(1.0, 10.0, 2)
	for i := 0; i < 5; i++ {
		s.Step(2.0, 1.0)
	}
	// Fired on step 5 (index 4); refractory counts down for the next 2 steps.
	spike, suppressed := s.Step(100.0, 1.0)
	if spike || suppressed {
		t.Fatalf("expected silence during refractory, got spike=%v suppressed=%v", spike, suppressed)
	}
	if got := s.Refractory(); got != 1 {
		t.Errorf("refractory countdown = %d, want 1", got)
	}
}

func TestSensorSuppressedWhenInhibited(t *testing.T) {
	// theta=10, beta=2 -> theta_eff=20. Drive u to exactly 15 in one step.
	s := NewSensor(0.0, 10.0, 0)
	spike, suppressed := s.Step(15.0, 2.0)
	if spike {
		t.Fatalf("expected no spike, membrane 15 < theta_eff 20")
	}
	if !suppressed {
		t.Fatalf("expected suppressed: theta_base(10) <= 15 < theta_eff(20)")
	}
	if got := s.Potential(); got != 15.0 {
		t.Errorf("potential retained after suppression = %v, want 15", got)
	}
}

func TestSensorNotSuppressedBelowBaseline(t *testing.T) {
	s := NewSensor(0.0, 10.0, 0)
	spike, suppressed := s.Step(5.0, 2.0)
	if spike || suppressed {
		t.Fatalf("value below theta_base must be neither spike nor suppressed, got spike=%v suppressed=%v", spike, suppressed)
	}
}

func TestSensorNoSuppressionWithoutInhibition(t *testing.T) {
	// beta=1: never suppressed regardless of how close to theta_base.
	s := NewSensor(0.0, 10.0, 0)
	_, suppressed := s.Step(9.9, 1.0)
	if suppressed {
		t.Fatalf("suppressed must require beta > 1")
	}
}

func TestSensorReset(t *testing.T) {
	s := NewSensor(1.0, 10.0, 3)
	s.Step(10.0, 1.0) // fires, arms refractory
	s.Reset()
	if s.Potential() != 0 || s.Refractory() != 0 {
		t.Fatalf("reset did not clear state: u=%v r=%v", s.Potential(), s.Refractory())
	}
}

func TestAggregatorFiresAndResets(t *testing.T) {
	a := NewAggregator(1.0, 3.0)
	fired := false
	for i := 0; i < 3; i++ {
		fired = a.Step(1.0)
	}
	if !fired {
		t.Fatalf("expected aggregator to fire on 3rd spike")
	}
	if got := a.Potential(); got != 0 {
		t.Errorf("potential after firing = %v, want 0", got)
	}
}

func TestAggregatorTheta(t *testing.T) {
	a := NewAggregator(0.9, 5.0)
	if a.Theta() != 5.0 {
		t.Errorf("Theta() = %v, want 5.0", a.Theta())
	}
}
