package idhash

import "testing"

func TestComputeEventID(t *testing.T) {
	base := ComputeEventID("Sig1", "Prog1", 0)

	if len(base) != 64 {
		t.Errorf("ComputeEventID() length = %d, want 64", len(base))
	}

	if again := ComputeEventID("Sig1", "Prog1", 0); again != base {
		t.Errorf("ComputeEventID() not deterministic: %s != %s", again, base)
	}

	// Different event_index should produce different hash
	if ComputeEventID("Sig1", "Prog1", 1) == base {
		t.Error("Different event_index should produce different hash")
	}

	// Different signature should produce different hash
	if ComputeEventID("Sig2", "Prog1", 0) == base {
		t.Error("Different signature should produce different hash")
	}
}

func TestComputeFeedRecordID(t *testing.T) {
	live := ComputeFeedRecordID("Feed1", "live", 100, 1700000000)
	historical := ComputeFeedRecordID("Feed1", "historical", 100, 1700000000)

	if len(live) != 64 {
		t.Errorf("ComputeFeedRecordID() length = %d, want 64", len(live))
	}
	if live == historical {
		t.Error("Different window should produce different hash")
	}
	if ComputeFeedRecordID("Feed1", "live", 101, 1700000000) == live {
		t.Error("Different slot should produce different hash")
	}
}
