package batch

import "testing"

func TestCursors_ZeroValue(t *testing.T) {
	var c Cursors
	if got := c.Advance("IND", 10, 3); got != 0 {
		t.Errorf("first Advance() = %d, want 0", got)
	}
	if got := c.Advance("IND", 10, 3); got != 3 {
		t.Errorf("second Advance() = %d, want 3", got)
	}
}

func TestCursors_AdvancePanicsOnEmptyPool(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Advance(size=0) did not panic")
		}
	}()
	NewCursors().Advance("IND", 0, 1)
}
