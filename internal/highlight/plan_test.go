package highlight

import "testing"

func TestWalkOffsets_TriggerDeepInStream(t *testing.T) {
	got := walkOffsets(300)
	want := []int{210, 240, 270, 300}
	if len(got) != len(want) {
		t.Fatalf("walkOffsets(300) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walkOffsets(300) = %v, want %v", got, want)
		}
	}
}

func TestWalkOffsets_ClampsAtStreamStart(t *testing.T) {
	got := walkOffsets(30)
	want := []int{0, 30}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("walkOffsets(30) = %v, want %v", got, want)
	}

	if got := walkOffsets(0); len(got) != 1 || got[0] != 0 {
		t.Fatalf("walkOffsets(0) = %v, want [0]", got)
	}
}

func TestMarkPlan_FullWindow(t *testing.T) {
	n := 120
	plan := markPlan(n)

	marked := make(map[int]bool)
	filled := make(map[int]bool)
	for _, mk := range plan {
		marked[mk.index] = true
		filled[mk.index] = mk.filled
	}

	// Approach window [n-60, n-30) carries marks only at 6-frame strides.
	for i := n - 60; i < n-30; i++ {
		stride := (i-(n-60))%6 == 0
		if marked[i] != stride {
			t.Errorf("frame %d: marked=%v, want %v", i, marked[i], stride)
		}
		if stride && !filled[i] {
			t.Errorf("approach mark at %d should be filled", i)
		}
	}

	// Every frame of the final 30 carries a mark, alternating by parity.
	for i := n - 30; i < n; i++ {
		if !marked[i] {
			t.Errorf("final-range frame %d unmarked", i)
		}
		if filled[i] != (i%2 == 0) {
			t.Errorf("frame %d: filled=%v, want %v", i, filled[i], i%2 == 0)
		}
	}

	// Nothing before the approach window is marked.
	for i := 0; i < n-60; i++ {
		if marked[i] {
			t.Errorf("frame %d marked outside window", i)
		}
	}
}

func TestMarkPlan_ShortClipOnlyFinalRange(t *testing.T) {
	plan := markPlan(45)
	for _, mk := range plan {
		if mk.index < 15 || mk.index >= 45 {
			t.Errorf("mark at %d outside final range", mk.index)
		}
	}
	if len(plan) != 30 {
		t.Errorf("expected 30 marks, got %d", len(plan))
	}
}

func TestMarkPlan_ClampsBelowThirtyFrames(t *testing.T) {
	plan := markPlan(12)
	if len(plan) != 12 {
		t.Fatalf("expected 12 marks, got %d", len(plan))
	}
	for _, mk := range plan {
		if mk.index < 0 || mk.index >= 12 {
			t.Errorf("mark index %d out of bounds", mk.index)
		}
	}
}

func TestMarkPlan_ExactlySixtyFramesIncludesApproach(t *testing.T) {
	plan := markPlan(60)
	approach := 0
	for _, mk := range plan {
		if mk.index < 30 {
			approach++
		}
	}
	if approach != 5 {
		t.Errorf("expected 5 approach marks at 60 frames, got %d", approach)
	}
}
