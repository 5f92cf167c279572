package grapheme

import "testing"

func TestCount_MultiRuneGraphemes(t *testing.T) {
	text := "a" + "é" + "\U0001F468‍\U0001F469‍\U0001F467‍\U0001F466" + "b"
	if c := Count(text); c != 4 {
		t.Fatalf("count=%d, want %d", c, 4)
	}
}

func TestSnap_InsideCluster(t *testing.T) {
	// "e" + combining acute: one cluster, three bytes.
	text := "éb"
	cases := []struct {
		off       int
		wantLeft  int
		wantRight int
	}{
		{off: 0, wantLeft: 0, wantRight: 0},
		{off: 1, wantLeft: 0, wantRight: 3},
		{off: 2, wantLeft: 0, wantRight: 3},
		{off: 3, wantLeft: 3, wantRight: 3},
		{off: 4, wantLeft: 4, wantRight: 4},
		{off: -1, wantLeft: 0, wantRight: 0},
		{off: 99, wantLeft: 4, wantRight: 4},
	}
	for _, tc := range cases {
		if got := SnapLeft(text, tc.off); got != tc.wantLeft {
			t.Fatalf("SnapLeft(%d)=%d, want %d", tc.off, got, tc.wantLeft)
		}
		if got := SnapRight(text, tc.off); got != tc.wantRight {
			t.Fatalf("SnapRight(%d)=%d, want %d", tc.off, got, tc.wantRight)
		}
	}
}

func TestBoundarySteps(t *testing.T) {
	text := "a" + "é" + "b"
	if got, want := NextBoundary(text, 0), 1; got != want {
		t.Fatalf("NextBoundary(0)=%d, want %d", got, want)
	}
	if got, want := NextBoundary(text, 1), 4; got != want {
		t.Fatalf("NextBoundary(1)=%d, want %d", got, want)
	}
	if got, want := NextBoundary(text, 5), 5; got != want {
		t.Fatalf("NextBoundary at end=%d, want %d", got, want)
	}
	if got, want := PrevBoundary(text, 4), 1; got != want {
		t.Fatalf("PrevBoundary(4)=%d, want %d", got, want)
	}
	if got, want := PrevBoundary(text, 0), 0; got != want {
		t.Fatalf("PrevBoundary(0)=%d, want %d", got, want)
	}
}

func TestClusterOffset(t *testing.T) {
	text := "a" + "é" + "b"
	cases := []struct {
		n    int
		want int
	}{
		{n: 0, want: 0},
		{n: 1, want: 1},
		{n: 2, want: 4},
		{n: 3, want: 5},
		{n: 9, want: 5},
		{n: -1, want: 0},
	}
	for _, tc := range cases {
		if got := ClusterOffset(text, tc.n); got != tc.want {
			t.Fatalf("ClusterOffset(%d)=%d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestIsSpace(t *testing.T) {
	if !IsSpace("\t") {
		t.Fatalf("tab should be space")
	}
	if IsSpace("a") {
		t.Fatalf("letter should not be space")
	}
}
