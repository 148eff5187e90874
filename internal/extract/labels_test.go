package extract

import (
	"reflect"
	"testing"
)

func TestNewLabelSet_TrimsAndDeduplicates(t *testing.T) {
	s := NewLabelSet(" Date ", "Amount", "", "Date", "Merchant")
	want := []string{"Date", "Amount", "Merchant"}
	if got := s.Labels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if i, ok := s.Index("Merchant"); !ok || i != 2 {
		t.Fatalf("index of Merchant = %d, %v", i, ok)
	}
	if s.Has("Noise") {
		t.Fatalf("unexpected label")
	}
}

func TestParseTrailingPolicy(t *testing.T) {
	cases := map[string]TrailingPolicy{"": TrailingSkip, "skip": TrailingSkip, "FAIL": TrailingFail}
	for in, want := range cases {
		got, err := ParseTrailingPolicy(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v, %v", in, got, err)
		}
	}
	if _, err := ParseTrailingPolicy("raise"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
