package tstamp

import (
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	in := time.Date(2023, 5, 17, 9, 8, 7, 123456000, time.UTC)
	s := Encode(in)
	if len(s) != Width {
		t.Fatalf("encoded length = %d, want %d", len(s), Width)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(in) {
		t.Errorf("got %s, want %s", got, in)
	}
}

func TestEncodeFilename(t *testing.T) {
	in := time.Date(2023, 5, 17, 9, 8, 7, 123456000, time.UTC)
	fn := EncodeFilename(in)
	if fn == Encode(in) {
		t.Fatal("EncodeFilename should differ from Encode when colons are present")
	}
	got, err := Decode(fn)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(in) {
		t.Errorf("got %s, want %s", got, in)
	}
}

func TestLexicographicOrderMatchesTemporalOrder(t *testing.T) {
	earlier := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Microsecond)
	if !(Encode(earlier) < Encode(later)) {
		t.Fatalf("expected %s < %s", Encode(earlier), Encode(later))
	}
}

func TestRound(t *testing.T) {
	in := time.Date(2023, 5, 17, 9, 8, 7, 123456789, time.UTC)
	rounded, err := Round(in)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Round(rounded)
	if err != nil {
		t.Fatal(err)
	}
	if !rounded.Equal(again) {
		t.Errorf("Round is not idempotent: %s != %s", rounded, again)
	}
	d := rounded.Sub(in)
	if d < 0 {
		d = -d
	}
	if d >= time.Microsecond {
		t.Errorf("rounding drifted by %s", d)
	}
}
