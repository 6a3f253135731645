package video

import "testing"

func TestParseFrameRateWithFraction(t *testing.T) {
	fps, err := parseFrameRate("30000/1001")
	if err != nil {
		t.Fatal(err)
	}
	if fps < 29.9 || fps > 30.0 {
		t.Fatalf("fps = %v, want ~29.97", fps)
	}
}

func TestParseFrameRateWholeNumber(t *testing.T) {
	fps, err := parseFrameRate("25")
	if err != nil {
		t.Fatal(err)
	}
	if fps != 25 {
		t.Fatalf("fps = %v, want 25", fps)
	}
}

func TestParseFrameRateRejectsZeroDenominator(t *testing.T) {
	if _, err := parseFrameRate("30/0"); err == nil {
		t.Fatal("expected error for zero denominator")
	}
}
