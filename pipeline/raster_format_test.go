package pipeline

import (
	"testing"
)

func TestParseQualityLevelsSingleValue(t *testing.T) {
	levels, err := ParseQualityLevels("80")
	if err != nil {
		t.Fatalf("ParseQualityLevels: %v", err)
	}
	for z := 0; z < 32; z++ {
		if levels[z] != 80 {
			t.Fatalf("zoom %d: expected 80, got %d", z, levels[z])
		}
	}
}

func TestParseQualityLevelsPerZoomOverrides(t *testing.T) {
	levels, err := ParseQualityLevels("80,70,14:50,15:20")
	if err != nil {
		t.Fatalf("ParseQualityLevels: %v", err)
	}
	want := map[int]uint8{}
	want[0] = 80
	for z := 1; z <= 13; z++ {
		want[z] = 70
	}
	want[14] = 50
	for z := 15; z < 32; z++ {
		want[z] = 20
	}
	for z := 0; z < 32; z++ {
		if levels[z] != want[z] {
			t.Fatalf("zoom %d: expected %d, got %d", z, want[z], levels[z])
		}
	}
}

func TestParseQualityLevelsRejectsZoomAbove31(t *testing.T) {
	if _, err := ParseQualityLevels("32:10"); err == nil {
		t.Fatalf("expected ParseQualityLevels to reject zoom 32")
	}
}

func TestParseQualityLevelsRejectsQualityAbove100(t *testing.T) {
	if _, err := ParseQualityLevels("150"); err == nil {
		t.Fatalf("expected ParseQualityLevels to reject quality 150")
	}
}

func TestParseQualityLevelsEmptyIsZero(t *testing.T) {
	levels, err := ParseQualityLevels("")
	if err != nil {
		t.Fatalf("ParseQualityLevels: %v", err)
	}
	for z := 0; z < 32; z++ {
		if levels[z] != 0 {
			t.Fatalf("zoom %d: expected 0, got %d", z, levels[z])
		}
	}
}
