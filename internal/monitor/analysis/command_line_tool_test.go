package analysis

import "testing"

func TestParseLoudness_extractsMeanAndMax(t *testing.T) {
	stderr := `[Parsed_volumedetect_0 @ 0x55d1d3a1f340] mean_volume: -23.1 dB
[Parsed_volumedetect_0 @ 0x55d1d3a1f340] max_volume: -5.4 dB
`
	result := parseLoudness(stderr)
	if result.MeanDb == nil || *result.MeanDb != -23.1 {
		t.Fatalf("MeanDb = %v, want -23.1", result.MeanDb)
	}
	if result.MaxDb == nil || *result.MaxDb != -5.4 {
		t.Fatalf("MaxDb = %v, want -5.4", result.MaxDb)
	}
}

func TestParseLoudness_noMatchesLeavesNilFields(t *testing.T) {
	result := parseLoudness("Output #0, null, to 'pipe:':\nStream mapping:\n")
	if result.MeanDb != nil || result.MaxDb != nil {
		t.Fatalf("expected nil MeanDb/MaxDb for stderr with no volumedetect lines, got %+v", result)
	}
}
