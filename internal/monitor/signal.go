package monitor

// Reference bitrates used to normalize bitrate into a 0-100 "signal
// level" (§4.F "Signal-level derivation").
const (
	videoBitrateReference = 5_000_000.0
	audioBitrateReference = 320_000.0
)

// SignalLevel normalizes bitrate against reference into [0,100].
func SignalLevel(bitrate int64, reference float64) float64 {
	return clamp(float64(bitrate)/reference*100, 0, 100)
}
