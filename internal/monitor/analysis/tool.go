// Package analysis implements Component F: the bounded-concurrency
// media analysis pipeline that runs probe, loudness, and thumbnail
// jobs against a segment URL.
package analysis

import "context"

// ProbeFormat mirrors the "format" block of a probe result (§6).
type ProbeFormat struct {
	FormatName string
	Duration   float64
	Size       int64
	BitRate    int64
}

// ProbeStream mirrors one entry of a probe result's "streams" array.
type ProbeStream struct {
	CodecType      string // "video" | "audio"
	CodecName      string
	Profile        string
	Level          string
	Width          int
	Height         int
	PixFmt         string
	ColorSpace     string
	ColorPrimaries string
	RFrameRate     string
	BitRate        int64
	Channels       int
	SampleRate     int
}

// ProbeResult is the structured output of the probe capability (§6).
type ProbeResult struct {
	Format  ProbeFormat
	Streams []ProbeStream
}

// LoudnessResult is the parsed output of the volumedetect filter (§6).
// Fields are nil when the corresponding value was absent, malformed,
// or non-finite.
type LoudnessResult struct {
	MeanDb *float64
	MaxDb  *float64
}

// Tool is the external media-analysis tool contract (§6). Its
// concrete implementation (typically an ffprobe/ffmpeg invocation) is
// out of scope per §1; CommandLineTool below is a grounded reference
// implementation and FakeTool is provided for tests.
type Tool interface {
	// Probe returns container/codec characterization for the media at
	// url.
	Probe(ctx context.Context, url string) (ProbeResult, error)
	// DetectLoudness runs a volume-detection analysis over url's audio
	// track.
	DetectLoudness(ctx context.Context, url string) (LoudnessResult, error)
	// ExtractThumbnail writes a single JPEG frame extracted from url to
	// destPath.
	ExtractThumbnail(ctx context.Context, url, destPath string) error
}
