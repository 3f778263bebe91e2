package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
)

// CommandLineTool shells out to ffprobe/ffmpeg for the three analysis
// capabilities. Grounded on
// randomizedcoder/go-ffmpeg-hls-swarm/internal/process/probe.go and
// runner.go's exec.CommandContext + JSON-decode discipline.
type CommandLineTool struct {
	FFprobePath string
	FFmpegPath  string
}

// NewCommandLineTool returns a CommandLineTool using "ffprobe" and
// "ffmpeg" resolved from PATH.
func NewCommandLineTool() *CommandLineTool {
	return &CommandLineTool{FFprobePath: "ffprobe", FFmpegPath: "ffmpeg"}
}

// ffprobeFormat/ffprobeStream mirror ffprobe's raw JSON shape (bit
// rates and sizes are emitted as strings).
type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType      string `json:"codec_type"`
	CodecName      string `json:"codec_name"`
	Profile        string `json:"profile"`
	Level          int    `json:"level"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	PixFmt         string `json:"pix_fmt"`
	ColorSpace     string `json:"color_space"`
	ColorPrimaries string `json:"color_primaries"`
	RFrameRate     string `json:"r_frame_rate"`
	BitRate        string `json:"bit_rate"`
	Channels       int    `json:"channels"`
	SampleRate     string `json:"sample_rate"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

func (t *CommandLineTool) Probe(ctx context.Context, url string) (ProbeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		url,
	}
	cmd := exec.CommandContext(ctx, t.FFprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var raw ffprobeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return ProbeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := ProbeResult{
		Format: ProbeFormat{
			FormatName: raw.Format.FormatName,
			Duration:   parseFloatOrZero(raw.Format.Duration),
			Size:       parseIntOrZero(raw.Format.Size),
			BitRate:    parseIntOrZero(raw.Format.BitRate),
		},
	}
	for _, s := range raw.Streams {
		result.Streams = append(result.Streams, ProbeStream{
			CodecType:      s.CodecType,
			CodecName:      s.CodecName,
			Profile:        s.Profile,
			Level:          strconv.Itoa(s.Level),
			Width:          s.Width,
			Height:         s.Height,
			PixFmt:         s.PixFmt,
			ColorSpace:     s.ColorSpace,
			ColorPrimaries: s.ColorPrimaries,
			RFrameRate:     s.RFrameRate,
			BitRate:        parseIntOrZero(s.BitRate),
			Channels:       s.Channels,
			SampleRate:     int(parseIntOrZero(s.SampleRate)),
		})
	}
	return result, nil
}

var volumeRe = regexp.MustCompile(`(mean|max)_volume: (-?[0-9.]+) dB`)

func (t *CommandLineTool) DetectLoudness(ctx context.Context, url string) (LoudnessResult, error) {
	args := []string{
		"-i", url,
		"-af", "volumedetect",
		"-f", "null", "-",
	}
	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg with a null sink exits non-zero on some builds even when
	// volumedetect ran fine; the stderr banner still names the null
	// muxer in that case, which is how runLoudness tells that apart
	// from a genuine failure (missing binary, killed process, bad URL).
	if err := cmd.Run(); err != nil {
		return LoudnessResult{}, fmt.Errorf("ffmpeg volumedetect failed: %w: %s", err, stderr.String())
	}

	return parseLoudness(stderr.String()), nil
}

func parseLoudness(stderr string) LoudnessResult {
	var result LoudnessResult
	for _, m := range volumeRe.FindAllStringSubmatch(stderr, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		switch m[1] {
		case "mean":
			result.MeanDb = &v
		case "max":
			result.MaxDb = &v
		}
	}
	return result
}

func (t *CommandLineTool) ExtractThumbnail(ctx context.Context, url, destPath string) error {
	args := []string{
		"-ss", "0.5",
		"-i", url,
		"-frames:v", "1",
		"-vf", "scale=320:-1",
		"-q:v", "5",
		"-y",
		destPath,
	}
	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg thumbnail failed: %w (%s)", err, string(out))
	}
	return nil
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntOrZero(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
