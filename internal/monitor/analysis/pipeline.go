package analysis

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/Suraj-B12/HLS-Monitor/internal/monitor"
)

// queueCapacity bounds the explicit FIFO overflow queue. It is sized
// generously: enqueue must never block the caller (§4.F, §5), and a
// monitor fleet submits at most 3 jobs per stream per 7s poll.
const queueCapacity = 8192

// Pipeline is the bounded-concurrency media analysis pipeline
// (Component F): at most MaxConcurrent jobs run process-wide, backed
// by an ants.Pool (grounded in massonskyi-http-rtsp-server/go.mod's
// github.com/panjf2000/ants/v2 dependency), with an explicit
// channel-backed FIFO queue in front of it so queue depth is directly
// observable for metrics independent of ants's internal scheduling.
type Pipeline struct {
	pool    *ants.Pool
	jobs    chan func()
	tool    Tool
	streams monitor.StreamStore
	events  monitor.EventBus
	log     *slog.Logger
	clock   monitor.Clock

	queued   atomic.Int64
	inFlight atomic.Int64

	onQueueDepth func(int64)
	onInFlight   func(int64)

	done chan struct{}
}

// NewPipeline constructs a Pipeline with a worker pool of size
// maxConcurrent (default 4 when <= 0).
func NewPipeline(tool Tool, streams monitor.StreamStore, events monitor.EventBus, log *slog.Logger, clock monitor.Clock, maxConcurrent int) (*Pipeline, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = monitor.DefaultMaxAnalysisJobs
	}
	pool, err := ants.NewPool(maxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("analysis: create worker pool: %w", err)
	}

	p := &Pipeline{
		pool:    pool,
		jobs:    make(chan func(), queueCapacity),
		tool:    tool,
		streams: streams,
		events:  events,
		log:     log,
		clock:   clock,
		done:    make(chan struct{}),
	}
	go p.dispatchLoop()
	return p, nil
}

// OnGaugeUpdates registers callbacks invoked whenever queue depth or
// in-flight job count changes. Either may be nil.
func (p *Pipeline) OnGaugeUpdates(onQueueDepth, onInFlight func(int64)) {
	p.onQueueDepth = onQueueDepth
	p.onInFlight = onInFlight
}

// Close stops accepting new jobs and releases the worker pool. Pending
// queued jobs are discarded (§5: "pending queued jobs are discarded at
// shutdown").
func (p *Pipeline) Close() {
	close(p.done)
	p.pool.Release()
}

// Submit dispatches the three independent analysis tasks (probe,
// loudness, thumbnail) for segmentURL (§4.F). Submission never blocks
// the caller: jobs land on a buffered channel and run when a pool slot
// is free.
func (p *Pipeline) Submit(streamID monitor.StreamID, segmentURL string) {
	p.enqueue(func() { p.runProbe(streamID, segmentURL) })
	p.enqueue(func() { p.runLoudness(streamID, segmentURL) })
	p.enqueue(func() { p.runThumbnail(streamID, segmentURL) })
}

func (p *Pipeline) enqueue(task func()) {
	select {
	case p.jobs <- task:
		n := p.queued.Add(1)
		if p.onQueueDepth != nil {
			p.onQueueDepth(n)
		}
	default:
		if p.log != nil {
			p.log.Warn("analysis queue full, dropping job")
		}
	}
}

// dispatchLoop pulls jobs off the FIFO queue and hands each to the
// bounded pool, one at a time, in order. ants.Pool.Submit blocks the
// caller until a worker slot is free, which is exactly the bounded-
// concurrency + FIFO-overflow behavior §4.F specifies.
func (p *Pipeline) dispatchLoop() {
	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			n := p.queued.Add(-1)
			if p.onQueueDepth != nil {
				p.onQueueDepth(n)
			}

			inFlight := p.inFlight.Add(1)
			if p.onInFlight != nil {
				p.onInFlight(inFlight)
			}

			wrapped := func() {
				defer func() {
					if r := recover(); r != nil && p.log != nil {
						p.log.Error("analysis job panicked", slog.Any("recover", r))
					}
					left := p.inFlight.Add(-1)
					if p.onInFlight != nil {
						p.onInFlight(left)
					}
				}()
				job()
			}

			if err := p.pool.Submit(wrapped); err != nil {
				// Pool rejected the job (e.g. released) — run it inline
				// so the slot accounting above stays consistent.
				if p.log != nil {
					p.log.Error("analysis pool submit failed", slog.String("error", err.Error()))
				}
				wrapped()
			}
		}
	}
}

func (p *Pipeline) runProbe(streamID monitor.StreamID, segmentURL string) {
	ctx := context.Background()
	result, err := p.tool.Probe(ctx, segmentURL)
	if err != nil {
		p.logErr("probe failed", streamID, err)
		return
	}

	p.mutate(streamID, func(rec *monitor.StreamRecord) {
		applyProbeResult(rec, result)
	})

	if p.events != nil {
		rec, err := p.streams.GetStream(streamID)
		if err == nil {
			signal := buildSignalPayload(streamID, rec, p.clock)
			p.events.Publish(monitor.TopicStreamSignal, signal)
		}
	}
}

func (p *Pipeline) runLoudness(streamID monitor.StreamID, segmentURL string) {
	ctx := context.Background()
	result, err := p.tool.DetectLoudness(ctx, segmentURL)
	if err != nil {
		if strings.Contains(err.Error(), "null") {
			return // expected null-sink warning, dropped silently (§4.F)
		}
		p.logErr("loudness detection failed", streamID, err)
		return
	}

	p.mutate(streamID, func(rec *monitor.StreamRecord) {
		applyLoudnessResult(rec, result)
	})
}

func (p *Pipeline) runThumbnail(streamID monitor.StreamID, segmentURL string) {
	ctx := context.Background()
	now := p.clock.Now()
	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("sprite-%s-%d.jpg", streamID, now.UnixMilli()))

	if err := p.tool.ExtractThumbnail(ctx, segmentURL, tmpPath); err != nil {
		p.logErr("thumbnail extraction failed", streamID, err)
		return
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && p.log != nil {
			p.log.Warn("thumbnail temp file cleanup failed",
				slog.String("path", tmpPath), slog.String("error", err.Error()))
		}
	}()

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		p.logErr("thumbnail read failed", streamID, err)
		return
	}

	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	p.mutate(streamID, func(rec *monitor.StreamRecord) {
		rec.Thumbnail = url
	})

	if p.events != nil {
		p.events.Publish(monitor.TopicStreamSprite, monitor.SpritePayload{ID: streamID, URL: url})
	}
}

// mutate loads the current record, applies fn, and saves with
// best-effort semantics: a version conflict is dropped silently and any
// other save error is logged and dropped; neither is retried (§4.F
// "persists with best-effort save", §5 drop-don't-retry policy).
func (p *Pipeline) mutate(streamID monitor.StreamID, fn func(*monitor.StreamRecord)) {
	rec, err := p.streams.GetStream(streamID)
	if err != nil {
		p.logErr("load stream for analysis save failed", streamID, err)
		return
	}
	fn(rec)
	if err := p.streams.SaveStream(rec); err != nil {
		if err == monitor.ErrVersionConflict {
			return
		}
		p.logErr("best-effort analysis save failed", streamID, err)
	}
}

func (p *Pipeline) logErr(msg string, streamID monitor.StreamID, err error) {
	if p.log == nil {
		return
	}
	p.log.Error(msg, slog.String("stream_id", string(streamID)), slog.String("error", err.Error()))
}

// applyProbeResult populates stats.container, stats.video, stats.audio,
// and fps from a probe result (§4.F "Probe").
func applyProbeResult(rec *monitor.StreamRecord, result ProbeResult) {
	rec.Stats.Container = &monitor.ContainerStats{
		FormatName: result.Format.FormatName,
		Duration:   result.Format.Duration,
		Size:       result.Format.Size,
		BitRate:    result.Format.BitRate,
	}

	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			bitRate := s.BitRate
			if bitRate == 0 {
				bitRate = int64(float64(result.Format.BitRate) * 0.85)
			}
			rec.Stats.Video = &monitor.VideoStats{
				Codec:       s.CodecName,
				Profile:     s.Profile,
				Level:       s.Level,
				Width:       s.Width,
				Height:      s.Height,
				PixelFormat: s.PixFmt,
				ColorSpace:  firstNonEmpty(s.ColorSpace, s.ColorPrimaries, "unknown"),
				BitRate:     bitRate,
			}
			rec.Stats.FPS = parseFrameRate(s.RFrameRate)
		case "audio":
			bitRate := s.BitRate
			if bitRate == 0 {
				bitRate = 128000
			}
			rec.Stats.Audio = &monitor.AudioStats{
				Codec:         s.CodecName,
				Channels:      s.Channels,
				SampleRate:    s.SampleRate,
				BitRate:       bitRate,
				ChannelLayout: channelLayoutName(s.Channels),
			}
		}
	}
}

// applyLoudnessResult updates stats.audio.{avgDb, peakDb, isSilent}
// from a loudness result (§4.F "Loudness").
func applyLoudnessResult(rec *monitor.StreamRecord, result LoudnessResult) {
	if rec.Stats.Audio == nil {
		rec.Stats.Audio = &monitor.AudioStats{}
	}
	rec.Stats.Audio.AvgDb = result.MeanDb
	rec.Stats.Audio.PeakDb = result.MaxDb
	rec.Stats.Audio.IsSilent = result.MaxDb != nil && *result.MaxDb < -50
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// channelLayoutName implements the channel-count-to-layout-name rule
// (§4.F).
func channelLayoutName(channels int) string {
	switch channels {
	case 0:
		return "Unknown"
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	case 6:
		return "5.1 Surround"
	case 8:
		return "7.1 Surround"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}

// parseFrameRate safely evaluates an ffprobe "num/den" rate string
// (§4.F "fps is parsed safely from a rate string").
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0
	}
	if len(parts) != 2 {
		return num
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || den == 0 {
		return num
	}
	return num / den
}

// buildSignalPayload constructs the live stream:signal event payload,
// including the +/-5 jitter applied to each level before re-clamping
// (§4.F "Signal-level derivation").
func buildSignalPayload(streamID monitor.StreamID, rec *monitor.StreamRecord, clock monitor.Clock) monitor.SignalPayload {
	payload := monitor.SignalPayload{
		ID:        streamID,
		Timestamp: clock.Now(),
		FPS:       rec.Stats.FPS,
	}
	if rec.Stats.Video != nil {
		payload.VideoBitrate = rec.Stats.Video.BitRate
		payload.Video = jitteredLevel(monitor.SignalLevel(rec.Stats.Video.BitRate, 5_000_000))
	}
	if rec.Stats.Audio != nil {
		payload.AudioBitrate = rec.Stats.Audio.BitRate
		payload.Audio = jitteredLevel(monitor.SignalLevel(rec.Stats.Audio.BitRate, 320_000))
		payload.PeakDb = rec.Stats.Audio.PeakDb
		payload.AvgDb = rec.Stats.Audio.AvgDb
		payload.IsSilent = rec.Stats.Audio.IsSilent
	}
	return payload
}

// jitteredLevel adds a uniform jitter in [-5,+5] to level and re-clamps
// to [0,100] (§4.F "Signal-level derivation").
func jitteredLevel(level float64) float64 {
	jitter := rand.Float64()*10 - 5
	v := level + jitter
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
