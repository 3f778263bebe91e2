// Package monitor implements the HLS stream health monitor engine: the
// polling scheduler, playlist evaluator, error ledger, sliding-window
// decay scorer, and the glue that drives the bounded-concurrency media
// analysis pipeline off each polled segment.
package monitor

import "time"

// StreamID uniquely identifies a monitored stream. Stream records are
// created and deleted externally; the monitor only ever observes them.
type StreamID string

// Status is the coarse-grained health state of a stream.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
	StatusStale   Status = "stale"
)

// ErrorType classifies a ledger entry.
type ErrorType string

const (
	ErrorManifestRetrieval    ErrorType = "Manifest Retrieval"
	ErrorMediaSequence        ErrorType = "Media Sequence"
	ErrorPlaylistSize         ErrorType = "Playlist Size"
	ErrorPlaylistContent      ErrorType = "Playlist Content"
	ErrorSegmentContinuity    ErrorType = "Segment Continuity"
	ErrorDiscontinuitySeq     ErrorType = "Discontinuity Sequence"
	ErrorStaleManifest        ErrorType = "Stale Manifest"
)

// Default configuration values (spec.md §6 Configuration).
const (
	DefaultStaleThresholdMS  = 7000
	DefaultPollInterval      = 7 * time.Second
	DefaultSlidingWindow     = 12 * time.Minute
	DefaultMaxAnalysisJobs   = 4
	DefaultErrorRetention    = 7 * 24 * time.Hour
	DefaultFetchTimeout      = 10 * time.Second
	DefaultPlaylistType      = "LIVE"
)

// ErrorEntry is one append-only record in a stream's error ledger.
type ErrorEntry struct {
	EID       string    `json:"eid"`
	Date      time.Time `json:"date"`
	ErrorType ErrorType `json:"errorType"`
	MediaType string    `json:"mediaType"`
	Variant   string    `json:"variant"`
	Details   string    `json:"details"`
	Code      *string   `json:"code,omitempty"`
}

// VideoStats describes the most recently probed video stream.
type VideoStats struct {
	Codec       string `json:"codec,omitempty"`
	Profile     string `json:"profile,omitempty"`
	Level       string `json:"level,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	PixelFormat string `json:"pixelFormat,omitempty"`
	ColorSpace  string `json:"colorSpace,omitempty"`
	BitRate     int64  `json:"bitRate,omitempty"`
}

// AudioStats describes the most recently probed/analyzed audio stream.
type AudioStats struct {
	Codec         string   `json:"codec,omitempty"`
	Channels      int      `json:"channels,omitempty"`
	SampleRate    int      `json:"sampleRate,omitempty"`
	BitRate       int64    `json:"bitRate,omitempty"`
	PeakDb        *float64 `json:"peakDb,omitempty"`
	AvgDb         *float64 `json:"avgDb,omitempty"`
	ChannelLayout string   `json:"channelLayout,omitempty"`
	IsSilent      bool     `json:"isSilent"`
}

// ContainerStats describes the probed container format.
type ContainerStats struct {
	FormatName string  `json:"formatName,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Size       int64   `json:"size,omitempty"`
	BitRate    int64   `json:"bitRate,omitempty"`
}

// Stats is the nested media-characterization sub-record. A nil pointer
// to VideoStats/AudioStats/ContainerStats means "stat unknown" — never
// a zero-value struct standing in for "absent".
type Stats struct {
	Bandwidth  int64           `json:"bandwidth,omitempty"`
	Resolution string          `json:"resolution,omitempty"`
	FPS        float64         `json:"fps,omitempty"`
	Video      *VideoStats     `json:"video,omitempty"`
	Audio      *AudioStats     `json:"audio,omitempty"`
	Container  *ContainerStats `json:"container,omitempty"`
}

// RecentIssues is a sliding-window snapshot produced by the scorer and
// mirrored onto the stream's Health block after each poll.
type RecentIssues struct {
	Jumps  int `json:"jumps"`
	Resets int `json:"resets"`
	Errors int `json:"errors"`
}

// Health holds all freshness/sequence/error bookkeeping for a stream.
type Health struct {
	IsStale             bool      `json:"isStale"`
	LastManifestUpdate  time.Time `json:"lastManifestUpdate"`
	TimeSinceLastUpdate int64     `json:"timeSinceLastUpdate"` // ms

	MediaSequence         int64 `json:"mediaSequence"`
	PreviousMediaSequence int64 `json:"previousMediaSequence"` // -1 = unseen

	SequenceJumps  int64 `json:"sequenceJumps"`
	SequenceResets int64 `json:"sequenceResets"`

	DiscontinuitySequence int64 `json:"discontinuitySequence"`
	DiscontinuityCount    int   `json:"discontinuityCount"`

	SegmentCount   int    `json:"segmentCount"`
	TargetDuration int    `json:"targetDuration"`
	PlaylistType   string `json:"playlistType"`

	TotalErrors int64 `json:"totalErrors"`
	// TimeSinceLastError is informational only: it is set to 0 when an
	// error is appended and is never advanced afterwards. It is not a
	// live age — use (now - LastErrorTime) for that.
	TimeSinceLastError int64      `json:"timeSinceLastError"`
	LastErrorTime       *time.Time `json:"lastErrorTime,omitempty"`

	RecentErrors         int `json:"recentErrors"`
	RecentSequenceJumps  int `json:"recentSequenceJumps"`
	RecentSequenceResets int `json:"recentSequenceResets"`
}

// StreamRecord is the durable, externally-created-and-deleted record
// the monitor reads and mutates.
type StreamRecord struct {
	ID     StreamID `json:"id"`
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Status Status   `json:"status"`

	StaleThresholdMS int64 `json:"staleThreshold"`

	Health Health `json:"health"`
	Stats  Stats  `json:"stats"`

	StreamErrors []ErrorEntry `json:"streamErrors"`

	Thumbnail   string     `json:"thumbnail,omitempty"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
}

// MetricsSample is one append-only per-poll record (Component H).
type MetricsSample struct {
	StreamID      StreamID  `json:"streamId"`
	HealthScore   int       `json:"healthScore"`
	VideoScore    int       `json:"videoScore"`
	AudioScore    int       `json:"audioScore"`
	VideoBitrate  int64     `json:"videoBitrate"`
	AudioBitrate  int64     `json:"audioBitrate"`
	VideoLevel    float64   `json:"videoLevel"`
	AudioLevel    float64   `json:"audioLevel"`
	FPS           float64   `json:"fps"`
	Status        Status    `json:"status"`
	MediaSequence int64     `json:"mediaSequence"`
	SegmentCount  int       `json:"segmentCount"`
	ErrorCount    int64     `json:"errorCount"`
	Timestamp     time.Time `json:"timestamp"`
}

// PollState is the non-durable, per-stream poll bookkeeping held by the
// Stream State Cache (Component B). It is discarded on process restart.
type PollState struct {
	LastPollTime      time.Time
	LastMediaSequence int64
	ConsecutiveStales int
}

// defaultPollState is returned for streams never before observed.
func defaultPollState() PollState {
	return PollState{LastMediaSequence: -1}
}
