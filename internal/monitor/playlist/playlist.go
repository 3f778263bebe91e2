// Package playlist implements Component A: HTTP retrieval and RFC 8216
// parsing of HLS master and media playlists, built on grafov/m3u8
// (grounded in massonskyi-http-rtsp-server/go.mod).
package playlist

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/grafov/m3u8"
)

// Resolution is the decoded RESOLUTION attribute of a variant stream.
type Resolution struct {
	Width  int
	Height int
}

// Variant is one entry of a master playlist's #EXT-X-STREAM-INF list.
type Variant struct {
	URI        string
	Bandwidth  int64
	Resolution Resolution
}

// Segment is one media-playlist segment.
type Segment struct {
	URI           string
	Duration      float64
	Discontinuity bool
}

// Manifest is the structured result of fetching and decoding a
// playlist URL (§4.A).
type Manifest struct {
	// Playlists is non-empty only for a master playlist.
	Playlists []Variant
	// Segments, MediaSequence, TargetDuration, DiscontinuitySequence,
	// and PlaylistType are populated only for a media playlist.
	Segments              []Segment
	MediaSequence         int64
	TargetDuration        int
	DiscontinuitySequence int64
	PlaylistType          string
}

// RetrievalError wraps a fetch/parse failure with the HTTP status (if
// any) and the underlying message, per §4.A failure modes.
type RetrievalError struct {
	Message    string
	StatusCode int // 0 when no HTTP response was obtained
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Fetcher retrieves and parses HLS manifests over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher whose HTTP client enforces timeout as
// its total request deadline (§4.A: 10s timeout, default when timeout
// is 0).
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves the playlist at url and parses it as HLS.
func (f *Fetcher) Fetch(url string) (*Manifest, error) {
	resp, err := f.client.Get(url)
	if err != nil {
		return nil, &RetrievalError{Message: "manifest retrieval failed: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RetrievalError{
			Message:    fmt.Sprintf("manifest retrieval failed: unexpected status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetrievalError{Message: "manifest read failed: " + err.Error(), StatusCode: resp.StatusCode, Err: err}
	}

	return Parse(body)
}

// Parse decodes raw HLS manifest bytes into a Manifest.
func Parse(body []byte) (*Manifest, error) {
	buf := bytes.NewBuffer(body)
	pl, listType, err := m3u8.Decode(*buf, false)
	if err != nil {
		return nil, &RetrievalError{Message: "manifest parse failed: " + err.Error(), Err: err}
	}

	switch listType {
	case m3u8.MASTER:
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, &RetrievalError{Message: "manifest parse failed: unexpected master playlist type"}
		}
		return fromMaster(master), nil
	case m3u8.MEDIA:
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, &RetrievalError{Message: "manifest parse failed: unexpected media playlist type"}
		}
		return fromMedia(media), nil
	default:
		return nil, &RetrievalError{Message: "manifest parse failed: unknown playlist type"}
	}
}

func fromMaster(master *m3u8.MasterPlaylist) *Manifest {
	m := &Manifest{}
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		m.Playlists = append(m.Playlists, Variant{
			URI:        v.URI,
			Bandwidth:  int64(v.Bandwidth),
			Resolution: parseResolution(v.Resolution),
		})
	}
	return m
}

func fromMedia(media *m3u8.MediaPlaylist) *Manifest {
	m := &Manifest{
		MediaSequence:         int64(media.SeqNo),
		TargetDuration:        int(media.TargetDuration),
		DiscontinuitySequence: int64(media.DiscontinuitySeq),
		PlaylistType:          playlistTypeOf(media),
	}

	for _, seg := range media.Segments {
		if seg == nil || seg.URI == "" {
			continue
		}
		m.Segments = append(m.Segments, Segment{
			URI:           seg.URI,
			Duration:      seg.Duration,
			Discontinuity: seg.Discontinuity,
		})
	}
	return m
}

func playlistTypeOf(media *m3u8.MediaPlaylist) string {
	switch media.MediaType {
	case m3u8.VOD:
		return "VOD"
	case m3u8.EVENT:
		return "EVENT"
	default:
		return "LIVE"
	}
}

func parseResolution(s string) Resolution {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return Resolution{}
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil {
		return Resolution{}
	}
	return Resolution{Width: w, Height: h}
}

// ResolveURI resolves a variant/segment URI against the requesting
// playlist's URL: absolute "http"-prefixed URIs pass through verbatim;
// relative URIs replace everything after the last "/" in requestURL
// (§4.A).
func ResolveURI(requestURL, uri string) string {
	if strings.HasPrefix(uri, "http") {
		return uri
	}
	dir := requestURL
	if idx := strings.LastIndex(requestURL, "/"); idx >= 0 {
		dir = requestURL[:idx]
	}
	return dir + "/" + uri
}
