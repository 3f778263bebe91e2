package analysis

import "context"

// FakeTool is a scripted Tool for tests: each field, when non-nil, is
// returned verbatim (or invoked, for error injection) in place of
// shelling out to a real media-analysis tool.
type FakeTool struct {
	ProbeResult    ProbeResult
	ProbeErr       error
	LoudnessResult LoudnessResult
	LoudnessErr    error
	ThumbnailErr   error
	ThumbnailBytes []byte
}

func (f *FakeTool) Probe(ctx context.Context, url string) (ProbeResult, error) {
	return f.ProbeResult, f.ProbeErr
}

func (f *FakeTool) DetectLoudness(ctx context.Context, url string) (LoudnessResult, error) {
	return f.LoudnessResult, f.LoudnessErr
}

func (f *FakeTool) ExtractThumbnail(ctx context.Context, url, destPath string) error {
	if f.ThumbnailErr != nil {
		return f.ThumbnailErr
	}
	if destPath != "" {
		return writeFile(destPath, f.ThumbnailBytes)
	}
	return nil
}
