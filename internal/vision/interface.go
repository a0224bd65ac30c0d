package vision

import "context"

// Detector analyzes job photos and returns detected condition tags. The
// analysis itself runs in an external service; callers treat the output as
// opaque input to pricing.
type Detector interface {
	Analyze(ctx context.Context, photoRefs []string) (*Analysis, error)
}
