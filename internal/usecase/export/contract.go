package export

import (
	"context"

	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
)

// VideoAPI answers frame-rate, frame-time and keyframe-id lookups.
type VideoAPI interface {
	VideoInfo(ctx context.Context, video string) (float64, error)
	FrameTime(ctx context.Context, video, frame, videoPath string) (string, error)
	MapKeyframe(ctx context.Context, video, frame string) (string, error)
}

// SelectionReader reads a session's selection lists.
type SelectionReader interface {
	List(ctx context.Context, sessionID string) []domsel.Item
	Legacy(ctx context.Context, sessionID string) []string
}
