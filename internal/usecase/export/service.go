package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
)

// ContentType is the MIME type of CSV exports.
const ContentType = "text/csv"

// DefaultFPS is used when the video API has no usable frame rate.
const DefaultFPS = 25.0

// maxConcurrentLookups limits parallel /map requests during one export.
const maxConcurrentLookups = 8

// maxFilenameLen caps the sanitised export file name, extension excluded.
const maxFilenameLen = 128

// Service builds CSV exports and viewer links for selected keyframes.
type Service struct {
	videos     VideoAPI
	selection  SelectionReader
	defaultFPS float64
	logger     *zap.Logger
}

// New creates an export service. defaultFPS <= 0 selects DefaultFPS.
func New(videos VideoAPI, selection SelectionReader, defaultFPS float64, logger *zap.Logger) *Service {
	if defaultFPS <= 0 {
		defaultFPS = DefaultFPS
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{videos: videos, selection: selection, defaultFPS: defaultFPS, logger: logger}
}

// CSV renders the session's selection as "video,frame" rows. With mapKeyframes each
// frame is replaced by the /map answer; a failed lookup keeps the original frame.
func (s *Service) CSV(ctx context.Context, sessionID string, mapKeyframes bool) ([]byte, error) {
	return s.Rows(ctx, s.selection.List(ctx, sessionID), mapKeyframes)
}

// LegacyCSV renders the legacy list the same way as CSV. Video and frame come
// from each source's "<video>/<frame>.jpg" tail.
func (s *Service) LegacyCSV(ctx context.Context, sessionID string, mapKeyframes bool) ([]byte, error) {
	srcs := s.selection.Legacy(ctx, sessionID)
	items := make([]domsel.Item, 0, len(srcs))
	for _, src := range srcs {
		ref := image.ParsePath(src)
		items = append(items, domsel.Item{Video: ref.Video, Frame: ref.Frame, Path: src})
	}
	return s.Rows(ctx, items, mapKeyframes)
}

// Rows renders items as CSV without a trailing newline.
func (s *Service) Rows(ctx context.Context, items []domsel.Item, mapKeyframes bool) ([]byte, error) {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{it.Video, it.Frame}
	}

	if mapKeyframes {
		var g errgroup.Group
		g.SetLimit(maxConcurrentLookups)
		for i := range rows {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				video, frame := rows[i][0], rows[i][1]
				id, err := s.videos.MapKeyframe(ctx, video, frame)
				if err != nil || id == "" {
					s.logger.Warn("Keyframe mapping failed, keeping frame id",
						zap.String("video", video), zap.String("frame", frame), zap.Error(err))
					return nil
				}
				rows[i][1] = id
				return nil
			})
		}
		_ = g.Wait()
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Filename sanitises a user supplied export name and appends ".csv" when missing.
func Filename(raw string) (string, error) {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")))
	name = strings.TrimSuffix(name, ".csv")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name = strings.Trim(b.String(), ". ")
	if name == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFilename, raw)
	}
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	return name + ".csv", nil
}

// ViewURL links to the single-frame viewer.
func ViewURL(assetPath string) string {
	return "/view?keyframe=" + url.QueryEscape(assetPath)
}

// ClipURL links to the clip player positioned at the keyframe. The time is
// frameNumber/fps, with fps from the video API or the default on any failure.
func (s *Service) ClipURL(ctx context.Context, video, frame string) string {
	fps, err := s.videos.VideoInfo(ctx, video)
	if err != nil || fps <= 0 {
		if err != nil {
			s.logger.Debug("Video info unavailable, using default fps",
				zap.String("video", video), zap.Error(err))
		}
		fps = s.defaultFPS
	}
	n, _ := strconv.Atoi(frame)
	return vidURL(video, frame, strconv.FormatFloat(float64(n)/fps, 'f', 2, 64))
}

// FrameTimeURL resolves the clip position through /get_time for an asset path.
func (s *Service) FrameTimeURL(ctx context.Context, assetPath string) (string, error) {
	ref := image.ParsePath(assetPath)
	if ref.Video == "" {
		return "", fmt.Errorf("%w: no video in path %q", domain.ErrInvalidQuery, assetPath)
	}
	t, err := s.videos.FrameTime(ctx, ref.Video, ref.Frame, image.VideoFile(ref.Video))
	if err != nil {
		return "", fmt.Errorf("frame time: %w", err)
	}
	return vidURL(ref.Video, ref.Frame, t), nil
}

func vidURL(video, frame, t string) string {
	return "/vid?video=" + url.QueryEscape(video) +
		"&frame=" + url.QueryEscape(frame) +
		"&time=" + url.QueryEscape(t)
}
