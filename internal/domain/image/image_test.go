package image

import "testing"

func TestParsePath(t *testing.T) {
	tests := []struct {
		path string
		want KeyframeRef
	}{
		{"images/keyframes/L21_V001/00000005.jpg", KeyframeRef{Video: "L21_V001", Frame: "00000005", FrameNumber: 5}},
		{"/new_keyframes/L01_V010/0123.jpg", KeyframeRef{Video: "L01_V010", Frame: "0123", FrameNumber: 123}},
		{"L02_V003/00000000.jpg", KeyframeRef{Video: "L02_V003", Frame: "00000000", FrameNumber: 0}},
		{"00000042.jpg", KeyframeRef{Video: "", Frame: "00000042", FrameNumber: 42}},
		{"keyframes/L21_V001/cover.png", KeyframeRef{Video: "L21_V001", Frame: "cover", FrameNumber: 0}},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			got := ParsePath(tc.path)
			if got != tc.want {
				t.Errorf("ParsePath(%q) = %+v, want %+v", tc.path, got, tc.want)
			}
		})
	}
}

func TestRecord_Score(t *testing.T) {
	r := New(3, "a/b/1.jpg")
	if _, ok := r.Score(); ok {
		t.Error("browse record must not carry a score")
	}

	s := NewScored(3, "a/b/1.jpg", 0.875)
	score, ok := s.Score()
	if !ok || score != 0.875 {
		t.Errorf("Score() = %v, %v", score, ok)
	}
	if s.ID() != 3 || s.Path() != "a/b/1.jpg" {
		t.Errorf("unexpected record %+v", s)
	}
	if s.Keyframe().Video != "b" {
		t.Errorf("Keyframe().Video = %q", s.Keyframe().Video)
	}
}

func TestAssetURL(t *testing.T) {
	if got := AssetURL("images/x.jpg"); got != "/images/x.jpg" {
		t.Errorf("AssetURL = %q", got)
	}
	if got := AssetURL("/images/x.jpg"); got != "/images/x.jpg" {
		t.Errorf("AssetURL = %q", got)
	}
}

func TestVideoFile(t *testing.T) {
	if got := VideoFile("L01_V001"); got != "Videos_L01/L01_V001.mp4" {
		t.Errorf("VideoFile = %q", got)
	}
	if got := VideoFile("clip"); got != "Videos_clip/clip.mp4" {
		t.Errorf("VideoFile without batch = %q", got)
	}
}
