package model

import "testing"

func TestVideoID(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"shorts url", "https://www.youtube.com/shorts/abc123XYZ_-", "abc123XYZ_-"},
		{"embed url", "https://www.youtube.com/embed/abc123XYZ_-", "abc123XYZ_-"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"mobile host", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"non-youtube url", "https://example.com/stream.mp3", ""},
		{"local path", "/music/song.mp3", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := Track{Locator: tt.locator}
			if got := track.VideoID(); got != tt.want {
				t.Errorf("VideoID(%s) = %q, want %q", tt.locator, got, tt.want)
			}
		})
	}
}

func TestNewLocalTrack(t *testing.T) {
	track := NewLocalTrack("/music/albums/夜曲.mp3")
	if track.Kind != KindLocal {
		t.Errorf("Kind = %s, want local", track.Kind)
	}
	if track.Title != "夜曲" {
		t.Errorf("Title = %s, want 夜曲", track.Title)
	}
	if !track.Resolved() {
		t.Error("local track must always be resolved")
	}
	if track.PlayableURL() != "/music/albums/夜曲.mp3" {
		t.Errorf("PlayableURL = %s", track.PlayableURL())
	}
}

func TestNewStreamTrack(t *testing.T) {
	track := NewStreamTrack("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if track.Kind != KindStream {
		t.Errorf("Kind = %s, want stream", track.Kind)
	}
	if track.Resolved() {
		t.Error("fresh stream track must not be resolved")
	}
	if track.ThumbnailURL == "" {
		t.Error("youtube track should carry a thumbnail url")
	}

	track.ResolvedURL = "https://cdn.example.com/audio.m4a"
	if !track.Resolved() {
		t.Error("track with resolved url must report resolved")
	}
	if track.PlayableURL() != "https://cdn.example.com/audio.m4a" {
		t.Errorf("PlayableURL = %s, want resolved url", track.PlayableURL())
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		in   string
		want LoopMode
	}{
		{"none", LoopNone},
		{"single", LoopSingle},
		{"all", LoopAll},
		{"shuffle", LoopNone},
		{"", LoopNone},
	}
	for _, tt := range tests {
		if got := ParseLoopMode(tt.in); got != tt.want {
			t.Errorf("ParseLoopMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
