package validate

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestURLInputNormalizes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://youtu.be/abc123", "https://www.youtube.com/watch?v=abc123"},
		{"  https://youtu.be/abc123?t=42  ", "https://www.youtube.com/watch?v=abc123"},
		{"https://www.youtube.com/watch?v=xyz", "https://www.youtube.com/watch?v=xyz"},
		{"http://youtube.com/watch?v=dQw4w9WgXcQ&t=10s", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=a_b-c", "https://www.youtube.com/watch?v=a_b-c"},
		{"https://music.youtube.com/watch?v=song1", "https://www.youtube.com/watch?v=song1"},
		{"https://www.youtube.com/shorts/short9", "https://www.youtube.com/watch?v=short9"},
		{"https://WWW.YouTube.com/shorts/short9/", "https://www.youtube.com/watch?v=short9"},
	}
	for _, c := range cases {
		got, err := URLInput(c.in, 0)
		if err != nil {
			t.Fatalf("URLInput(%q) unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("URLInput(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestURLInputRejects(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"", ErrEmptyURL},
		{"   ", ErrEmptyURL},
		{"youtube.com/watch?v=abc", ErrMalformedURL},
		{"ftp://youtube.com/watch?v=abc", ErrScheme},
		{"https://vimeo.com/12345", ErrHost},
		{"https://youtube.com.evil.org/watch?v=abc", ErrHost},
		{"https://www.youtube.com/watch?v=xyz&list=PL1", ErrPlaylist},
		{"https://www.youtube.com/playlist?list=PL1", ErrPlaylist},
		{"https://www.youtube.com/playlist", ErrPlaylist},
		{"https://www.youtube.com/watch", ErrMissingVideoID},
		{"https://youtu.be/", ErrMissingVideoID},
		{"https://www.youtube.com/shorts/", ErrMissingVideoID},
		{"https://www.youtube.com/watch?v=<script>", ErrMissingVideoID},
	}
	for _, c := range cases {
		if _, err := URLInput(c.in, 0); !errors.Is(err, c.want) {
			t.Fatalf("URLInput(%q) error=%v want %v", c.in, err, c.want)
		}
	}
}

func TestURLInputLengthCap(t *testing.T) {
	long := "https://youtu.be/" + strings.Repeat("a", 40)
	if _, err := URLInput(long, 20); !errors.Is(err, ErrURLTooLong) {
		t.Fatalf("expected ErrURLTooLong, got %v", err)
	}
}

func TestPlaylistMessage(t *testing.T) {
	_, err := URLInput("https://www.youtube.com/watch?v=xyz&list=PL1", 0)
	if err == nil || err.Error() != "Playlists are not allowed." {
		t.Fatalf("unexpected playlist message: %v", err)
	}
}

func TestBackendURL(t *testing.T) {
	got, err := BackendURL("https://api.example.org/")
	if err != nil || got != "https://api.example.org" {
		t.Fatalf("BackendURL trailing slash: got %q err %v", got, err)
	}
	for _, bad := range []string{"", "api.example.org", "ftp://api.example.org", "https://u:p@api.example.org", "https://api.example.org/?x=1"} {
		if _, err := BackendURL(bad); !errors.Is(err, ErrBackendURL) {
			t.Fatalf("BackendURL(%q) expected ErrBackendURL, got %v", bad, err)
		}
	}
}

func TestSiteKey(t *testing.T) {
	if err := SiteKey("1x00000000000000000000AA"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "short", "has space inside key", strings.Repeat("k", 200)} {
		if err := SiteKey(bad); !errors.Is(err, ErrSiteKey) {
			t.Fatalf("SiteKey(%q) expected ErrSiteKey, got %v", bad, err)
		}
	}
}

func TestCaptchaToken(t *testing.T) {
	if err := CaptchaToken("tok1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CaptchaToken(" "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if err := CaptchaToken("abc"); !errors.Is(err, ErrTokenLength) {
		t.Fatalf("expected ErrTokenLength, got %v", err)
	}
	if err := CaptchaToken(strings.Repeat("t", MaxTokenLength+1)); !errors.Is(err, ErrTokenLength) {
		t.Fatalf("expected ErrTokenLength for long token, got %v", err)
	}
}

func TestMountOptions(t *testing.T) {
	q := url.Values{"u": {"  https://youtu.be/abc\x00123 "}}
	if got := MountOptions(q, 0); got != "https://youtu.be/abc123" {
		t.Fatalf("MountOptions u=%q", got)
	}
	q = url.Values{"url": {"https://youtu.be/first"}, "u": {"https://youtu.be/second"}}
	if got := MountOptions(q, 0); got != "https://youtu.be/first" {
		t.Fatalf("MountOptions should prefer url, got %q", got)
	}
	q = url.Values{"url": {"https://youtu.be/abcdef"}}
	if got := MountOptions(q, 10); got != "https://yo" {
		t.Fatalf("MountOptions cap, got %q", got)
	}
	if got := MountOptions(url.Values{}, 0); got != "" {
		t.Fatalf("expected empty prefill, got %q", got)
	}
}
