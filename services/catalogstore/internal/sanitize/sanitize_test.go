package sanitize

import (
	"strings"
	"testing"
)

func TestSanitize_StripsScriptAndEvents(t *testing.T) {
	s := NewStoryPolicy()

	in := `<p onclick="steal()">Hello</p><script>alert(1)</script><iframe src="https://evil"></iframe>`
	got := s.Sanitize(in)

	if strings.Contains(got, "script") || strings.Contains(got, "iframe") || strings.Contains(got, "onclick") {
		t.Fatalf("dangerous markup survived: %q", got)
	}
	if !strings.Contains(got, "<p>Hello</p>") {
		t.Fatalf("expected paragraph kept, got %q", got)
	}
}

func TestSanitize_KeepsFormattingTags(t *testing.T) {
	s := NewStoryPolicy()

	in := `<h2>Title</h2><p><strong>bold</strong> and <em>italic</em></p><blockquote>q</blockquote><pre><code>x</code></pre><hr>`
	got := s.Sanitize(in)

	for _, part := range []string{"<h2>", "<strong>", "<em>", "<blockquote>", "<pre>", "<code>", "<hr>"} {
		if !strings.Contains(got, part) {
			t.Errorf("expected %q kept, got %q", part, got)
		}
	}
}

func TestSanitize_LinkRewriting(t *testing.T) {
	s := NewStoryPolicy()

	got := s.Sanitize(`<a href="https://example.com/ch1">next</a>`)
	if !strings.Contains(got, `target="_blank"`) {
		t.Fatalf("expected target=_blank added, got %q", got)
	}
	if !strings.Contains(got, "noreferrer") {
		t.Fatalf("expected noreferrer rel, got %q", got)
	}

	got = s.Sanitize(`<a href="javascript:alert(1)">bad</a>`)
	if strings.Contains(got, "javascript") {
		t.Fatalf("javascript scheme survived: %q", got)
	}
}

func TestSanitize_ImagesHTTPSOnly(t *testing.T) {
	s := NewStoryPolicy()

	got := s.Sanitize(`<img src="https://cdn.example.com/a.png" alt="cover">`)
	if !strings.Contains(got, "https://cdn.example.com/a.png") || !strings.Contains(got, `alt="cover"`) {
		t.Fatalf("expected https image kept, got %q", got)
	}

	got = s.Sanitize(`<img src="http://cdn.example.com/a.png">`)
	if strings.Contains(got, "http://cdn.example.com") {
		t.Fatalf("expected http image source dropped, got %q", got)
	}
}

func TestSanitize_EmptyAndIdempotent(t *testing.T) {
	s := NewStoryPolicy()

	if got := s.Sanitize(""); got != "" {
		t.Fatalf("expected empty output for empty input, got %q", got)
	}
	once := s.Sanitize(`<p>plain <b>text</b></p>`)
	if twice := s.Sanitize(once); twice != once {
		t.Fatalf("expected idempotent sanitization, got %q then %q", once, twice)
	}
}
