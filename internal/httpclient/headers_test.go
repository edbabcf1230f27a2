package httpclient

import "testing"

func TestHeadersCasePreservation(t *testing.T) {
	h := NewHeaders()
	h.Set("Content-Type", "text/html")
	h.Set("content-type", "text/plain")

	got, ok := h.Get("CONTENT-TYPE")
	if !ok || got != "text/plain" {
		t.Fatalf("got %q, %v", got, ok)
	}

	fields := h.Iter()
	if len(fields) != 1 || fields[0].Name != "Content-Type" {
		t.Fatalf("got %+v, want first-seen case preserved", fields)
	}
}

func TestHeadersAddAccumulates(t *testing.T) {
	h := NewHeaders()
	h.Add("Set-Cookie", "a=1")
	h.Add("set-cookie", "b=2")

	all := h.GetAll("SET-COOKIE")
	if len(all) != 2 || all[0] != "a=1" || all[1] != "b=2" {
		t.Fatalf("got %v", all)
	}
	last, _ := h.Get("Set-Cookie")
	if last != "b=2" {
		t.Errorf("got %q, want last value", last)
	}
}

func TestHeadersSetIfAbsent(t *testing.T) {
	h := NewHeaders()
	if !h.SetIfAbsent("User-Agent", "a") {
		t.Error("expected true on first set")
	}
	if h.SetIfAbsent("user-agent", "b") {
		t.Error("expected false when already present")
	}
	got, _ := h.Get("User-Agent")
	if got != "a" {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestHeadersDel(t *testing.T) {
	h := NewHeaders()
	h.Set("Connection", "close")
	h.Del("connection")
	if h.Has("Connection") {
		t.Error("expected header removed")
	}
	if len(h.Iter()) != 0 {
		t.Error("expected empty iteration order after delete")
	}
}

func TestMergeTrailerFallbackDoesNotOverwrite(t *testing.T) {
	h := NewHeaders()
	h.Set("X-Existing", "header-value")
	trailers := NewHeaders()
	trailers.Set("X-Existing", "trailer-value")
	trailers.Set("X-Checksum", "abc123")

	h.MergeTrailerFallback(trailers)

	got, _ := h.Get("X-Existing")
	if got != "header-value" {
		t.Errorf("got %q, trailer must not overwrite existing header", got)
	}
	got, ok := h.Get("X-Checksum")
	if !ok || got != "abc123" {
		t.Errorf("expected trailer-only field visible via Get, got %q %v", got, ok)
	}
}
