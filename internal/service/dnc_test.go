package service

import "testing"

func TestDNCListSuffixMatching(t *testing.T) {
	l := NewDNCList("Blocked.se")

	if !l.Has("blocked.se") {
		t.Fatal("exact match should hit")
	}
	if !l.Has("www.blocked.se") {
		t.Fatal("subdomain should hit")
	}
	if l.Has("notblocked.se") {
		t.Fatal("substring must not hit, DNC is a strict suffix match")
	}
	if l.Has("blocked.se.evil.com") {
		t.Fatal("unrelated host must not hit")
	}
}

func TestDNCListAddRemove(t *testing.T) {
	l := NewDNCList()
	l.Add("acme.se")
	if !l.Has("acme.se") {
		t.Fatal("expected hit after add")
	}
	l.Remove("acme.se")
	if l.Has("acme.se") {
		t.Fatal("expected miss after remove")
	}
}

func TestTOSListSubstringMatching(t *testing.T) {
	l := DefaultTOSList()

	reason, ok := l.Match("www.linkedin.com")
	if !ok || reason == "" {
		t.Fatalf("expected linkedin hit, got %q %v", reason, ok)
	}
	// TOS is advisory and matches by substring, unlike DNC.
	if _, ok := l.Match("x.com.mirror.example"); !ok {
		t.Fatal("expected substring hit")
	}
	if _, ok := l.Match("acme.se"); ok {
		t.Fatal("unexpected hit for plain company host")
	}
}

func TestTOSListAddRemove(t *testing.T) {
	l := NewTOSList()
	l.Add("pinterest.com", "terms prohibit scraping")

	if _, ok := l.Match("pinterest.com"); !ok {
		t.Fatal("expected hit after add")
	}
	l.Remove("pinterest.com")
	if _, ok := l.Match("pinterest.com"); ok {
		t.Fatal("expected miss after remove")
	}
}
