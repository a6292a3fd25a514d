package deck

import (
	"errors"
	"testing"
)

func testPages() ([]*Page, []*Page) {
	home := []*Page{
		{Name: "Home", Buttons: []*Button{{Text: "a"}}, CloseOnInactivity: true},
		{Name: "Climate", CloseOnInactivity: true},
		{Name: "Scenes", CloseOnInactivity: true},
	}
	anonymous := []*Page{
		{Name: "Media", CloseOnInactivity: true},
	}
	return home, anonymous
}

func TestNewLayoutRequiresHomePage(t *testing.T) {
	_, err := NewLayout(nil, []*Page{{Name: "Media"}})
	if !errors.Is(err, ErrNoHomePages) {
		t.Fatalf("expected ErrNoHomePages, got %v", err)
	}
}

func TestNewLayoutRejectsDuplicateNames(t *testing.T) {
	_, err := NewLayout([]*Page{{Name: "Home"}, {Name: "Home"}}, nil)
	if !errors.Is(err, ErrDuplicatePage) {
		t.Fatalf("expected ErrDuplicatePage, got %v", err)
	}

	_, err = NewLayout([]*Page{{Name: "Home"}}, []*Page{{Name: "Home"}})
	if !errors.Is(err, ErrDuplicatePage) {
		t.Fatalf("expected ErrDuplicatePage across anonymous pages, got %v", err)
	}
}

func TestToPageHomeClearsDetached(t *testing.T) {
	home, anonymous := testPages()
	l, err := NewLayout(home, anonymous)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}

	if _, err := l.ToPage("Media"); err != nil {
		t.Fatalf("ToPage(Media): %v", err)
	}
	if l.Detached() == nil {
		t.Fatal("expected detached page after navigating to anonymous page")
	}
	if l.CurrentPage().Name != "Media" {
		t.Fatalf("current page = %q, want Media", l.CurrentPage().Name)
	}

	if _, err := l.ToPage("Climate"); err != nil {
		t.Fatalf("ToPage(Climate): %v", err)
	}
	if l.Detached() != nil {
		t.Fatal("navigating to a home page must clear the detached slot")
	}
	if l.CurrentPage().Name != "Climate" || l.CurrentIndex() != 1 {
		t.Fatalf("current = %q index %d, want Climate index 1", l.CurrentPage().Name, l.CurrentIndex())
	}
}

func TestDetachedOverridesHomeIndex(t *testing.T) {
	home, anonymous := testPages()
	l, _ := NewLayout(home, anonymous)

	if _, err := l.ToPage("Climate"); err != nil {
		t.Fatalf("ToPage: %v", err)
	}
	if _, err := l.ToPage("Media"); err != nil {
		t.Fatalf("ToPage: %v", err)
	}

	// The home index survives underneath the detached page.
	if l.CurrentIndex() != 1 {
		t.Fatalf("home index = %d, want 1", l.CurrentIndex())
	}
	if !l.CloseDetached() {
		t.Fatal("CloseDetached should report true with a detached page open")
	}
	if l.CurrentPage().Name != "Climate" {
		t.Fatalf("after close, current = %q, want Climate", l.CurrentPage().Name)
	}
	if l.CloseDetached() {
		t.Fatal("CloseDetached should report false with nothing open")
	}
}

func TestNextPreviousWrapAndClearDetached(t *testing.T) {
	home, anonymous := testPages()
	l, _ := NewLayout(home, anonymous)

	if p := l.NextPage(); p.Name != "Climate" {
		t.Fatalf("NextPage = %q, want Climate", p.Name)
	}
	if p := l.NextPage(); p.Name != "Scenes" {
		t.Fatalf("NextPage = %q, want Scenes", p.Name)
	}
	if p := l.NextPage(); p.Name != "Home" {
		t.Fatalf("NextPage should wrap to Home, got %q", p.Name)
	}
	if p := l.PreviousPage(); p.Name != "Scenes" {
		t.Fatalf("PreviousPage should wrap to Scenes, got %q", p.Name)
	}

	l.ToPage("Media")
	if p := l.NextPage(); p.Name != "Home" {
		t.Fatalf("NextPage from detached Scenes = %q, want Home", p.Name)
	}
	if l.Detached() != nil {
		t.Fatal("NextPage must clear the detached slot")
	}
}

func TestToPageIndexAndGoHome(t *testing.T) {
	home, anonymous := testPages()
	l, _ := NewLayout(home, anonymous)

	if _, err := l.ToPageIndex(2); err != nil {
		t.Fatalf("ToPageIndex(2): %v", err)
	}
	if l.CurrentPage().Name != "Scenes" {
		t.Fatalf("current = %q, want Scenes", l.CurrentPage().Name)
	}
	if _, err := l.ToPageIndex(3); !errors.Is(err, ErrUnknownPage) {
		t.Fatalf("out-of-range index: expected ErrUnknownPage, got %v", err)
	}

	l.ToPage("Media")
	if p := l.GoHome(); p.Name != "Scenes" {
		t.Fatalf("GoHome = %q, want the underlying home page", p.Name)
	}
	if l.Detached() != nil {
		t.Fatal("GoHome must clear the detached slot")
	}
}

func TestToPageUnknownLeavesStateUntouched(t *testing.T) {
	home, anonymous := testPages()
	l, _ := NewLayout(home, anonymous)
	l.ToPage("Media")

	_, err := l.ToPage("nope")
	if !errors.Is(err, ErrUnknownPage) {
		t.Fatalf("expected ErrUnknownPage, got %v", err)
	}
	if l.CurrentPage().Name != "Media" {
		t.Fatalf("failed navigation must not move, current = %q", l.CurrentPage().Name)
	}
}

func TestButtonResolutionBounds(t *testing.T) {
	home, anonymous := testPages()
	l, _ := NewLayout(home, anonymous)

	if _, _, err := l.button(0); err != nil {
		t.Fatalf("button(0): %v", err)
	}
	if _, _, err := l.button(5); !errors.Is(err, ErrControlIndex) {
		t.Fatalf("expected ErrControlIndex, got %v", err)
	}
	if _, _, err := l.dial(0); !errors.Is(err, ErrControlIndex) {
		t.Fatalf("expected ErrControlIndex for missing dial, got %v", err)
	}
}
