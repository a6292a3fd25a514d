package deck

import (
	"fmt"
)

// Layout owns the page set and the navigation state: the home rotation
// index and the single detached-page slot.
//
// Exactly one of {home index, detached page} resolves CurrentPage at any
// time. Layout carries no lock of its own; the Controller's mutex is the
// single mutual-exclusion domain for all navigation mutations.
type Layout struct {
	pages     []*Page
	anonymous []*Page
	byName    map[string]*Page

	current  int
	detached *Page
}

// NewLayout builds a layout from home pages and anonymous pages.
//
// Home pages form the default forward/back rotation; anonymous pages are
// reachable only by explicit navigation and open into the detached slot.
// A layout with no home pages is a configuration error.
func NewLayout(pages, anonymous []*Page) (*Layout, error) {
	if len(pages) == 0 {
		return nil, ErrNoHomePages
	}

	byName := make(map[string]*Page, len(pages)+len(anonymous))
	for _, p := range append(append([]*Page{}, pages...), anonymous...) {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: page with empty name", ErrUnknownPage)
		}
		if _, exists := byName[p.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePage, p.Name)
		}
		byName[p.Name] = p
	}

	return &Layout{
		pages:     pages,
		anonymous: anonymous,
		byName:    byName,
	}, nil
}

// CurrentPage resolves to the detached page if one is set, else the page
// at the home index. It never fails: construction guarantees a home page.
func (l *Layout) CurrentPage() *Page {
	if l.detached != nil {
		return l.detached
	}
	return l.pages[l.current]
}

// Detached returns the detached page, or nil if none is open.
func (l *Layout) Detached() *Page {
	return l.detached
}

// CurrentIndex returns the home rotation index. It remains meaningful
// while a detached page overrides it.
func (l *Layout) CurrentIndex() int {
	return l.current
}

// ToPage navigates to the named page. A home target sets the rotation
// index and clears the detached slot; an anonymous target fills the
// detached slot. Unknown names fail with ErrUnknownPage and leave the
// navigation state untouched.
func (l *Layout) ToPage(name string) (*Page, error) {
	target, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPage, name)
	}

	for i, p := range l.pages {
		if p == target {
			l.current = i
			l.detached = nil
			p.invalidateDials()
			return p, nil
		}
	}

	// Anonymous page: open transiently in the detached slot.
	l.detached = target
	target.invalidateDials()
	return target, nil
}

// ToPageIndex navigates to the home page at the given rotation index and
// clears the detached slot.
func (l *Layout) ToPageIndex(i int) (*Page, error) {
	if i < 0 || i >= len(l.pages) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownPage, i)
	}
	l.current = i
	l.detached = nil
	l.pages[i].invalidateDials()
	return l.pages[i], nil
}

// NextPage advances the home rotation, wrapping, and clears the detached
// slot.
func (l *Layout) NextPage() *Page {
	l.current = (l.current + 1) % len(l.pages)
	l.detached = nil
	p := l.pages[l.current]
	p.invalidateDials()
	return p
}

// PreviousPage steps the home rotation back, wrapping, and clears the
// detached slot.
func (l *Layout) PreviousPage() *Page {
	l.current = (l.current - 1 + len(l.pages)) % len(l.pages)
	l.detached = nil
	p := l.pages[l.current]
	p.invalidateDials()
	return p
}

// GoHome clears the detached slot, restoring the home index view.
func (l *Layout) GoHome() *Page {
	l.detached = nil
	p := l.pages[l.current]
	p.invalidateDials()
	return p
}

// CloseDetached clears the detached slot if one is set and reports
// whether it did. No-op otherwise.
func (l *Layout) CloseDetached() bool {
	if l.detached == nil {
		return false
	}
	l.detached = nil
	l.pages[l.current].invalidateDials()
	return true
}

// HasPage reports whether any page (home or anonymous) carries the name.
func (l *Layout) HasPage(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// PageNames returns the home rotation names in order.
func (l *Layout) PageNames() []string {
	names := make([]string, len(l.pages))
	for i, p := range l.pages {
		names[i] = p.Name
	}
	return names
}

// button resolves a key index on the current page.
func (l *Layout) button(key int) (*Button, *Page, error) {
	page := l.CurrentPage()
	if key < 0 || key >= len(page.Buttons) {
		return nil, page, fmt.Errorf("%w: key %d on page %q", ErrControlIndex, key, page.Name)
	}
	return page.Buttons[key], page, nil
}

// dial resolves a dial index on the current page.
func (l *Layout) dial(i int) (*Dial, *Page, error) {
	page := l.CurrentPage()
	if i < 0 || i >= len(page.Dials) {
		return nil, page, fmt.Errorf("%w: dial %d on page %q", ErrControlIndex, i, page.Name)
	}
	return page.Dials[i], page, nil
}
