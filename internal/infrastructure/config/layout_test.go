package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rgoodwin/hadeck/internal/deck"
)

const testLayout = `
pages:
  - name: Home
    buttons:
      - entity_id: light.a
        text: "A"
      - special_type: go-to-page
        special_type_data: Media
      - entity_id: script.night
        service: script.turn_on
        delay_ms: 2000
    dials:
      - entity_id: light.a
        allow_touchscreen_events: true
        dial_event_turn:
          service: light.turn_on
          attribute: brightness
          min: 0
          max: 255
          step: 5
        dial_event_push:
          service: light.toggle
  - name: Climate
    close_on_inactivity_timer: false
anonymous_pages:
  - name: Media
    buttons:
      - special_type: close-page
`

func loadTestLayout(t *testing.T, content string) (*deck.Layout, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp layout: %v", err)
	}
	return LoadLayout(path)
}

func TestLoadLayout(t *testing.T) {
	layout, err := loadTestLayout(t, testLayout)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}

	if got := layout.PageNames(); len(got) != 2 || got[0] != "Home" || got[1] != "Climate" {
		t.Fatalf("page names = %v", got)
	}
	if !layout.HasPage("Media") {
		t.Fatal("anonymous page not registered")
	}

	home := layout.CurrentPage()
	if !home.CloseOnInactivity {
		t.Error("close_on_inactivity_timer should default to true")
	}
	if len(home.Buttons) != 3 || len(home.Dials) != 1 {
		t.Fatalf("home has %d buttons, %d dials", len(home.Buttons), len(home.Dials))
	}
	if home.Buttons[1].Special != deck.SpecialGoToPage || home.Buttons[1].SpecialData != "Media" {
		t.Errorf("button 1 = %+v", home.Buttons[1])
	}
	if home.Buttons[2].Delay != 2*time.Second {
		t.Errorf("delay = %v, want 2s", home.Buttons[2].Delay)
	}

	d := home.Dials[0]
	if d.Turn == nil || d.Push == nil {
		t.Fatal("dial actions not built")
	}
	if d.Turn.Properties.Max != 255 || d.Turn.Properties.Step != 5 {
		t.Errorf("turn properties = %+v", d.Turn.Properties)
	}
	if d.Turn.Properties.ServiceAttribute != "brightness" {
		t.Errorf("attribute = %q", d.Turn.Properties.ServiceAttribute)
	}
	if !d.AllowTouchscreenEvents {
		t.Error("allow_touchscreen_events not carried")
	}

	if p, err := layout.ToPage("Climate"); err != nil || p.CloseOnInactivity {
		t.Errorf("climate flag not honored: %v %v", p, err)
	}
}

func TestLoadLayoutRejectsUnknownSpecialType(t *testing.T) {
	_, err := loadTestLayout(t, `
pages:
  - name: Home
    buttons:
      - special_type: warp-drive
`)
	if !errors.Is(err, deck.ErrInvalidSpecialType) {
		t.Fatalf("expected ErrInvalidSpecialType, got %v", err)
	}
}

func TestLoadLayoutRejectsGoToPageWithoutTarget(t *testing.T) {
	_, err := loadTestLayout(t, `
pages:
  - name: Home
    buttons:
      - special_type: go-to-page
`)
	if err == nil {
		t.Fatal("expected error for go-to-page without target")
	}
}

func TestLoadLayoutRejectsInvertedDialBounds(t *testing.T) {
	_, err := loadTestLayout(t, `
pages:
  - name: Home
    dials:
      - entity_id: light.a
        dial_event_turn:
          service: light.turn_on
          min: 100
          max: 0
`)
	if !errors.Is(err, deck.ErrInvalidTurnProperties) {
		t.Fatalf("expected ErrInvalidTurnProperties, got %v", err)
	}
}

func TestLoadLayoutDefaultsDialStep(t *testing.T) {
	layout, err := loadTestLayout(t, `
pages:
  - name: Home
    dials:
      - entity_id: light.a
        dial_event_turn:
          service: light.turn_on
          min: 0
          max: 10
`)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	if step := layout.CurrentPage().Dials[0].Turn.Properties.Step; step != 1 {
		t.Fatalf("step = %g, want default 1", step)
	}
}

func TestLoadLayoutRequiresHomePage(t *testing.T) {
	_, err := loadTestLayout(t, `
anonymous_pages:
  - name: Media
`)
	if !errors.Is(err, deck.ErrNoHomePages) {
		t.Fatalf("expected ErrNoHomePages, got %v", err)
	}
}
