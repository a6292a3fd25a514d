package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rgoodwin/hadeck/internal/deck"
)

// LayoutFile is the top-level structure of the page layout YAML.
//
// Pages form the home rotation in declaration order; anonymous pages
// are reachable only via go-to-page buttons and open detached.
type LayoutFile struct {
	Pages          []PageDef `yaml:"pages"`
	AnonymousPages []PageDef `yaml:"anonymous_pages"`
}

// PageDef declares one page.
type PageDef struct {
	Name    string      `yaml:"name"`
	Buttons []ButtonDef `yaml:"buttons"`
	Dials   []DialDef   `yaml:"dials"`

	// CloseOnInactivityTimer gates whether activity on this page arms the
	// return-to-home timer. Defaults to true.
	CloseOnInactivityTimer *bool `yaml:"close_on_inactivity_timer"`
}

// ButtonDef declares one key binding. A null entry in the buttons list
// leaves that key empty.
type ButtonDef struct {
	EntityID    string         `yaml:"entity_id"`
	SpecialType string         `yaml:"special_type"`
	SpecialData string         `yaml:"special_type_data"`
	Service     string         `yaml:"service"`
	ServiceData map[string]any `yaml:"service_data"`
	Text        string         `yaml:"text"`
	// DelayMS is the hold-to-activate threshold in milliseconds.
	DelayMS int `yaml:"delay_ms"`
}

// DialDef declares one dial binding.
type DialDef struct {
	EntityID               string         `yaml:"entity_id"`
	Text                   string         `yaml:"text"`
	AllowTouchscreenEvents bool           `yaml:"allow_touchscreen_events"`
	Turn                   *TurnActionDef `yaml:"dial_event_turn"`
	Push                   *PushActionDef `yaml:"dial_event_push"`
}

// TurnActionDef declares a dial's rotary action.
type TurnActionDef struct {
	Service          string         `yaml:"service"`
	ServiceData      map[string]any `yaml:"service_data"`
	ServiceAttribute string         `yaml:"attribute"`
	Min              float64        `yaml:"min"`
	Max              float64        `yaml:"max"`
	Step             float64        `yaml:"step"`
	State            float64        `yaml:"state"`
}

// PushActionDef declares a dial's press action.
type PushActionDef struct {
	Service     string         `yaml:"service"`
	ServiceData map[string]any `yaml:"service_data"`
}

// LoadLayout reads a layout YAML file and builds the navigable page set.
// All structural validation happens here: duplicate page names, unknown
// special types and invalid dial bounds abort startup.
func LoadLayout(path string) (*deck.Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout file: %w", err)
	}

	var file LayoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing layout file: %w", err)
	}

	return BuildLayout(&file)
}

// BuildLayout converts parsed layout definitions into a deck.Layout.
func BuildLayout(file *LayoutFile) (*deck.Layout, error) {
	pages, err := buildPages(file.Pages)
	if err != nil {
		return nil, err
	}
	anonymous, err := buildPages(file.AnonymousPages)
	if err != nil {
		return nil, err
	}
	return deck.NewLayout(pages, anonymous)
}

func buildPages(defs []PageDef) ([]*deck.Page, error) {
	pages := make([]*deck.Page, 0, len(defs))
	for _, def := range defs {
		p, err := buildPage(def)
		if err != nil {
			return nil, fmt.Errorf("page %q: %w", def.Name, err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func buildPage(def PageDef) (*deck.Page, error) {
	page := &deck.Page{
		Name:              def.Name,
		CloseOnInactivity: true,
	}
	if def.CloseOnInactivityTimer != nil {
		page.CloseOnInactivity = *def.CloseOnInactivityTimer
	}

	for i, b := range def.Buttons {
		btn, err := buildButton(b)
		if err != nil {
			return nil, fmt.Errorf("button %d: %w", i, err)
		}
		page.Buttons = append(page.Buttons, btn)
	}
	for i, d := range def.Dials {
		dial, err := buildDial(d)
		if err != nil {
			return nil, fmt.Errorf("dial %d: %w", i, err)
		}
		page.Dials = append(page.Dials, dial)
	}
	return page, nil
}

func buildButton(def ButtonDef) (*deck.Button, error) {
	special, err := deck.ParseSpecialType(def.SpecialType)
	if err != nil {
		return nil, err
	}
	if special == deck.SpecialGoToPage && def.SpecialData == "" {
		return nil, fmt.Errorf("go-to-page requires special_type_data")
	}
	return &deck.Button{
		EntityID:    def.EntityID,
		Special:     special,
		SpecialData: def.SpecialData,
		Service:     def.Service,
		ServiceData: def.ServiceData,
		Text:        def.Text,
		Delay:       time.Duration(def.DelayMS) * time.Millisecond,
	}, nil
}

func buildDial(def DialDef) (*deck.Dial, error) {
	dial := &deck.Dial{
		EntityID:               def.EntityID,
		Text:                   def.Text,
		AllowTouchscreenEvents: def.AllowTouchscreenEvents,
	}
	if def.Turn != nil {
		props := deck.TurnProperties{
			Min:              def.Turn.Min,
			Max:              def.Turn.Max,
			Step:             def.Turn.Step,
			State:            def.Turn.State,
			ServiceAttribute: def.Turn.ServiceAttribute,
		}
		if props.Step == 0 {
			props.Step = 1
		}
		if err := props.Validate(); err != nil {
			return nil, err
		}
		dial.Turn = &deck.TurnAction{
			Service:    def.Turn.Service,
			Data:       def.Turn.ServiceData,
			Properties: props,
		}
	}
	if def.Push != nil {
		dial.Push = &deck.PushAction{
			Service: def.Push.Service,
			Data:    def.Push.ServiceData,
		}
	}
	return dial, nil
}
