// hadeckd drives a key/dial/touch-strip control surface from a
// declarative page layout, synchronized against a Home Assistant
// instance over its websocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rgoodwin/hadeck/internal/api"
	"github.com/rgoodwin/hadeck/internal/deck"
	"github.com/rgoodwin/hadeck/internal/deckio"
	"github.com/rgoodwin/hadeck/internal/entity"
	"github.com/rgoodwin/hadeck/internal/hass"
	"github.com/rgoodwin/hadeck/internal/history"
	"github.com/rgoodwin/hadeck/internal/infrastructure/config"
	"github.com/rgoodwin/hadeck/internal/infrastructure/logging"
	"github.com/rgoodwin/hadeck/internal/render"
	"github.com/rgoodwin/hadeck/internal/status"
	"github.com/rgoodwin/hadeck/internal/telemetry"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded.
	log := logging.Default()
	log.Info("starting hadeck", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings.
	log = logging.New(cfg.Logging, version)

	layout, err := config.LoadLayout(cfg.Deck.LayoutFile)
	if err != nil {
		return fmt.Errorf("loading layout: %w", err)
	}
	log.Info("layout loaded", "path", cfg.Deck.LayoutFile, "pages", layout.PageNames())

	// Hardware surface. The mock backend stands in until a physical
	// device backend implements deckio.Driver.
	driver := deckio.NewMockDriver()
	defer driver.Close()
	if err := driver.SetBrightness(cfg.Deck.Brightness); err != nil {
		log.Warn("setting brightness", "error", err)
	}

	store := entity.NewStore()
	renderer := render.New(driver, store)
	renderer.SetLogger(log.With("component", "render"))

	client := hass.NewClient(hass.Options{
		URL:                   cfg.HomeAssistant.URL,
		Token:                 cfg.HomeAssistant.Token,
		PingInterval:          time.Duration(cfg.HomeAssistant.PingInterval) * time.Second,
		ReconnectInitialDelay: time.Duration(cfg.HomeAssistant.Reconnect.InitialDelay) * time.Second,
		ReconnectMaxDelay:     time.Duration(cfg.HomeAssistant.Reconnect.MaxDelay) * time.Second,
	})
	client.SetLogger(log.With("component", "hass"))
	defer client.Close()

	controller, err := deck.New(deck.Options{
		Layout:            layout,
		States:            store,
		Caller:            client,
		Renderer:          renderer,
		ReturnToHomePage:  cfg.ReturnToHome.Page,
		ReturnToHomeAfter: time.Duration(cfg.ReturnToHome.Duration * float64(time.Second)),
		TouchWidth:        driver.TouchWidth(),
		LongPress:         time.Duration(cfg.Deck.LongPressMS) * time.Millisecond,
		DragThreshold:     cfg.Deck.DragThresholdPX,
	})
	if err != nil {
		return fmt.Errorf("building controller: %w", err)
	}
	controller.SetLogger(log.With("component", "deck"))
	defer controller.Close()

	// Optional collaborators.
	var recorder *history.Recorder
	if cfg.History.Enabled {
		recorder, err = history.Open(cfg.History.Path, cfg.History.MaxRows)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer recorder.Close()
		log.Info("history recording enabled", "path", cfg.History.Path)
	}

	metrics := telemetry.New(telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		URL:           cfg.Telemetry.URL,
		Token:         cfg.Telemetry.Token,
		Org:           cfg.Telemetry.Org,
		Bucket:        cfg.Telemetry.Bucket,
		BatchSize:     cfg.Telemetry.BatchSize,
		FlushInterval: time.Duration(cfg.Telemetry.FlushInterval) * time.Second,
	})
	metrics.SetLogger(log.With("component", "telemetry"))
	if cfg.Telemetry.Enabled {
		if err := metrics.Connect(ctx); err != nil {
			// Telemetry is best-effort: a dead endpoint never blocks startup.
			log.Warn("telemetry unavailable", "error", err)
		} else {
			defer metrics.Close()
			log.Info("telemetry enabled", "url", cfg.Telemetry.URL)
		}
	}

	var presence *status.Publisher
	if cfg.Status.Enabled {
		presence = status.New(status.Config{
			Host:        cfg.Status.Broker.Host,
			Port:        cfg.Status.Broker.Port,
			TLS:         cfg.Status.Broker.TLS,
			ClientID:    cfg.Status.Broker.ClientID,
			Username:    cfg.Status.Auth.Username,
			Password:    cfg.Status.Auth.Password,
			QoS:         byte(cfg.Status.QoS),
			TopicPrefix: cfg.Status.TopicPrefix,
		})
		presence.SetLogger(log.With("component", "status"))
		if err := presence.Connect(); err != nil {
			log.Warn("mqtt presence unavailable", "error", err)
			presence = nil
		} else {
			defer presence.Close()
		}
	}

	wire(controller, client, store, driver, recorder, metrics, presence, log)

	// Home Assistant session runs for the life of the process.
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("home assistant session failed", "error", err)
		}
	}()

	var apiServer *api.Server
	if cfg.API.Enabled {
		var hist api.History
		if recorder != nil {
			hist = recorder
		}
		apiServer = api.New(api.Config{
			Host:        cfg.API.Host,
			Port:        cfg.API.Port,
			BearerToken: cfg.API.BearerToken,
		}, api.Deps{
			Controller: controller,
			History:    hist,
			Logger:     log.With("component", "api"),
			Connected:  client.Connected,
		})
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error("api server failed", "error", err)
			}
		}()
	}

	// Draw the initial page; entity-bound labels fill in once the state
	// dump arrives.
	controller.Refresh()
	log.Info("hadeck running")

	<-ctx.Done()
	log.Info("shutting down")

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Close(shutdownCtx); err != nil {
			log.Warn("api shutdown", "error", err)
		}
		cancel()
	}
	return nil
}

// wire connects the event flows between the collaborators.
func wire(
	controller *deck.Controller,
	client *hass.Client,
	store *entity.Store,
	driver deckio.Driver,
	recorder *history.Recorder,
	metrics *telemetry.Client,
	presence *status.Publisher,
	log *logging.Logger,
) {
	// Remote -> store -> controller.
	client.SetOnStates(func(entities []*entity.Entity) {
		snapshot := make([]entity.Entity, 0, len(entities))
		for _, e := range entities {
			snapshot = append(snapshot, *e)
		}
		store.ReplaceAll(snapshot)
		controller.Refresh()
	})
	client.SetOnStateChanged(store.ApplyChange)
	client.SetOnDisconnect(func(err error) {
		log.Warn("home assistant disconnected", "error", err)
	})

	store.Subscribe(func(ch entity.StateChange) {
		controller.OnEntityUpdated(ch.EntityID)
		if ch.NewState != nil {
			metrics.WriteEntityState(ch.EntityID, ch.NewState.State)
		}
		if recorder != nil {
			oldState := ""
			if ch.OldState != nil {
				oldState = ch.OldState.State
			}
			newState := ""
			if ch.NewState != nil {
				newState = ch.NewState.State
			}
			if err := recorder.Record(ch.EntityID, oldState, newState, time.Now()); err != nil {
				log.Warn("recording state change", "entity_id", ch.EntityID, "error", err)
			}
		}
	})

	// Controller hooks.
	controller.SetOnReload(func() {
		if err := client.RefreshStates(); err != nil {
			log.Warn("state refresh failed", "error", err)
		}
	})
	controller.SetOnNavigate(func(page *deck.Page) {
		metrics.WritePageView(page.Name)
		if presence != nil {
			st := controller.CurrentStatus()
			presence.PublishPage(st.Page, st.Detached)
		}
	})
	controller.SetOnDialAdjust(metrics.WriteDialAdjust)

	// Hardware -> controller.
	driver.OnKey(func(key int, pressed bool) {
		if err := controller.HandleKey(key, pressed); err != nil {
			log.Warn("key event failed", "key", key, "error", err)
		}
	})
	driver.OnDial(func(dial int, pushed bool, delta float64) {
		kind := deck.DialTurn
		if pushed {
			kind = deck.DialPush
		}
		if err := controller.HandleDial(dial, kind, delta); err != nil {
			log.Warn("dial event failed", "dial", dial, "error", err)
		}
	})
	driver.OnTouch(func(kind deckio.TouchKind, x, y, xOut, yOut int, held time.Duration) {
		k := deck.TouchTap
		if kind == deckio.TouchDrag {
			k = deck.TouchDrag
		}
		ev := deck.TouchEvent{X: x, Y: y, XOut: xOut, YOut: yOut, Held: held}
		if err := controller.HandleTouch(k, ev); err != nil {
			log.Warn("touch event failed", "error", err)
		}
	})
}

// getConfigPath resolves the configuration file path from the command
// line or environment, falling back to the default.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if path := os.Getenv("HADECK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
