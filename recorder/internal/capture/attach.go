package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/wsrecorder/recorder/internal/normalize"
)

// LoadFunc runs after every page load.
type LoadFunc func(ctx context.Context)

// Attach installs capture.js on page, for the current document and every
// future one, and forwards reported events to d until ctx is cancelled.
func Attach(ctx context.Context, page *rod.Page, d *Dispatcher, onLoad LoadFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(page); err != nil {
		return fmt.Errorf("capture: add binding: %w", err)
	}
	if err := (proto.PageEnable{}).Call(page); err != nil {
		return fmt.Errorf("capture: enable page domain: %w", err)
	}

	// Subscribe before injecting so the first events are not lost.
	wait := page.Context(ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != BindingName {
				return
			}
			var ev normalize.Event
			if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
				logger.Warn("capture: parse binding payload", "error", err)
				return
			}
			d.Submit(ev)
		},
		func(e *proto.PageLoadEventFired) {
			if onLoad != nil {
				go onLoad(ctx)
			}
		},
	)
	go wait()

	if _, err := page.EvalOnNewDocument("(" + Script + ")()"); err != nil {
		return fmt.Errorf("capture: register script: %w", err)
	}
	if _, err := page.Context(ctx).Eval(Script); err != nil {
		return fmt.Errorf("capture: inject script: %w", err)
	}
	logger.Debug("capture: attached", "binding", BindingName)
	return nil
}
