package recorder

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/hazyhaar/wsrecorder/recorder/internal/config"
	"github.com/hazyhaar/wsrecorder/recorder/internal/transport"
)

// buildTransports turns the configured outputs into one fan-out emitter.
// Websockets are also returned so Start can run their connection loops.
// Types were checked by Config.Validate.
func buildTransports(cfgs []config.TransportConfig, logger *slog.Logger) (*transport.Router, []*transport.WebSocket) {
	var (
		emitters []transport.Emitter
		sockets  []*transport.WebSocket
	)
	for _, tc := range cfgs {
		switch tc.Type {
		case "stdout":
			emitters = append(emitters, transport.NewStdout(os.Stdout))
		case "webhook":
			emitters = append(emitters, transport.NewWebhook(tc.URL, transport.WithWebhookLogger(logger)))
		case "websocket":
			opts := []transport.WebSocketOption{transport.WithSocketLogger(logger)}
			if len(tc.Headers) > 0 {
				h := make(http.Header, len(tc.Headers))
				for k, v := range tc.Headers {
					h.Set(k, v)
				}
				opts = append(opts, transport.WithHeader(h))
			}
			if tc.WriteTimeout > 0 {
				opts = append(opts, transport.WithWriteTimeout(tc.WriteTimeout))
			}
			ws := transport.NewWebSocket(tc.URL, opts...)
			emitters = append(emitters, ws)
			sockets = append(sockets, ws)
		}
		logger.Debug("recorder: transport configured", "type", tc.Type, "url", tc.URL)
	}
	return transport.NewRouter(logger, emitters...), sockets
}
