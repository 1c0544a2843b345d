package events

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/onnwee/shopfinder/internal/middleware"
)

// Handler upgrades GET requests to WebSocket subscriptions on b. Clients are
// not expected to send anything; reads only detect disconnects.
func Handler(b *Broadcaster, allowedOrigins []string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			b.logger.WarnContext(ctx, "failed to upgrade websocket connection", "error", err)
			return
		}

		b.Subscribe(conn)
		requestID := middleware.GetRequestID(ctx)
		b.logger.InfoContext(ctx, "websocket client subscribed to events", "request_id", requestID)

		defer func() {
			b.Unsubscribe(conn)
			conn.Close()
			b.logger.InfoContext(ctx, "websocket client unsubscribed", "request_id", requestID)
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					b.logger.WarnContext(ctx, "websocket connection closed unexpectedly", "error", err)
				}
				return
			}
		}
	})
}

// originChecker allows same-host requests, plus the listed origins; "*"
// allows any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
