// README: Websocket delivery of the route and assignment change feed.
package handlers

import (
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"routedesk/internal/http/middleware"
	"routedesk/internal/modules/feed"
)

const (
	feedPingPeriod = 30 * time.Second
	feedPongWait   = 60 * time.Second
	feedWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type FeedHandler struct {
	sub feed.Subscriber
}

func NewFeedHandler(sub feed.Subscriber) *FeedHandler {
	return &FeedHandler{sub: sub}
}

// Stream upgrades the request and forwards every change on the topic until
// either side goes away.
func (h *FeedHandler) Stream(c *gin.Context) {
	topic, err := feed.ParseTopic(c.Param("topic"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ctx := c.Request.Context()
	changes, cancel, err := h.sub.Subscribe(ctx, topic)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("feed upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	uid := middleware.CallerUID(c)
	log.WithFields(log.Fields{"topic": topic, "caller": uid}).Info("feed connected")

	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			log.WithFields(log.Fields{"topic": topic, "caller": uid}).Info("feed disconnected")
			return
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(ch); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
