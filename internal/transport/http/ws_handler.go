package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"quiz-arena-service/internal/domain"
)

// RankingFeed is the live source of published global rankings.
type RankingFeed interface {
	CurrentRanking(ctx context.Context) domain.Ranking
	Subscribe() (<-chan domain.Ranking, func())
}

// WSHandler streams global ranking updates to websocket clients.
type WSHandler struct {
	feed     RankingFeed
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(feed RankingFeed, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		feed:   feed,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes a "leaderboard" message for the
// current ranking and for every one published afterwards. Clients may send
// {"type":"refresh"} to get the current ranking again.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if h.feed == nil {
		http.Error(w, "live rankings unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", "error", err)
				return
			}
		}
	}()

	enqueue := func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		case <-closeSignals:
			return false
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ranking, ok := <-updates:
				if !ok {
					return
				}
				if !enqueue(leaderboardMessage(ranking, limit)) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var msg outboundMessage
		switch inbound.Type {
		case "refresh":
			msg = leaderboardMessage(h.feed.CurrentRanking(r.Context()), limit)
		default:
			msg = outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if !enqueue(msg) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func leaderboardMessage(ranking domain.Ranking, limit int) outboundMessage {
	if limit > 0 && len(ranking.Entries) > limit {
		ranking.Entries = ranking.Entries[:limit]
	}
	return outboundMessage{Type: "leaderboard", Payload: ranking}
}
