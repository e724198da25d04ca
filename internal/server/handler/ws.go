package handler

import (
	"context"
	"net/http"
	"time"

	"token-risk/internal/server/composer"
	"token-risk/internal/server/monitor"
	"token-risk/pkg/logger"
	"token-risk/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const assistantName = "ShrokAI"

// Chat websocket 会话：每个文本帧是一条用户输入，回复同样是 AnalysisResult JSON。
// 历史只属于当前连接
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.tl.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.cfg.MaxBodyBytes)

	monitor.WebsocketSessions.Inc()
	defer monitor.WebsocketSessions.Dec()

	ctx, span := logger.StartSpanWithRequest(r, "handler", "ws_session")
	defer span.End()
	tl := logger.NewLoggerWithTrace(ctx, h.tl)
	tl.Info("websocket connection established")

	// 读循环单独运行：对端断开时取消进行中的请求
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	msgs := make(chan string)
	go func() {
		defer cancel()
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					tl.Warn("websocket closed unexpectedly", zap.Error(err))
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			select {
			case msgs <- string(msg):
			case <-ctx.Done():
				return
			}
		}
	}()

	var history []string
	for {
		var text string
		select {
		case <-ctx.Done():
			tl.Info("websocket session ended")
			return
		case text = <-msgs:
		}

		result := h.composer.Handle(ctx, text, history)
		if ctx.Err() != nil {
			tl.Info("websocket peer gone, dropping reply")
			return
		}
		monitor.AnalyzeRequests.WithLabelValues("ws", composer.Outcome(result)).Inc()

		reply := result.Message
		if result.IsChat() {
			reply = result.Response
			result.Response = utils.CleanTextForTTS(result.Response)
		}
		history = appendHistory(history, h.cfg.HistorySize, "User: "+text, assistantName+": "+reply)

		data, err := sonic.Marshal(result)
		if err != nil {
			tl.Error("encode websocket reply failed", zap.Error(err))
			return
		}
		if h.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(time.Duration(h.cfg.WriteTimeout) * time.Second))
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			tl.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}

// appendHistory 只保留最近 limit 行
func appendHistory(history []string, limit int, lines ...string) []string {
	history = append(history, lines...)
	if len(history) > limit {
		history = append([]string(nil), history[len(history)-limit:]...)
	}
	return history
}
