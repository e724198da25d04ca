package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"token-risk/internal/server/composer"
	"token-risk/internal/server/config"
	"token-risk/internal/server/model"
	"token-risk/internal/server/monitor"
	"token-risk/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Composer 请求流水线
type Composer interface {
	Handle(ctx context.Context, query string, history []string) model.AnalysisResult
}

type analyzeRequest struct {
	UserQuery string `json:"user_query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	cfg      config.ServerConfig
	tl       *zap.Logger
	composer Composer
	upgrader websocket.Upgrader
}

func NewHandler(cfg config.ServerConfig, tl *zap.Logger, c Composer) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 * 1024
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 20
	}
	h := &Handler{cfg: cfg, tl: tl, composer: c}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(cfg.AllowedOrigins, origin)
		},
	}
	return h
}

// Routes 注册所有入站路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", h.Analyze)
	mux.HandleFunc("GET /ws/ai", h.Chat)
	mux.HandleFunc("GET /healthz", h.Healthz)
	return h.recoverer(cors(h.cfg.AllowedOrigins, mux))
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx, span := logger.StartSpanWithRequest(r, "handler", "analyze")
	defer span.End()
	tl := logger.NewLoggerWithTrace(ctx, h.tl)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read request body"})
		return
	}

	var req analyzeRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		tl.Info("rejecting malformed request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}
	query := strings.TrimSpace(req.UserQuery)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_query is required"})
		return
	}

	start := time.Now()
	result := h.composer.Handle(ctx, query, nil)
	outcome := composer.Outcome(result)
	monitor.AnalyzeRequests.WithLabelValues("http", outcome).Inc()
	tl.Info("analyze done",
		zap.String("outcome", outcome),
		zap.String("ca", result.ContractAddress),
		zap.Float64("cost", time.Since(start).Seconds()),
	)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
