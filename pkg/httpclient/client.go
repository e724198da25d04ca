package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"token-risk/pkg/retry"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

// HTTPClientConfig 配置参数
type HTTPClientConfig struct {
	Timeout    time.Duration     // 单次请求超时时间
	RateLimit  int               // 每分钟请求次数，<=0 不限流
	MaxRetries int               // GET 最大重试次数（不含首次），上限见 retry.MaxAttemptsCap
	RetryWait  time.Duration     // 首次重试等待时间
	UserAgent  string            // 可选 User-Agent
	Headers    map[string]string // 每个请求都携带的静态 header（鉴权等）
}

// HTTPClient 是一个通用的 HTTP 客户端
type HTTPClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	policy  retry.Policy
}

// NewHTTPClient 创建一个新的 HTTP 客户端
func NewHTTPClient(cfg HTTPClientConfig, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 200 * time.Millisecond
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(float64(cfg.RateLimit) / 60)
	}
	limiter := rate.NewLimiter(limit, 1)

	// 重试由 retry.Do 控制，resty 自身不重试
	restyClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
			// 为限流器等待创建带超时的上下文
			limiterCtx, cancel := context.WithTimeout(r.Context(), cfg.Timeout)
			defer cancel()

			if err := limiter.Wait(limiterCtx); err != nil {
				logger.Warn("Rate limiter wait failed", zap.Error(err))
				return err
			}
			if cfg.UserAgent != "" {
				r.SetHeader("User-Agent", cfg.UserAgent)
			}
			for k, v := range cfg.Headers {
				if v != "" {
					r.SetHeader(k, v)
				}
			}
			logger.Debug("Outgoing request", zap.String("url", r.URL))
			return nil
		}).
		AddResponseMiddleware(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				logger.Warn("HTTP request failed",
					zap.Int("status", resp.StatusCode()),
					zap.String("url", resp.Request.URL),
				)
			}
			return nil
		})

	return &HTTPClient{
		client:  restyClient,
		logger:  logger,
		limiter: limiter,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries + 1,
			BaseDelay:   cfg.RetryWait,
			MaxDelay:    4 * cfg.RetryWait,
			Jitter:      cfg.RetryWait / 4,
			Classify:    classify,
			OnRetry: func(attempt int, wait time.Duration, err error) {
				logger.Info("Retrying HTTP GET", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
			},
		},
	}
}

// Get 发起 GET 请求，成功时把 JSON 响应体解码到 out
// 连接错误与 5xx 按策略重试，其余错误直接返回
func (c *HTTPClient) Get(ctx context.Context, url string, queryParams map[string]string, headers map[string]string, out interface{}) error {
	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req := c.client.R().
			SetContext(ctx).
			SetQueryParams(queryParams).
			SetResult(out)

		if headers != nil {
			req.SetHeaders(headers)
		}

		resp, err := req.Get(url)
		if err != nil {
			c.logger.Error("HTTP GET request failed", zap.String("url", url), zap.Error(err))
			return err
		}
		if resp.StatusCode() >= 400 {
			return &HTTPError{Code: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
		}
		return nil
	})
}

// PostJSON 发起 JSON POST 请求，不重试
func (c *HTTPClient) PostJSON(ctx context.Context, url string, body interface{}, headers map[string]string, out interface{}) error {
	req := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out)

	if headers != nil {
		req.SetHeaders(headers)
	}
	req.SetHeader("Content-Type", "application/json")

	resp, err := req.Post(url)
	if err != nil {
		c.logger.Error("HTTP POST JSON request failed", zap.String("url", url), zap.Error(err))
		return err
	}
	if resp.StatusCode() >= 400 {
		return &HTTPError{Code: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	}
	return nil
}

// HTTPError 非 2xx 响应
type HTTPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.Code, e.Message)
}

// Temporary 5xx 视为临时错误
func (e *HTTPError) Temporary() bool {
	return e.Code >= 500
}

// StatusCode 取出错误链中的 HTTP 状态码，没有则返回 0
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func classify(err error) retry.Class {
	var he *HTTPError
	if errors.As(err, &he) {
		if he.Temporary() {
			return retry.Retryable
		}
		return retry.Fatal
	}
	if errors.Is(err, context.Canceled) {
		return retry.Fatal
	}
	return retry.Retryable
}
