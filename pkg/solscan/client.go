package solscan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"token-risk/internal/server/config"
	"token-risk/internal/server/model"
	"token-risk/internal/server/monitor"
	"token-risk/pkg/httpclient"
	"token-risk/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrProviderUnavailable 网络错误、超时、5xx、鉴权或限流失败
	ErrProviderUnavailable = errors.New("market data provider unavailable")
	// ErrUnknownToken provider 可达，但该地址没有代币数据
	ErrUnknownToken = errors.New("unknown token")
)

const (
	endpointTokenMeta     = "token_meta"
	endpointTokenTransfer = "token_transfer"
)

type Client struct {
	baseURL    string
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

func NewClient(cfg config.SolscanConfig, logger *zap.Logger) *Client {
	httpCfg := httpclient.HTTPClientConfig{
		Timeout:    time.Duration(cfg.Timeout) * time.Second,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		Headers:    map[string]string{"token": cfg.APIKey},
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpclient.NewHTTPClient(httpCfg, logger),
		logger:     logger,
	}
}

// GetTokenMeta 拉取代币元数据。数值字段解析失败时置为未知并记录 anomaly，不返回错误
func (c *Client) GetTokenMeta(ctx context.Context, address string) (*model.TokenMetadata, []model.Anomaly, error) {
	ctx, span := logger.StartSpan(ctx, "solscan", "GetTokenMeta", attribute.String("address", address))
	var err error
	defer func() { logger.EndSpan(span, err) }()

	u := fmt.Sprintf("%s/v2.0/token/meta?address=%s", c.baseURL, url.QueryEscape(address))
	env, err := c.get(ctx, endpointTokenMeta, u)
	if err != nil {
		err = c.classify(endpointTokenMeta, err, ErrUnknownToken)
		return nil, nil, err
	}
	if env.failed() {
		err = c.fail(endpointTokenMeta, ErrUnknownToken, "provider reported success=false")
		return nil, nil, err
	}

	records, derr := decodeRecords(env.Data)
	if derr != nil {
		err = c.fail(endpointTokenMeta, ErrUnknownToken, derr.Error())
		return nil, nil, err
	}
	if len(records) == 0 {
		err = c.fail(endpointTokenMeta, ErrUnknownToken, "empty data")
		return nil, nil, err
	}

	meta, anomalies := normalizeMeta(address, records[0])
	return meta, anomalies, nil
}

// GetEarliestTransfers 拉取最早的 limit 条指定类型活动，按 block_time 升序。
// activityCodes 为 provider 枚举值（见 ActivityCodes）。数据为空不是错误
func (c *Client) GetEarliestTransfers(ctx context.Context, address string, activityCodes []string, limit int) ([]model.TransferRecord, []model.Anomaly, error) {
	ctx, span := logger.StartSpan(ctx, "solscan", "GetEarliestTransfers",
		attribute.String("address", address), attribute.Int("limit", limit))
	var err error
	defer func() { logger.EndSpan(span, err) }()

	if limit <= 0 {
		return []model.TransferRecord{}, nil, nil
	}

	q := url.Values{}
	q.Set("address", address)
	for _, code := range activityCodes {
		q.Add("activity_type[]", code)
	}
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(PageSize(limit)))
	q.Set("sort_by", "block_time")
	q.Set("sort_order", "asc")

	u := fmt.Sprintf("%s/v2.0/token/transfer?%s", c.baseURL, q.Encode())
	env, err := c.get(ctx, endpointTokenTransfer, u)
	if err != nil {
		// 地址非法或不存在时没有转账数据，按空序列处理
		if code := httpclient.StatusCode(err); code == http.StatusBadRequest || code == http.StatusNotFound {
			c.logger.Info("no transfer data for address", zap.String("address", address), zap.Int("status", code))
			err = nil
			return []model.TransferRecord{}, nil, nil
		}
		err = c.classify(endpointTokenTransfer, err, ErrProviderUnavailable)
		return nil, nil, err
	}

	var anomalies []model.Anomaly
	if env.failed() {
		anomalies = append(anomalies, model.Anomaly{Scope: model.ScopeTransfer, Field: "success", Detail: "provider reported success=false"})
		return []model.TransferRecord{}, anomalies, nil
	}

	records, derr := decodeRecords(env.Data)
	if derr != nil {
		anomalies = append(anomalies, model.Anomaly{Scope: model.ScopeTransfer, Field: "data", Detail: derr.Error()})
		return []model.TransferRecord{}, anomalies, nil
	}

	transfers := make([]model.TransferRecord, 0, len(records))
	for i, rec := range records {
		t, recAnomalies, ok := normalizeTransfer(i, rec)
		anomalies = append(anomalies, recAnomalies...)
		if ok {
			transfers = append(transfers, t)
		}
	}

	// 没有时间的记录排在最后，不占用最早窗口
	sort.SliceStable(transfers, func(i, j int) bool {
		ti, tj := transfers[i].Timestamp, transfers[j].Timestamp
		if ti.IsZero() || tj.IsZero() {
			return !ti.IsZero() && tj.IsZero()
		}
		return ti.Before(tj)
	})
	if len(transfers) > limit {
		transfers = transfers[:limit]
	}
	return transfers, anomalies, nil
}

func (c *Client) get(ctx context.Context, endpoint, u string) (*envelope, error) {
	start := time.Now()
	var env envelope
	err := c.httpClient.Get(ctx, u, nil, nil, &env)
	monitor.ProviderRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// classify 把传输层错误映射为 ErrProviderUnavailable / notFound
func (c *Client) classify(endpoint string, err error, notFound error) error {
	kind := ErrProviderUnavailable
	if code := httpclient.StatusCode(err); code == http.StatusBadRequest || code == http.StatusNotFound {
		kind = notFound
	}
	return c.fail(endpoint, kind, err.Error())
}

func (c *Client) fail(endpoint string, kind error, detail string) error {
	label := "provider_unavailable"
	if errors.Is(kind, ErrUnknownToken) {
		label = "unknown_token"
	}
	monitor.ProviderFailures.WithLabelValues(endpoint, label).Inc()
	c.logger.Warn("solscan request failed",
		zap.String("endpoint", endpoint),
		zap.String("kind", label),
		zap.String("detail", detail),
	)
	return fmt.Errorf("%s: %w", detail, kind)
}
