package composer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"token-risk/internal/server/analyzer"
	"token-risk/internal/server/classifier"
	"token-risk/internal/server/config"
	"token-risk/internal/server/extractor"
	"token-risk/internal/server/model"
	"token-risk/internal/server/monitor"
	"token-risk/pkg/logger"
	"token-risk/pkg/solscan"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// FallbackResponse 聊天生成失败时的固定回复
const FallbackResponse = "Sorry, something went wrong with my mushroom visions!"

// MarketData 行情数据 provider
type MarketData interface {
	GetTokenMeta(ctx context.Context, address string) (*model.TokenMetadata, []model.Anomaly, error)
	GetEarliestTransfers(ctx context.Context, address string, activityCodes []string, limit int) ([]model.TransferRecord, []model.Anomaly, error)
}

// SupplyReader 链上供应量兜底
type SupplyReader interface {
	TokenSupply(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error)
}

// Responder 生成式聊天
type Responder interface {
	Respond(ctx context.Context, persona, text string, history []string) (string, error)
}

type Options struct {
	ActivityTypes     []string
	SampleSize        int
	InsiderCheck      bool
	InsiderMinRepeats int
	HolderCheck       bool
	MinHolders        int64
	SocialsCheck      bool
	Persona           string
	Timeout           time.Duration
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ActivityTypes:     cfg.Analysis.ActivityTypes,
		SampleSize:        cfg.Analysis.SampleSize,
		InsiderCheck:      cfg.Analysis.InsiderCheck,
		InsiderMinRepeats: cfg.Analysis.InsiderMinRepeats,
		HolderCheck:       cfg.Analysis.HolderCheck,
		MinHolders:        cfg.Analysis.MinHolders,
		SocialsCheck:      cfg.Analysis.SocialsCheck,
		Persona:           cfg.OpenAI.Persona,
		Timeout:           time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}
}

// Composer 把提取、拉取、分析、分级串成一条流水线。
// 自身只持有不可变配置和只读依赖，请求之间不共享可变状态
type Composer struct {
	opts          Options
	activityCodes []string
	market        MarketData
	supply        SupplyReader
	chat          Responder
	classifier    atomic.Pointer[classifier.Classifier]
	tl            *zap.Logger
}

// New supply 和 chat 可以为 nil
func New(opts Options, market MarketData, supply SupplyReader, chat Responder, cls *classifier.Classifier, tl *zap.Logger) (*Composer, error) {
	if market == nil {
		return nil, errors.New("composer: market data client is required")
	}
	if cls == nil {
		return nil, errors.New("composer: classifier is required")
	}
	codes, err := solscan.ActivityCodes(opts.ActivityTypes)
	if err != nil {
		return nil, fmt.Errorf("composer: %w", err)
	}
	if opts.SampleSize <= 0 {
		return nil, fmt.Errorf("composer: sample size must be positive, got %d", opts.SampleSize)
	}
	if opts.InsiderMinRepeats < 1 {
		opts.InsiderMinRepeats = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	c := &Composer{
		opts:          opts,
		activityCodes: codes,
		market:        market,
		supply:        supply,
		chat:          chat,
		tl:            tl,
	}
	c.classifier.Store(cls)
	return c, nil
}

// SetClassifier 热更新分级表，进行中的请求继续使用旧快照
func (c *Composer) SetClassifier(cls *classifier.Classifier) {
	if cls != nil {
		c.classifier.Store(cls)
	}
}

// Classifier 当前生效的分级表
func (c *Composer) Classifier() *classifier.Classifier {
	return c.classifier.Load()
}

// Handle 处理一条用户输入，总是返回一个结构完整的结果
func (c *Composer) Handle(ctx context.Context, query string, history []string) model.AnalysisResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var result model.AnalysisResult
	if ca, ok := extractor.Extract(query); ok {
		result = c.analyze(ctx, ca)
	} else {
		result = c.respond(ctx, query, history)
	}

	outcome := Outcome(result)
	monitor.AnalyzeDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return result
}

func (c *Composer) respond(ctx context.Context, query string, history []string) model.AnalysisResult {
	tl := logger.NewLoggerWithTrace(ctx, c.tl)
	if c.chat == nil {
		monitor.ChatFallbacks.Inc()
		return model.AnalysisResult{Response: FallbackResponse}
	}

	text, err := c.chat.Respond(ctx, c.opts.Persona, query, history)
	if err != nil || text == "" {
		monitor.ChatFallbacks.Inc()
		tl.Warn("chat generator gave no response", zap.Error(err))
		return model.AnalysisResult{Response: FallbackResponse}
	}
	return model.AnalysisResult{Response: text}
}

func (c *Composer) analyze(ctx context.Context, ca extractor.ContractAddress) model.AnalysisResult {
	addr := ca.String()
	tl := logger.NewLoggerWithTrace(ctx, c.tl).With(zap.String("ca", addr))
	cls := c.classifier.Load()

	var (
		meta          *model.TokenMetadata
		metaAnomalies []model.Anomaly
		metaErr       error
		transfers     []model.TransferRecord
		trAnomalies   []model.Anomaly
		trErr         error
	)

	// 元数据失败时结果里不需要转账，直接取消另一路请求
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	p := pool.New().WithMaxGoroutines(2)
	p.Go(func() {
		meta, metaAnomalies, metaErr = c.market.GetTokenMeta(fetchCtx, addr)
		if metaErr != nil {
			cancelFetch()
			return
		}
		c.fillSupply(fetchCtx, tl, ca, meta)
	})
	p.Go(func() {
		transfers, trAnomalies, trErr = c.market.GetEarliestTransfers(fetchCtx, addr, c.activityCodes, c.opts.SampleSize)
	})
	p.Wait()

	c.recordAnomalies(tl, append(metaAnomalies, trAnomalies...))

	result := model.AnalysisResult{ContractAddress: addr}
	if metaErr != nil {
		kind := FailureKindOf(metaErr)
		tl.Warn("token metadata unavailable", zap.String("kind", string(kind)), zap.Error(metaErr))
		result.Error = &model.Failure{Kind: kind, Message: userMessage(kind)}
		result.Message = userMessage(kind)
		return result
	}
	result.TokenInfo = meta

	if trErr != nil {
		kind := FailureKindOf(trErr)
		tl.Warn("transfer history unavailable", zap.String("kind", string(kind)), zap.Error(trErr))
		result.Concentration = &model.Concentration{InsufficientData: true, Reason: kind}
		result.Error = &model.Failure{Kind: kind, Message: userMessage(kind)}
		result.Message = userMessage(kind)
		return result
	}

	report, err := analyzer.Analyze(transfers, meta.TotalSupply)
	if errors.Is(err, analyzer.ErrInsufficientData) {
		tl.Info("no early transfers, concentration not measured")
		result.Concentration = &model.Concentration{InsufficientData: true, Reason: model.FailureInsufficientData}
		result.Error = &model.Failure{Kind: model.FailureInsufficientData, Message: userMessage(model.FailureInsufficientData)}
		result.Message = userMessage(model.FailureInsufficientData)
		return result
	}

	assessment := cls.Classify(report.Percentage())
	monitor.RiskTiers.WithLabelValues(assessment.Tier.String()).Inc()
	tl.Info("token classified",
		zap.String("supply_percentage", report.SupplyPercentage.StringFixed(2)),
		zap.String("total_acquired", report.TotalAcquired.String()),
		zap.String("total_supply", meta.TotalSupply.String()),
		zap.Int("sample_size", report.SampleSize),
		zap.Int("repeat_recipients", len(report.RepeatRecipients)),
		zap.String("tier", assessment.Tier.String()),
	)

	result.Concentration = report.ToModel()
	result.Risk = assessment.ToModel()
	result.Signals = c.signals(report, meta)
	result.Message = summary(meta, report, assessment)
	return result
}

// fillSupply provider 未给出供应量时，从链上读取
func (c *Composer) fillSupply(ctx context.Context, tl *zap.Logger, ca extractor.ContractAddress, meta *model.TokenMetadata) {
	if c.supply == nil || meta.SupplyKnown() {
		return
	}
	mint, err := ca.PublicKey()
	if err != nil {
		monitor.SupplyFallbacks.WithLabelValues("invalid_address").Inc()
		return
	}
	supply, err := c.supply.TokenSupply(ctx, mint)
	if err != nil || !supply.IsPositive() {
		monitor.SupplyFallbacks.WithLabelValues("failed").Inc()
		tl.Info("on-chain supply lookup failed", zap.Error(err))
		return
	}
	monitor.SupplyFallbacks.WithLabelValues("ok").Inc()
	meta.TotalSupply = supply
}

func (c *Composer) signals(report *analyzer.Report, meta *model.TokenMetadata) *model.Signals {
	if !c.opts.InsiderCheck && !c.opts.HolderCheck && !c.opts.SocialsCheck {
		return nil
	}
	s := &model.Signals{}
	if c.opts.InsiderCheck {
		s.RepeatRecipients = report.RepeatRecipients
		s.InsiderSuspected = len(report.RepeatRecipients) >= c.opts.InsiderMinRepeats
	}
	if c.opts.HolderCheck && meta.HolderCount != nil {
		s.HolderCount = meta.HolderCount
		s.LowHolderCount = *meta.HolderCount < c.opts.MinHolders
	}
	if c.opts.SocialsCheck {
		s.MissingSocials = !meta.HasSocials()
	}
	return s
}

func (c *Composer) recordAnomalies(tl *zap.Logger, anomalies []model.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	for _, a := range anomalies {
		monitor.UpstreamAnomalies.WithLabelValues(a.Scope, a.Field).Inc()
	}
	tl.Info("malformed upstream records defaulted",
		zap.String("kind", string(model.FailureMalformedUpstreamRecord)),
		zap.Int("count", len(anomalies)),
		zap.Any("anomalies", anomalies),
	)
}

// FailureKindOf 把 provider 错误映射为对外的失败分类
func FailureKindOf(err error) model.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, solscan.ErrUnknownToken):
		return model.FailureUnknownToken
	case errors.Is(err, analyzer.ErrInsufficientData):
		return model.FailureInsufficientData
	default:
		return model.FailureProviderUnavailable
	}
}

// Outcome 结果分类，用于指标
func Outcome(r model.AnalysisResult) string {
	switch {
	case r.IsChat():
		return "chat"
	case r.Error == nil:
		return "analyzed"
	case r.Error.Kind == model.FailureInsufficientData:
		return "insufficient_data"
	default:
		return "degraded"
	}
}
