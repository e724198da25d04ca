package model

// FailureKind 失败分类
type FailureKind string

const (
	FailureProviderUnavailable     FailureKind = "provider_unavailable"
	FailureUnknownToken            FailureKind = "unknown_token"
	FailureInsufficientData        FailureKind = "insufficient_data"
	FailureMalformedUpstreamRecord FailureKind = "malformed_upstream_record"
)

// Failure 对用户可见的失败描述，不包含内部细节
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Concentration 集中度结果，要么是指标，要么是数据不足标记
type Concentration struct {
	SupplyPercentage   *float64          `json:"supply_percentage,omitempty"`
	TotalAcquired      string            `json:"total_acquired,omitempty"`
	SampleSize         int               `json:"sample_size,omitempty"`
	PerRecipientTotals map[string]string `json:"per_recipient_totals,omitempty"`
	RepeatRecipients   []string          `json:"repeat_recipients,omitempty"`

	InsufficientData bool        `json:"insufficient_data,omitempty"`
	Reason           FailureKind `json:"reason,omitempty"`
}

type Risk struct {
	Tier      string `json:"tier"`
	Rationale string `json:"rationale"`
}

// Signals 可选的辅助信号，不影响风险等级
type Signals struct {
	InsiderSuspected bool     `json:"insider_suspected"`
	RepeatRecipients []string `json:"repeat_recipients,omitempty"`
	LowHolderCount   bool     `json:"low_holder_count"`
	MissingSocials   bool     `json:"missing_socials"`
	HolderCount      *int64   `json:"holder_count,omitempty"`
}

// AnalysisResult /analyze 的返回体。合约分析结果与聊天结果共用一个结构，
// 聊天时只有 Response 有值
type AnalysisResult struct {
	ContractAddress string         `json:"contract_address,omitempty"`
	TokenInfo       *TokenMetadata `json:"token_info,omitempty"`
	Concentration   *Concentration `json:"concentration,omitempty"`
	Risk            *Risk          `json:"risk,omitempty"`
	Signals         *Signals       `json:"signals,omitempty"`
	Error           *Failure       `json:"error,omitempty"`
	Message         string         `json:"message,omitempty"`

	Response string `json:"response,omitempty"`
}

// IsChat 是否为聊天透传结果
func (r *AnalysisResult) IsChat() bool {
	return r.ContractAddress == ""
}
