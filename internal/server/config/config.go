package config

import (
	"errors"
	"fmt"
	"strings"

	"token-risk/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	configName = "config.server"
	envPrefix  = "TOKEN_RISK"
)

// Config 定义整个配置的结构
type Config struct {
	Log                LogConfig      `mapstructure:"log"`
	Server             ServerConfig   `mapstructure:"server"`
	Monitor            MonitorConfig  `mapstructure:"monitor"`
	Solscan            SolscanConfig  `mapstructure:"solscan"`
	OpenAI             OpenAIConfig   `mapstructure:"openai"`
	Analysis           AnalysisConfig `mapstructure:"analysis"`
	Risk               RiskConfig     `mapstructure:"risk"`
	SolanaClientRawUrl string         `mapstructure:"solana_client_rawurl"`
}

// LogConfig Log 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// ServerConfig 入站 HTTP / WebSocket 配置，时间单位为秒
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	RequestTimeout int      `mapstructure:"request_timeout"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	HistorySize    int      `mapstructure:"history_size"` // websocket 会话保留的对话行数
}

type MonitorConfig struct {
	Enable         bool   `mapstructure:"enable"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
}

// SolscanConfig 行情数据 provider 配置
type SolscanConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	RateLimit  int    `mapstructure:"rate_limit"` // 每分钟
	Timeout    int    `mapstructure:"timeout"`    // 秒
	MaxRetries int    `mapstructure:"max_retries"`
}

// OpenAIConfig 聊天生成配置
type OpenAIConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Organization string  `mapstructure:"organization"`
	Model        string  `mapstructure:"model"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature"`
	TopP         float64 `mapstructure:"top_p"`
	Timeout      int     `mapstructure:"timeout"`
	Persona      string  `mapstructure:"persona"`
}

// AnalysisConfig 集中度分析策略参数
type AnalysisConfig struct {
	ActivityTypes     []string `mapstructure:"activity_types"`
	SampleSize        int      `mapstructure:"sample_size"`
	InsiderCheck      bool     `mapstructure:"insider_check"`
	InsiderMinRepeats int      `mapstructure:"insider_min_repeats"`
	HolderCheck       bool     `mapstructure:"holder_check"`
	MinHolders        int64    `mapstructure:"min_holders"`
	SocialsCheck      bool     `mapstructure:"socials_check"`
	SupplyFallback    bool     `mapstructure:"supply_fallback"`
}

type RiskConfig struct {
	Tiers []RiskBand `mapstructure:"tiers"`
}

// RiskBand 分级表中的一行，下界包含
type RiskBand struct {
	Lower     float64 `mapstructure:"lower"`
	Tier      string  `mapstructure:"tier"`
	Rationale string  `mapstructure:"rationale"`
}

const defaultPersona = `Your name is ShrokAI, a green ogre streamer obsessed with psychoactive mushrooms.
They grant you visions of the crypto market's future and summon the black dwarf.
You are a swamp prophet of memecoins, a mushroom-fueled shaman, and a die-hard Solana enthusiast.
Try to always answer briefly.`

var v *viper.Viper

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")

	v.SetDefault("server.addr", ":7979")
	v.SetDefault("server.request_timeout", 20)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.history_size", 20)

	v.SetDefault("monitor.enable", false)
	v.SetDefault("monitor.prometheus_addr", ":9090")

	v.SetDefault("solscan.base_url", "https://pro-api.solscan.io")
	v.SetDefault("solscan.api_key", "")
	v.SetDefault("solscan.rate_limit", 600)
	v.SetDefault("solscan.timeout", 10)
	v.SetDefault("solscan.max_retries", 1)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.organization", "")
	v.SetDefault("openai.model", "gpt-4")
	v.SetDefault("openai.max_tokens", 150)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.timeout", 20)
	v.SetDefault("openai.persona", defaultPersona)

	v.SetDefault("analysis.activity_types", []string{"transfer"})
	v.SetDefault("analysis.sample_size", 20)
	v.SetDefault("analysis.insider_check", true)
	v.SetDefault("analysis.insider_min_repeats", 1)
	v.SetDefault("analysis.holder_check", false)
	v.SetDefault("analysis.min_holders", 100)
	v.SetDefault("analysis.socials_check", false)
	v.SetDefault("analysis.supply_fallback", false)

	v.SetDefault("risk.tiers", []map[string]interface{}{
		{"lower": 0, "tier": "Low", "rationale": "Early buyers hold a small share of supply. Strong pump potential if marketing follows."},
		{"lower": 10, "tier": "Guarded", "rationale": "Decent distribution, but a quick rug is possible without a content strategy."},
		{"lower": 20, "tier": "Elevated", "rationale": "High risk. Only credible with an experienced team behind it."},
		{"lower": 40, "tier": "High", "rationale": "Very high risk. Treat it as exit-on-pump only."},
		{"lower": 60, "tier": "Severe", "rationale": "Insider-dominated supply. High probability of a dump."},
	})

	v.SetDefault("solana_client_rawurl", "https://api.mainnet-beta.solana.com")
}

func newViper(paths ...string) *viper.Viper {
	nv := viper.New()
	nv.SetConfigName(configName)
	nv.SetConfigType("yaml")
	for _, p := range paths {
		nv.AddConfigPath(p)
	}
	nv.SetEnvPrefix(envPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()
	setDefaults(nv)
	return nv
}

// LoadConfig 从给定目录读取 config.server.yaml；文件不存在时只使用默认值和环境变量
func LoadConfig(paths ...string) (Config, error) {
	nv := newViper(paths...)
	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := decode(nv)
	if err != nil {
		return Config{}, err
	}
	v = nv
	return cfg, nil
}

func decode(nv *viper.Viper) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(nv.AllSettings()); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func InitConfig() Config {
	cfg, err := LoadConfig("./config/")
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
	return cfg
}

// Validate 只检查结构性约束，provider 相关的取值由各组件构造时校验
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	if c.Solscan.BaseURL == "" {
		errs = append(errs, errors.New("solscan.base_url is required"))
	}
	if c.Solscan.Timeout <= 0 {
		errs = append(errs, errors.New("solscan.timeout must be positive"))
	}
	if c.Analysis.SampleSize < 1 || c.Analysis.SampleSize > 100 {
		errs = append(errs, fmt.Errorf("analysis.sample_size must be in [1, 100], got %d", c.Analysis.SampleSize))
	}
	if len(c.Analysis.ActivityTypes) == 0 {
		errs = append(errs, errors.New("analysis.activity_types must not be empty"))
	}
	if len(c.Risk.Tiers) == 0 {
		errs = append(errs, errors.New("risk.tiers must not be empty"))
	}
	return errors.Join(errs...)
}

// WatchConfig 配置文件变化时重新加载；新配置不合法则记录错误并保留旧配置
func WatchConfig(tl *zap.Logger, onChange func(Config)) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	watched := v
	watched.OnConfigChange(func(e fsnotify.Event) {
		reload(watched, tl, e.Name, onChange)
	})
	watched.WatchConfig()
}

func reload(nv *viper.Viper, tl *zap.Logger, file string, onChange func(Config)) {
	cfg, err := decode(nv)
	if err != nil {
		tl.Error("config reload rejected, keeping previous config", zap.String("file", file), zap.Error(err))
		return
	}
	tl.Info("config reloaded", zap.String("file", file))
	logger.SetLogLevel(cfg.Log.Level)
	if onChange != nil {
		onChange(cfg)
	}
}
