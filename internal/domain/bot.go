package domain

// StrategyKind is the closed set of supported strategies.
type StrategyKind string

const (
	StrategyMLEnhanced    StrategyKind = "ml_enhanced"
	StrategyEnsemble      StrategyKind = "ensemble"
	StrategyNeuralNetwork StrategyKind = "neural_network"
	StrategySimpleMA      StrategyKind = "simple_ma"
	StrategyRSI           StrategyKind = "rsi"
	StrategyMomentum      StrategyKind = "momentum"
	StrategySmartAdaptive StrategyKind = "smart_adaptive"
)

// BotStatus is the lifecycle state of a bot.
type BotStatus string

const (
	BotActive  BotStatus = "active"
	BotStopped BotStatus = "stopped"
)

// BotConfig carries per-bot trading settings.
type BotConfig struct {
	Timeframe            string       `yaml:"timeframe" default:"1h" validate:"required"`
	CandleLimit          int          `yaml:"candle_limit" default:"100" validate:"gte=50,lte=1500"`
	ConfidenceThreshold  float64      `yaml:"confidence_threshold" validate:"gte=0,lte=1"` // 0 uses the strategy default
	FixedQuantity        float64      `yaml:"fixed_quantity" validate:"gte=0"`             // 0 uses the sizing method
	SizingMethod         SizingMethod `yaml:"sizing_method" default:"fixed_fractional" validate:"oneof=fixed_fractional kelly volatility"`
	SkipProtectiveOrders bool         `yaml:"skip_protective_orders"`
}

// BotContext describes a trading bot.
type BotContext struct {
	ID       string       `yaml:"id" validate:"required"`
	UserID   string       `yaml:"user_id" validate:"required"`
	Name     string       `yaml:"name"`
	Symbol   string       `yaml:"symbol" validate:"required"`
	Strategy StrategyKind `yaml:"strategy" default:"smart_adaptive" validate:"oneof=ml_enhanced ensemble neural_network simple_ma rsi momentum smart_adaptive"`
	Mode     Mode         `yaml:"mode" default:"paper" validate:"oneof=paper real"`
	Status   BotStatus    `yaml:"status" default:"stopped" validate:"oneof=active stopped"`
	Config   BotConfig    `yaml:"config"`
}

// IsActive reports whether the bot should run cycles.
func (b *BotContext) IsActive() bool {
	return b != nil && b.Status == BotActive
}
