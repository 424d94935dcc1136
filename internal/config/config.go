// Package config loads and validates the deployment configuration. Files
// are YAML with UPPER_SNAKE keys matching the deployment environment;
// values support ${VAR} / ${VAR:-default} environment substitution, and
// provider credentials can be overridden directly through <NAME>_API_KEY /
// <NAME>_API_SECRET environment variables so secrets never have to live in
// the file itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"volharvest/internal/regime"
	"volharvest/internal/risk"
	"volharvest/internal/trigger"
)

// Provider holds the connection settings for one exchange provider.
type Provider struct {
	APIKey    string
	APISecret string
	WSURL     string
	RESTURL   string
}

// ValidateForUse checks that credentials are present. Called only when a
// provider is actually used, so backtests against public endpoints run
// without keys.
func (p *Provider) ValidateForUse() error {
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("provider: API key is required")
	}
	if strings.TrimSpace(p.APISecret) == "" {
		return fmt.Errorf("provider: API secret is required")
	}
	return nil
}

// Config is the validated deployment configuration. Numeric trading
// parameters are decimal so they flow into the core without a float
// round trip.
type Config struct {
	DataProvider  string
	TradeProvider string
	Symbols       []string

	InitialEquity     decimal.Decimal
	PriceDev          decimal.Decimal
	VolMult           decimal.Decimal
	LiquidationMinSum decimal.Decimal
	LLMConf           decimal.Decimal
	MaxGrossPctEquity decimal.Decimal
	MaxLeverage       decimal.Decimal
	StopLossPct       decimal.Decimal
	TrailingStopPct   decimal.Decimal
	CooldownHours     int
	SlippageBps       decimal.Decimal
	FeeBps            decimal.Decimal

	Providers map[string]Provider
}

// rawConfig mirrors the YAML document before type conversion.
type rawConfig struct {
	DataProvider      string   `yaml:"DATA_PROVIDER"`
	TradeProvider     string   `yaml:"TRADE_PROVIDER"`
	Symbols           []string `yaml:"SYMBOLS"`
	InitialEquity     float64  `yaml:"INITIAL_EQUITY"`
	PriceDev          float64  `yaml:"PRICE_DEV"`
	VolMult           float64  `yaml:"VOL_MULT"`
	LiquidationMinSum float64  `yaml:"LIQUIDATION_MIN_SUM"`
	LLMConf           float64  `yaml:"LLM_CONF"`
	MaxGrossPctEquity float64  `yaml:"MAX_GROSS_PCT_EQUITY"`
	MaxLeverage       float64  `yaml:"MAX_LEVERAGE"`
	StopLossPct       float64  `yaml:"STOP_LOSS_PCT"`
	TrailingStopPct   float64  `yaml:"TRAILING_STOP_PCT"`
	CooldownHours     int      `yaml:"COOLDOWN_HR"`
	SlippageBps       float64  `yaml:"SLIPPAGE_BPS"`
	FeeBps            float64  `yaml:"FEE_BPS"`

	Providers map[string]rawProvider `yaml:"PROVIDERS"`
}

type rawProvider struct {
	APIKey    string `yaml:"API_KEY"`
	APISecret string `yaml:"API_SECRET"`
	WSURL     string `yaml:"WS_URL"`
	RESTURL   string `yaml:"REST_URL"`
}

// Default returns the stock configuration used when no file is given:
// stub providers, 100k equity, 1% deviation threshold, 3x volume
// multiplier and the standard cost assumptions.
func Default() *Config {
	return &Config{
		DataProvider:      "stub",
		TradeProvider:     "stub",
		Symbols:           []string{"BTC-USD-PERP", "ETH-USD-PERP"},
		InitialEquity:     decimal.NewFromInt(100000),
		PriceDev:          decimal.NewFromFloat(0.01),
		VolMult:           decimal.NewFromInt(3),
		LiquidationMinSum: decimal.NewFromInt(100000),
		LLMConf:           decimal.NewFromFloat(0.65),
		MaxGrossPctEquity: decimal.NewFromFloat(0.25),
		MaxLeverage:       decimal.NewFromInt(3),
		StopLossPct:       decimal.NewFromFloat(0.01),
		TrailingStopPct:   decimal.NewFromFloat(0.009),
		CooldownHours:     6,
		SlippageBps:       decimal.NewFromInt(5),
		FeeBps:            decimal.NewFromInt(8),
		Providers: map[string]Provider{
			"stub": {},
		},
	}
}

// Load reads, substitutes and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes. Environment substitution runs
// before the YAML parse, so substituted values participate in type
// conversion like literal ones.
func Parse(data []byte) (*Config, error) {
	substituted := substituteEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(substituted), &raw); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg := &Config{
		DataProvider:      strings.ToLower(strings.TrimSpace(raw.DataProvider)),
		TradeProvider:     strings.ToLower(strings.TrimSpace(raw.TradeProvider)),
		Symbols:           raw.Symbols,
		InitialEquity:     decimal.NewFromFloat(raw.InitialEquity),
		PriceDev:          decimal.NewFromFloat(raw.PriceDev),
		VolMult:           decimal.NewFromFloat(raw.VolMult),
		LiquidationMinSum: decimal.NewFromFloat(raw.LiquidationMinSum),
		LLMConf:           decimal.NewFromFloat(raw.LLMConf),
		MaxGrossPctEquity: decimal.NewFromFloat(raw.MaxGrossPctEquity),
		MaxLeverage:       decimal.NewFromFloat(raw.MaxLeverage),
		StopLossPct:       decimal.NewFromFloat(raw.StopLossPct),
		TrailingStopPct:   decimal.NewFromFloat(raw.TrailingStopPct),
		CooldownHours:     raw.CooldownHours,
		SlippageBps:       decimal.NewFromFloat(raw.SlippageBps),
		FeeBps:            decimal.NewFromFloat(raw.FeeBps),
		Providers:         make(map[string]Provider, len(raw.Providers)),
	}

	for name, p := range raw.Providers {
		cfg.Providers[strings.ToLower(name)] = Provider{
			APIKey:    strings.TrimSpace(p.APIKey),
			APISecret: strings.TrimSpace(p.APISecret),
			WSURL:     p.WSURL,
			RESTURL:   p.RESTURL,
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envPattern matches ${VAR} and ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// substituteEnv expands ${VAR:-default} references against the process
// environment. Unset variables without a default expand to the empty string.
func substituteEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}
		return groups[2]
	})
}

// applyEnvOverrides replaces provider credentials from <NAME>_API_KEY and
// <NAME>_API_SECRET environment variables when set.
func applyEnvOverrides(cfg *Config) {
	for name, p := range cfg.Providers {
		prefix := strings.ToUpper(name)
		if v, ok := os.LookupEnv(prefix + "_API_KEY"); ok {
			p.APIKey = v
		}
		if v, ok := os.LookupEnv(prefix + "_API_SECRET"); ok {
			p.APISecret = v
		}
		cfg.Providers[name] = p
	}
}

// symbolPattern is the accepted instrument format, e.g. BTC-USD-PERP.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)

// Validate checks symbols, provider references and financial parameter
// ranges. Credential presence is not checked here; see
// Provider.ValidateForUse.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol must be specified")
	}
	for i, s := range c.Symbols {
		cleaned := strings.TrimSpace(s)
		if cleaned == "" {
			return fmt.Errorf("config: symbol at index %d is empty", i)
		}
		if !symbolPattern.MatchString(cleaned) {
			return fmt.Errorf("config: invalid symbol format %q", s)
		}
		c.Symbols[i] = cleaned
	}

	if c.DataProvider == "" {
		return fmt.Errorf("config: DATA_PROVIDER is required")
	}
	if c.TradeProvider == "" {
		return fmt.Errorf("config: TRADE_PROVIDER is required")
	}
	if _, ok := c.Providers[c.DataProvider]; !ok {
		return fmt.Errorf("config: data provider %q not found in PROVIDERS", c.DataProvider)
	}
	if _, ok := c.Providers[c.TradeProvider]; !ok {
		return fmt.Errorf("config: trade provider %q not found in PROVIDERS", c.TradeProvider)
	}

	if !c.InitialEquity.IsPositive() {
		return fmt.Errorf("config: INITIAL_EQUITY must be positive, got %s", c.InitialEquity)
	}
	if !c.PriceDev.IsPositive() {
		return fmt.Errorf("config: PRICE_DEV must be positive, got %s", c.PriceDev)
	}
	if !c.VolMult.IsPositive() {
		return fmt.Errorf("config: VOL_MULT must be positive, got %s", c.VolMult)
	}
	if c.LLMConf.IsNegative() || c.LLMConf.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: LLM_CONF must be in [0, 1], got %s", c.LLMConf)
	}
	if !c.MaxGrossPctEquity.IsPositive() || c.MaxGrossPctEquity.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: MAX_GROSS_PCT_EQUITY must be in (0, 1], got %s", c.MaxGrossPctEquity)
	}
	if !c.MaxLeverage.IsPositive() {
		return fmt.Errorf("config: MAX_LEVERAGE must be positive, got %s", c.MaxLeverage)
	}
	if !c.StopLossPct.IsPositive() || c.StopLossPct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: STOP_LOSS_PCT must be in (0, 1], got %s", c.StopLossPct)
	}
	if c.TrailingStopPct.IsNegative() || c.TrailingStopPct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: TRAILING_STOP_PCT must be in [0, 1], got %s", c.TrailingStopPct)
	}
	if c.CooldownHours < 0 {
		return fmt.Errorf("config: COOLDOWN_HR cannot be negative, got %d", c.CooldownHours)
	}
	if c.SlippageBps.IsNegative() {
		return fmt.Errorf("config: SLIPPAGE_BPS cannot be negative, got %s", c.SlippageBps)
	}
	if c.FeeBps.IsNegative() {
		return fmt.Errorf("config: FEE_BPS cannot be negative, got %s", c.FeeBps)
	}
	return nil
}

// Provider returns the named provider settings.
func (c *Config) Provider(name string) (Provider, bool) {
	p, ok := c.Providers[strings.ToLower(name)]
	return p, ok
}

// RiskParams maps the configuration onto risk manager parameters. Values
// without a config key keep the package defaults.
func (c *Config) RiskParams() risk.Params {
	params := risk.DefaultParams()
	params.BaseEquity = c.InitialEquity
	params.MaxEquityPerPosition = c.MaxGrossPctEquity
	params.MaxLeverage = c.MaxLeverage
	params.StopLossPct = c.StopLossPct
	params.TrailingStopPct = c.TrailingStopPct
	params.Cooldown = time.Duration(c.CooldownHours) * time.Hour
	return params
}

// TriggerConfig maps the configuration onto detector thresholds.
func (c *Config) TriggerConfig() trigger.Config {
	return trigger.Config{
		PriceDeviationThreshold: c.PriceDev,
		VolumeMultiplier:        c.VolMult,
		LiquidationMinSum:       c.LiquidationMinSum,
	}
}

// RegimeConfig maps the configuration onto the regime gate thresholds.
// The liquidation and volatility thresholds are classifier characteristics
// rather than deployment knobs, so only the veto confidence is exposed.
func (c *Config) RegimeConfig() regime.Config {
	cfg := regime.DefaultConfig()
	cfg.ConfidenceThreshold = c.LLMConf
	return cfg
}
