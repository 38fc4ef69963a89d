package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Ataix    Ataix    `mapstructure:"ataix"`
	Trading  Trading  `mapstructure:"trading"`
	Logger   Logger   `mapstructure:"logger"`
	Database Database `mapstructure:"database"`
}

// Ataix holds the configuration for the ATAIX API client.
type Ataix struct {
	ApiKey    string `mapstructure:"api_key"`
	ApiSecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	DryRun    bool   `mapstructure:"dry_run"`
	// SymbolFormat and OrderSizeField optionally pin the first candidate the
	// order-placement negotiation tries ("dash"/"slash"/"upper"/"lower" and
	// "quantity"/"amount"/"volume" respectively). Empty means default order.
	SymbolFormat   string     `mapstructure:"symbol_format"`
	OrderSizeField string     `mapstructure:"order_size_field"`
	TimeoutSeconds int        `mapstructure:"timeout_seconds"`
	RateLimit      float64    `mapstructure:"rate_limit"`
	RateLimitBurst int        `mapstructure:"rate_limit_burst"`
	Simulation     Simulation `mapstructure:"simulation"`
}

// Simulation parameterizes the synthetic responses returned in dry-run mode.
type Simulation struct {
	Balance string `mapstructure:"balance"`
	Bid     string `mapstructure:"bid"`
	Ask     string `mapstructure:"ask"`
}

// Trading holds the configuration for the order workflow. Monetary values
// are kept as strings and parsed into exact decimals by the consumer.
type Trading struct {
	Symbol        string   `mapstructure:"symbol"`
	QuoteCurrency string   `mapstructure:"quote_currency"`
	Amount        string   `mapstructure:"amount"`
	MaxPrice      string   `mapstructure:"max_price"`
	BuyDiscounts  []string `mapstructure:"buy_discounts"`
	MenuDiscounts []string `mapstructure:"menu_discounts"`
	SellMarkup    string   `mapstructure:"sell_markup"`
	OrderFile     string   `mapstructure:"order_file"`
}

// Database holds the configuration for the event journal.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger. Output redirects the log
// stream to a file; empty means stderr.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// Environment variables override the file, so credentials can stay out
	// of source: ATAIX_API_KEY maps to ataix.api_key and so on.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Keys that may arrive only through the environment must still be known
	// to viper, or AutomaticEnv never surfaces them into Unmarshal.
	viper.SetDefault("ataix.api_key", "")
	viper.SetDefault("ataix.api_secret", "")
	viper.SetDefault("ataix.symbol_format", "")
	viper.SetDefault("ataix.order_size_field", "")
	viper.SetDefault("ataix.dry_run", false)

	viper.SetDefault("ataix.base_url", "https://api.ataix.kz/api")
	viper.SetDefault("ataix.timeout_seconds", 20)
	viper.SetDefault("ataix.rate_limit", 10) // requests per second
	viper.SetDefault("ataix.rate_limit_burst", 5)
	viper.SetDefault("ataix.simulation.balance", "1000")
	viper.SetDefault("ataix.simulation.bid", "0.5")
	viper.SetDefault("ataix.simulation.ask", "0.51")

	viper.SetDefault("trading.symbol", "LTCUSDT")
	viper.SetDefault("trading.quote_currency", "USDT")
	viper.SetDefault("trading.max_price", "0.6")
	viper.SetDefault("trading.buy_discounts", []string{"0.02", "0.05", "0.08"})
	viper.SetDefault("trading.menu_discounts", []string{"0.02", "0.04", "0.06"})
	viper.SetDefault("trading.sell_markup", "0.02")
	viper.SetDefault("trading.order_file", "orders.json")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output", "")
	viper.SetDefault("database.dsn", "journal.db")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
