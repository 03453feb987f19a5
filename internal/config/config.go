package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Network  NetworkConfig  `yaml:"network"`
	Chain    ChainConfig    `yaml:"chain"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Stores   StoresConfig   `yaml:"stores"`
	Security SecurityConfig `yaml:"security"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// NetworkConfig pins the well-known addresses of the indexed deployment.
// Defaults target the Bancor V3 mainnet contracts.
type NetworkConfig struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`

	ProtocolAddress string `yaml:"protocol_address"` // network contract, protocol singleton id
	ReferenceToken  string `yaml:"reference_token"`  // stablecoin all values are quoted in
	NativeToken     string `yaml:"native_token"`     // chain native asset placeholder address
	GovToken        string `yaml:"gov_token"`        // governance (BNT-style) token
	GovPoolToken    string `yaml:"gov_pool_token"`   // governance pool token
}

// ChainConfig configures the JSON-RPC adapter behind the valuation and
// token-metadata lookups.
type ChainConfig struct {
	RPCURL          string        `yaml:"rpc_url"`
	NetworkInfoAddr string        `yaml:"network_info_addr"` // rate oracle contract
	CallTimeout     time.Duration `yaml:"call_timeout"`
}

type IngestConfig struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
	Durable string `yaml:"durable"`

	FetchBatch   int           `yaml:"fetch_batch"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type DedupeConfig struct {
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

type ClickHouseConfig struct {
	Enabled bool                   `yaml:"enabled"`
	DSN     string                 `yaml:"dsn"`
	Writer  ClickHouseWriterConfig `yaml:"writer"`
}

type StoresConfig struct {
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type JWTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	PublicKeyPath  string        `yaml:"public_key_path"`
	PrivateKeyPath string        `yaml:"private_key_path"` // dev/test signing only
	Audience       string        `yaml:"audience"`
	Issuer         string        `yaml:"issuer"`
	Leeway         time.Duration `yaml:"leeway"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
}

type APIConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type PyroscopeConfig struct {
	Enabled    bool              `yaml:"enabled"`
	AppName    string            `yaml:"app_name"`
	ServerAddr string            `yaml:"server_addr"`
	AuthToken  string            `yaml:"auth_token"`
	Tags       map[string]string `yaml:"tags"`
}

type MetricsConfig struct {
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Bancor V3 mainnet addresses; any of them can be overridden per deployment.
const (
	defaultProtocolAddr    = "0xeef194b4123a98c7a63d8000b32021cdf1c26fd2"
	defaultNetworkInfoAddr = "0x8e303d296851b320e6a697bacb979d13c9d6e760"
	defaultReferenceToken  = "0x6b175474e89094c44da98b954eedeac495271d0f" // DAI
	defaultNativeToken     = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee" // ETH placeholder
	defaultGovToken        = "0x1f573d6fb3f13d689ff844b4ce37794d79a7ff1c" // BNT
	defaultGovPoolToken    = "0xab05cf7c6c3a288cd36326e4f7b8600e7268e344" // bnBNT
)

func (c *Config) applyDefaults() {
	if c.Network.Name == "" {
		c.Network.Name = "Bancor V3"
	}
	if c.Network.Slug == "" {
		c.Network.Slug = "bancor-v3"
	}
	if c.Network.ProtocolAddress == "" {
		c.Network.ProtocolAddress = defaultProtocolAddr
	}
	if c.Network.ReferenceToken == "" {
		c.Network.ReferenceToken = defaultReferenceToken
	}
	if c.Network.NativeToken == "" {
		c.Network.NativeToken = defaultNativeToken
	}
	if c.Network.GovToken == "" {
		c.Network.GovToken = defaultGovToken
	}
	if c.Network.GovPoolToken == "" {
		c.Network.GovPoolToken = defaultGovPoolToken
	}
	if c.Chain.NetworkInfoAddr == "" {
		c.Chain.NetworkInfoAddr = defaultNetworkInfoAddr
	}
	if c.Chain.CallTimeout <= 0 {
		c.Chain.CallTimeout = 10 * time.Second
	}
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	if c.Ingest.FetchBatch <= 0 {
		c.Ingest.FetchBatch = 64
	}
	if c.Ingest.FetchTimeout <= 0 {
		c.Ingest.FetchTimeout = 5 * time.Second
	}
}
