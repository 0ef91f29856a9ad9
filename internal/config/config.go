package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const envPrefix = "DUET"

type LogConfig struct {
	Level  string `mapstructure:"log_level"`
	Format string `mapstructure:"log_format"`
}

// Config is the relay server configuration.
type Config struct {
	Mode               string        `mapstructure:"mode"`
	Port               int           `mapstructure:"port"`
	ReadLimit          int64         `mapstructure:"read_limit"`
	PingPeriod         time.Duration `mapstructure:"ping_period"`
	PongWait           time.Duration `mapstructure:"pong_wait"`
	WriteWait          time.Duration `mapstructure:"write_wait"`
	SendBuffer         int           `mapstructure:"send_buffer"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`
	JoinRateLimit      int           `mapstructure:"join_rate_limit"`
	JoinRateInterval   time.Duration `mapstructure:"join_rate_interval"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	BackpressurePolicy string        `mapstructure:"backpressure_policy"`
	Log                LogConfig     `mapstructure:",squash"`
}

// ClientConfig is the terminal client configuration.
type ClientConfig struct {
	ServerURL        string        `mapstructure:"server_url"`
	ICEServers       []string      `mapstructure:"ice_servers"`
	InitiatorDelay   time.Duration `mapstructure:"initiator_delay"`
	ChatTransport    string        `mapstructure:"chat_transport"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	Log              LogConfig     `mapstructure:",squash"`
}

// DefaultICEServers are public STUN servers. No TURN.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
	"stun:stun.stunprotocol.org:3478",
	"stun:stun.voiparound.com",
	"stun:stun.voipbuster.com",
	"stun:stun.voipstunt.com",
	"stun:stun.voxgratia.org",
}

func Load() (*Config, error) {
	v := newViper("config")
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3001)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("join_rate_limit", 5)
	v.SetDefault("join_rate_interval", "10s")
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("backpressure_policy", "kick")
	setLogDefaults(v)
	readFile(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PingPeriod >= cfg.PongWait {
		return nil, fmt.Errorf("ping_period (%s) must be shorter than pong_wait (%s)", cfg.PingPeriod, cfg.PongWait)
	}
	if cfg.SendBuffer <= 0 {
		return nil, fmt.Errorf("send_buffer must be positive, got %d", cfg.SendBuffer)
	}
	switch cfg.BackpressurePolicy {
	case "kick", "drop":
	default:
		return nil, fmt.Errorf("unknown backpressure_policy %q", cfg.BackpressurePolicy)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("server config loaded")
	return &cfg, nil
}

func LoadClient() (*ClientConfig, error) {
	v := newViper("client")
	v.SetDefault("server_url", "ws://localhost:3001/ws")
	v.SetDefault("ice_servers", DefaultICEServers)
	v.SetDefault("initiator_delay", "1s")
	v.SetDefault("chat_transport", "relay")
	v.SetDefault("handshake_timeout", "10s")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	setLogDefaults(v)
	readFile(v)

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	switch cfg.ChatTransport {
	case "relay", "datachannel":
	default:
		return nil, fmt.Errorf("unknown chat_transport %q", cfg.ChatTransport)
	}
	return &cfg, nil
}

// newViper reads .env first (existing environment wins), then binds DUET_* variables.
func newViper(name string) *viper.Viper {
	_ = godotenv.Load()

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fmt.Sprintf("config/%s.%s.yaml", name, env))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setLogDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

func readFile(v *viper.Viper) {
	if err := v.ReadInConfig(); err != nil {
		log.Debug().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("config file not found, using defaults")
		return
	}
	log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config file")
}
