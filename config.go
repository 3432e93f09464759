package secagg

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/absmach/secagg/pkg/crypto"
	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/protect"
	"github.com/absmach/secagg/pkg/sss"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
)

// EnvPrefix prefixes every environment override, e.g. SECAGG_PROTOCOL_EPSILON.
const EnvPrefix = "SECAGG_"

type Config struct {
	Protocol ProtocolConfig `toml:"protocol" envPrefix:"PROTOCOL_"`
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Client   ClientConfig   `toml:"client" envPrefix:"CLIENT_"`
}

// ProtocolConfig must be identical on the server and on every client.
type ProtocolConfig struct {
	LearningRate float64 `toml:"learning_rate" env:"LEARNING_RATE"`
	BatchSize    int     `toml:"batch_size" env:"BATCH_SIZE"`
	// NoiseLevel is the L2 clipping bound applied before noising. Zero disables clipping.
	NoiseLevel      float64 `toml:"noise_level" env:"NOISE_LEVEL"`
	Rounds          int     `toml:"rounds" env:"ROUNDS"`
	Sensitivity     float64 `toml:"sensitivity" env:"SENSITIVITY"`
	Epsilon         float64 `toml:"epsilon" env:"EPSILON"`
	NumShares       int     `toml:"num_shares" env:"NUM_SHARES"`
	Threshold       int     `toml:"threshold" env:"THRESHOLD"`
	AggregationGoal int     `toml:"aggregation_goal" env:"AGGREGATION_GOAL"`
	SharedKey       string  `toml:"shared_key" env:"SHARED_KEY"`
	Scheme          string  `toml:"scheme" env:"SCHEME"`
	Cipher          string  `toml:"cipher" env:"CIPHER"`
	ModelDim        int     `toml:"model_dim" env:"MODEL_DIM"`
}

type ServerConfig struct {
	Host           string        `toml:"host" env:"HOST"`
	Port           string        `toml:"port" env:"PORT"`
	ModelHistory   int           `toml:"model_history" env:"MODEL_HISTORY"`
	LogLevel       string        `toml:"log_level" env:"LOG_LEVEL"`
	MQTTURL        string        `toml:"mqtt_url" env:"MQTT_URL"`
	MQTTTopic      string        `toml:"mqtt_topic" env:"MQTT_TOPIC"`
	MQTTClientID   string        `toml:"mqtt_client_id" env:"MQTT_CLIENT_ID"`
	MQTTUsername   string        `toml:"mqtt_username" env:"MQTT_USERNAME"`
	MQTTPassword   string        `toml:"mqtt_password" env:"MQTT_PASSWORD"`
	MQTTTimeout    time.Duration `toml:"mqtt_timeout" env:"MQTT_TIMEOUT"`
	MQTTCACert     string        `toml:"mqtt_ca_cert" env:"MQTT_CA_CERT"`
	MQTTClientCert string        `toml:"mqtt_client_cert" env:"MQTT_CLIENT_CERT"`
	MQTTClientKey  string        `toml:"mqtt_client_key" env:"MQTT_CLIENT_KEY"`
	// JaegerURL is the OTLP/HTTP traces endpoint. Empty disables tracing.
	JaegerURL  string  `toml:"jaeger_url" env:"JAEGER_URL"`
	TraceRatio float64 `toml:"trace_ratio" env:"TRACE_RATIO"`
}

type ClientConfig struct {
	ServerURL     string        `toml:"server_url" env:"SERVER_URL"`
	ClientID      string        `toml:"client_id" env:"CLIENT_ID"`
	Timeout       time.Duration `toml:"timeout" env:"TIMEOUT"`
	Samples       int           `toml:"samples" env:"SAMPLES"`
	Seed          uint64        `toml:"seed" env:"SEED"`
	RetryInterval time.Duration `toml:"retry_interval" env:"RETRY_INTERVAL"`
	LogLevel      string        `toml:"log_level" env:"LOG_LEVEL"`
	CBOR          bool          `toml:"cbor" env:"CBOR"`
	JaegerURL     string        `toml:"jaeger_url" env:"JAEGER_URL"`
	TraceRatio    float64       `toml:"trace_ratio" env:"TRACE_RATIO"`
}

func DefaultConfig() Config {
	return Config{
		Protocol: ProtocolConfig{
			LearningRate:    0.01,
			BatchSize:       32,
			NoiseLevel:      0,
			Rounds:          5,
			Sensitivity:     1.0,
			Epsilon:         1.0,
			NumShares:       5,
			Threshold:       3,
			AggregationGoal: 2,
			Scheme:          sss.KindField.String(),
			Cipher:          crypto.AlgAESGCM,
			ModelDim:        10,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8080",
			ModelHistory: 10,
			LogLevel:     "info",
			MQTTTopic:    "secagg/models",
			MQTTClientID: "secagg-manager",
			MQTTTimeout:  30 * time.Second,
			TraceRatio:   1.0,
		},
		Client: ClientConfig{
			ServerURL:     "http://localhost:8080",
			Timeout:       30 * time.Second,
			Samples:       256,
			RetryInterval: 5 * time.Second,
			LogLevel:      "info",
			TraceRatio:    1.0,
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("error reading config file: %w", err))
		}

		tree, err := toml.Load(string(data))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("error parsing config file: %w", err))
		}

		if err := tree.Unmarshal(&cfg); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("error unmarshaling config: %w", err))
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("error parsing environment: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes c to path as TOML.
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the protocol parameters. Every failure is a configuration error.
func (c Config) Validate() error {
	p := c.Protocol

	var problems []string
	if !(p.Epsilon > 0) {
		problems = append(problems, fmt.Sprintf("epsilon must be positive, got %v", p.Epsilon))
	}
	if !(p.Sensitivity > 0) {
		problems = append(problems, fmt.Sprintf("sensitivity must be positive, got %v", p.Sensitivity))
	}
	if p.NoiseLevel < 0 {
		problems = append(problems, fmt.Sprintf("noise_level must not be negative, got %v", p.NoiseLevel))
	}
	if !(p.LearningRate > 0) {
		problems = append(problems, fmt.Sprintf("learning_rate must be positive, got %v", p.LearningRate))
	}
	if p.BatchSize < 1 {
		problems = append(problems, fmt.Sprintf("batch_size must be positive, got %d", p.BatchSize))
	}
	if p.Rounds < 1 {
		problems = append(problems, fmt.Sprintf("rounds must be positive, got %d", p.Rounds))
	}
	if err := sss.ValidateParams(p.NumShares, p.Threshold); err != nil {
		problems = append(problems, fmt.Sprintf("num_shares=%d threshold=%d: %s", p.NumShares, p.Threshold, err))
	}
	if p.AggregationGoal < 1 {
		problems = append(problems, fmt.Sprintf("aggregation_goal must be positive, got %d", p.AggregationGoal))
	}
	if p.ModelDim < 1 {
		problems = append(problems, fmt.Sprintf("model_dim must be positive, got %d", p.ModelDim))
	}
	if _, err := sss.ParseKind(p.Scheme); err != nil {
		problems = append(problems, fmt.Sprintf("scheme: %s", err))
	}
	switch strings.ToLower(p.Cipher) {
	case "", crypto.AlgAESGCM, crypto.AlgXChaCha20Poly1305:
	default:
		problems = append(problems, fmt.Sprintf("unknown cipher %q", p.Cipher))
	}
	if r := c.Server.TraceRatio; r < 0 || r > 1 {
		problems = append(problems, fmt.Sprintf("server.trace_ratio must be within [0, 1], got %v", r))
	}
	if r := c.Client.TraceRatio; r < 0 || r > 1 {
		problems = append(problems, fmt.Sprintf("client.trace_ratio must be within [0, 1], got %v", r))
	}
	if _, err := crypto.ParseKey(p.SharedKey); err != nil {
		problems = append(problems, "shared_key must be 64 hex characters")
	}

	if len(problems) > 0 {
		return pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("%s", strings.Join(problems, "; ")))
	}

	return nil
}

// ProtectParams returns the protection parameters derived from the protocol
// section. Validate must have succeeded.
func (c Config) ProtectParams() (protect.Params, error) {
	kind, err := sss.ParseKind(c.Protocol.Scheme)
	if err != nil {
		return protect.Params{}, pkgerrors.Wrap(pkgerrors.ErrConfiguration, err)
	}

	return protect.Params{
		NumShares:   c.Protocol.NumShares,
		Threshold:   c.Protocol.Threshold,
		Scheme:      kind,
		Sensitivity: c.Protocol.Sensitivity,
		Epsilon:     c.Protocol.Epsilon,
		ClipNorm:    c.Protocol.NoiseLevel,
	}, nil
}

// ShareCipher builds the share cipher from the shared key.
func (c Config) ShareCipher() (*crypto.ShareCipher, error) {
	key, err := crypto.ParseKey(c.Protocol.SharedKey)
	if err != nil {
		return nil, err
	}

	return crypto.NewShareCipher(key, c.Protocol.Cipher)
}
