package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"
)

// Duration accepts Go syntax ("90s", "1h") or ISO 8601 ("PT1H").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		iso, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return 0, errors.Wrapf(err, "invalid ISO 8601 duration %q", s)
		}
		return iso.ToTimeDuration(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", s)
	}
	return d, nil
}

type Config struct {
	Sensor     Sensor     `yaml:"sensor"`
	Monitor    Monitor    `yaml:"monitor"`
	Regression Model      `yaml:"regression"`
	Sequence   Model      `yaml:"sequence"`
	Generation Generation `yaml:"generation"`
	Sinks      Sinks      `yaml:"sinks"`
	HTTP       HTTP       `yaml:"http"`
	Log        Log        `yaml:"log"`
}

type Sensor struct {
	// serial, tcp, ble or mqtt
	Transport   string   `yaml:"transport"`
	Address     string   `yaml:"address"`
	BaudRate    int      `yaml:"baud_rate"`
	ReadTimeout Duration `yaml:"read_timeout"`
	// Fields is the expected values per frame, 0 accepts any.
	Fields int `yaml:"fields"`

	// tcp only
	DialTimeout Duration `yaml:"dial_timeout"`

	// mqtt only
	Topic string `yaml:"topic"`

	// ble only
	ScanDuration Duration `yaml:"scan_duration"`
	Retries      int      `yaml:"retries"`
}

type Monitor struct {
	WindowSize int      `yaml:"window_size"`
	Interval   Duration `yaml:"interval"`
	// IdleInterval is the wait after a tick that read nothing; 0 means Interval.
	IdleInterval Duration `yaml:"idle_interval"`
	ErrorPause   Duration `yaml:"error_pause"`
	BackoffMin   Duration `yaml:"backoff_min"`
	BackoffMax   Duration `yaml:"backoff_max"`
}

type Model struct {
	// regression: tfserving or affine; sequence: tfserving or linear
	Kind    string   `yaml:"kind"`
	URL     string   `yaml:"url"`
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Path    string   `yaml:"path"`
	Timeout Duration `yaml:"timeout"`
}

type Generation struct {
	// openai or gemini
	Provider string   `yaml:"provider"`
	Model    string   `yaml:"model"`
	BaseURL  string   `yaml:"base_url"`
	APIKey   string   `yaml:"api_key"`
	Timeout  Duration `yaml:"timeout"`
	// brief or detailed
	Template string `yaml:"template"`
	// Site is the farm context for the detailed template.
	Site string `yaml:"site"`
}

type Sinks struct {
	MQTT  *MQTTSink  `yaml:"mqtt"`
	Kafka *KafkaSink `yaml:"kafka"`
}

type MQTTSink struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

type KafkaSink struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Key     string   `yaml:"key"`
}

type HTTP struct {
	ListenAddress string `yaml:"listen_address"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func Default() Config {
	return Config{
		Sensor: Sensor{
			Transport:    "serial",
			Address:      "/dev/ttyUSB0",
			BaudRate:     115200,
			ReadTimeout:  Duration(time.Second),
			DialTimeout:  Duration(10 * time.Second),
			Topic:        "aquamon/sensor",
			ScanDuration: Duration(5 * time.Second),
			Retries:      5,
		},
		Monitor: Monitor{
			WindowSize: 24,
			Interval:   Duration(time.Hour),
			ErrorPause: Duration(5 * time.Second),
			BackoffMin: Duration(5 * time.Second),
			BackoffMax: Duration(5 * time.Minute),
		},
		Regression: Model{
			Kind:    "tfserving",
			URL:     "http://localhost:8501",
			Name:    "fet_converter",
			Timeout: Duration(10 * time.Second),
		},
		Sequence: Model{
			Kind:    "tfserving",
			URL:     "http://localhost:8501",
			Name:    "cnn_predictor",
			Timeout: Duration(10 * time.Second),
		},
		Generation: Generation{
			Provider: "openai",
			Timeout:  Duration(2 * time.Minute),
			Template: "brief",
		},
		HTTP: HTTP{ListenAddress: ":8080"},
		Log:  Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
// API keys missing from the file are taken from the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "failed to read config")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}

	if cfg.Generation.APIKey == "" {
		switch cfg.Generation.Provider {
		case "openai":
			cfg.Generation.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			cfg.Generation.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Sensor.Transport {
	case "serial", "tcp", "ble", "mqtt":
	default:
		return errors.Errorf("unknown sensor transport %q", c.Sensor.Transport)
	}
	if c.Sensor.Address == "" {
		return errors.New("sensor address is required")
	}
	if c.Sensor.Transport == "serial" && c.Sensor.BaudRate <= 0 {
		return errors.Errorf("invalid baud rate %d", c.Sensor.BaudRate)
	}
	if c.Sensor.ReadTimeout <= 0 {
		return errors.New("sensor read timeout must be positive")
	}
	if c.Sensor.Transport == "tcp" && c.Sensor.DialTimeout <= 0 {
		return errors.New("sensor dial timeout must be positive")
	}
	if c.Sensor.Fields < 0 {
		return errors.Errorf("invalid field count %d", c.Sensor.Fields)
	}
	if c.Monitor.WindowSize <= 0 {
		return errors.Errorf("window size must be positive, got %d", c.Monitor.WindowSize)
	}
	if c.Monitor.Interval <= 0 {
		return errors.New("sampling interval must be positive")
	}
	if c.Monitor.BackoffMin <= 0 || c.Monitor.BackoffMax < c.Monitor.BackoffMin {
		return errors.New("backoff bounds must satisfy 0 < min <= max")
	}

	switch c.Regression.Kind {
	case "tfserving":
		if c.Regression.URL == "" || c.Regression.Name == "" {
			return errors.New("regression model needs url and name")
		}
	case "affine":
		if c.Regression.Path == "" {
			return errors.New("affine regression needs a calibration path")
		}
	default:
		return errors.Errorf("unknown regression model kind %q", c.Regression.Kind)
	}
	switch c.Sequence.Kind {
	case "tfserving":
		if c.Sequence.URL == "" || c.Sequence.Name == "" {
			return errors.New("sequence model needs url and name")
		}
	case "linear":
	default:
		return errors.Errorf("unknown sequence model kind %q", c.Sequence.Kind)
	}

	switch c.Generation.Provider {
	case "openai", "gemini":
	default:
		return errors.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	switch c.Generation.Template {
	case "brief", "detailed":
	default:
		return errors.Errorf("unknown report template %q", c.Generation.Template)
	}

	if m := c.Sinks.MQTT; m != nil && (m.Broker == "" || m.Topic == "") {
		return errors.New("mqtt sink needs broker and topic")
	}
	if k := c.Sinks.Kafka; k != nil && (len(k.Brokers) == 0 || k.Topic == "") {
		return errors.New("kafka sink needs brokers and topic")
	}
	return nil
}
