package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CollisionPolicy controls what happens when a character unlock hits an
// identifier that is already in the collection.
type CollisionPolicy string

const (
	// CollisionSkip leaves the existing record untouched.
	CollisionSkip CollisionPolicy = "skip"
	// CollisionRefresh updates the existing record's unlock timestamp.
	CollisionRefresh CollisionPolicy = "refresh"
)

type Config struct {
	Addr string `yaml:"addr" env:"TODOQUEST_ADDR"`

	Game    Game    `yaml:"game" envPrefix:"TODOQUEST_"`
	Storage Storage `yaml:"storage" envPrefix:"TODOQUEST_STORAGE_"`
	Suggest Suggest `yaml:"suggest" envPrefix:"TODOQUEST_SUGGEST_"`
	Auth    Auth    `yaml:"auth" envPrefix:"TODOQUEST_AUTH_"`
}

// Game holds the gameplay balance knobs. These replace the module-level
// constants the UI prototype carried around.
type Game struct {
	MaxHP           int             `yaml:"max_hp" env:"MAX_HP"`
	CharacterPool   int             `yaml:"character_pool" env:"CHARACTER_POOL"`
	CycleLength     int             `yaml:"cycle_length" env:"CYCLE_LENGTH"`
	XPPerLevel      int             `yaml:"xp_per_level" env:"XP_PER_LEVEL"`
	DefaultPoint    int             `yaml:"default_point" env:"DEFAULT_POINT"`
	NotifyDuration  time.Duration   `yaml:"notify_duration" env:"NOTIFY_DURATION"`
	MonitorInterval time.Duration   `yaml:"monitor_interval" env:"MONITOR_INTERVAL"`
	RejectPastDue   bool            `yaml:"reject_past_due" env:"REJECT_PAST_DUE"`
	Collision       CollisionPolicy `yaml:"collision_policy" env:"COLLISION_POLICY"`
}

type Storage struct {
	// Backend: "file", "sqlite" or "memory".
	Backend string `yaml:"backend" env:"BACKEND"`
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
}

type Suggest struct {
	Endpoint string        `yaml:"endpoint" env:"ENDPOINT"`
	APIKey   string        `yaml:"api_key" env:"API_KEY"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type Auth struct {
	// Secret is the shared login credential. Leaving it empty disables
	// the API entirely, which beats an accidentally open server.
	Secret     string        `yaml:"secret" env:"SECRET"`
	Subject    string        `yaml:"subject" env:"SUBJECT"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
}

func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":8484"
	}
	if c.Game.MaxHP <= 0 {
		c.Game.MaxHP = 5
	}
	if c.Game.CharacterPool <= 0 {
		c.Game.CharacterPool = 15
	}
	if c.Game.CycleLength <= 0 {
		c.Game.CycleLength = 5
	}
	if c.Game.XPPerLevel <= 0 {
		c.Game.XPPerLevel = 100
	}
	if c.Game.DefaultPoint <= 0 {
		c.Game.DefaultPoint = 15
	}
	if c.Game.NotifyDuration <= 0 {
		c.Game.NotifyDuration = 3 * time.Second
	}
	if c.Game.MonitorInterval <= 0 {
		c.Game.MonitorInterval = 10 * time.Second
	}
	if c.Game.Collision == "" {
		c.Game.Collision = CollisionSkip
	}
	if strings.TrimSpace(c.Storage.Backend) == "" {
		c.Storage.Backend = "file"
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		c.Storage.DataDir = "data"
	}
	if c.Suggest.Timeout <= 0 {
		c.Suggest.Timeout = 10 * time.Second
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	switch c.Game.Collision {
	case CollisionSkip, CollisionRefresh:
	default:
		return fmt.Errorf("unknown collision policy: %q", c.Game.Collision)
	}
	return nil
}

// Load reads the yaml config at path and applies defaults. A missing file
// is not an error; the defaults are used as-is.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
