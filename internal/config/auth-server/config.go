package auth_server_config

import (
	"time"

	"github.com/NordCoder/campauth/internal/obs"
	kafkarepo "github.com/NordCoder/campauth/internal/repository/kafka"
	pg "github.com/NordCoder/campauth/internal/repository/postgres"
	redisrepo "github.com/NordCoder/campauth/internal/repository/redis"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (c *Config) OTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      c.OTEL.Enable,
		Endpoint:    c.OTEL.OTLPEndpoint,
		ServiceName: c.OTEL.ServiceName,
		ServiceVer:  c.App.Version,
		SampleRatio: c.OTEL.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (c *Config) LoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type Auth struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	LegacyCacheTTL time.Duration `mapstructure:"legacy_cache_ttl"`
	CookieName     string        `mapstructure:"cookie_name"`
	CookieDomain   string        `mapstructure:"cookie_domain"`
	CookiePath     string        `mapstructure:"cookie_path"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Cleanup struct {
	Enable   bool          `mapstructure:"enable"`
	Interval time.Duration `mapstructure:"interval"`
}

type Redis struct {
	Enable           bool             `mapstructure:"enable"`
	Client           redisrepo.Config `mapstructure:",squash"`
	LoginMaxAttempts int              `mapstructure:"login_max_attempts"`
	LoginWindow      time.Duration    `mapstructure:"login_window"`
}

type Kafka struct {
	Enable bool             `mapstructure:"enable"`
	Client kafkarepo.Config `mapstructure:",squash"`
}

type Config struct {
	App     App       `mapstructure:"app"`
	Server  Server    `mapstructure:"server"`
	DB      pg.Config `mapstructure:"db"`
	OTEL    OTEL      `mapstructure:"otel"`
	Log     Log       `mapstructure:"log"`
	Auth    Auth      `mapstructure:"auth"`
	CORS    CORS      `mapstructure:"cors"`
	Cleanup Cleanup   `mapstructure:"cleanup"`
	Redis   Redis     `mapstructure:"redis"`
	Kafka   Kafka     `mapstructure:"kafka"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
