// config.go

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 服务器配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	World       WorldConfig       `mapstructure:"world"`
	Drone       DroneConfig       `mapstructure:"drone"`
	Spawner     SpawnerConfig     `mapstructure:"spawner"`
	Turret      TurretConfig      `mapstructure:"turret"`
	Projectile  ProjectileConfig  `mapstructure:"projectile"`
	Reward      RewardConfig      `mapstructure:"reward"`
	Observation ObservationConfig `mapstructure:"observation"`
	Episode     EpisodeConfig     `mapstructure:"episode"`
	Policy      PolicyConfig      `mapstructure:"policy"`
}

// ServerConfig 服务器基本配置
type ServerConfig struct {
	GamePort       int    `mapstructure:"game_port"`
	Debug          bool   `mapstructure:"debug"`
	LogLevel       string `mapstructure:"log_level"`
	MaxArenas      int    `mapstructure:"max_arenas"`
	MaxConnections int    `mapstructure:"max_connections"`
	RateLimit      int    `mapstructure:"rate_limit"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// LeaderboardKeep 每个排行榜保留的回合数，0 不裁剪
	LeaderboardKeep int64 `mapstructure:"leaderboard_keep"`
}

// AuthConfig 连接鉴权配置，JWTSecret 为空时不校验
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Vector3 配置中的三维向量
type Vector3 struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
	Z float64 `mapstructure:"z"`
}

// Range 闭区间
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// WorldConfig 世界边界
type WorldConfig struct {
	X           Range   `mapstructure:"x"`
	Y           Range   `mapstructure:"y"`
	Z           Range   `mapstructure:"z"`
	SpawnMargin float64 `mapstructure:"spawn_margin"`
}

// DroneConfig 无人机飞控参数
type DroneConfig struct {
	MarginXZ               float64 `mapstructure:"margin_xz"`
	YMarginFromEdge        float64 `mapstructure:"y_margin_from_edge"`
	Gravity                float64 `mapstructure:"gravity"`
	Lift                   float64 `mapstructure:"lift"`
	MaxLift                float64 `mapstructure:"max_lift"`
	Drag                   float64 `mapstructure:"drag"`
	BaseSpeed              float64 `mapstructure:"base_speed"`
	TurnSpeed              float64 `mapstructure:"turn_speed"`
	ChangeInterval         float64 `mapstructure:"change_interval"`
	RandomSpread           float64 `mapstructure:"random_spread"`
	BoundarySpread         float64 `mapstructure:"boundary_spread"`
	NoiseYawAmp            float64 `mapstructure:"noise_yaw_amp"`
	NoiseYawSpeed          float64 `mapstructure:"noise_yaw_speed"`
	BaseVerticalJitter     float64 `mapstructure:"base_vertical_jitter"`
	VerticalChangeInterval float64 `mapstructure:"vertical_change_interval"`
	VerticalJitterNoise    float64 `mapstructure:"vertical_jitter_noise"`
	EdgeThreshold          float64 `mapstructure:"edge_threshold"`
	TargetInset            float64 `mapstructure:"target_inset"`
	Radius                 float64 `mapstructure:"radius"`
}

// SpawnerConfig 无人机生成器
type SpawnerConfig struct {
	DroneCount   int  `mapstructure:"drone_count"`
	RespawnOnHit bool `mapstructure:"respawn_on_hit"`
}

// RigConfig 炮塔骨架偏移，nil 表示缺失
type RigConfig struct {
	Base   *Vector3 `mapstructure:"base"`
	Pivot  *Vector3 `mapstructure:"pivot"`
	Muzzle *Vector3 `mapstructure:"muzzle"`
}

// TurretConfig 炮塔参数
type TurretConfig struct {
	Position        Vector3   `mapstructure:"position"`
	BaseTurnSpeed   float64   `mapstructure:"base_turn_speed"`
	BarrelTurnSpeed float64   `mapstructure:"barrel_turn_speed"`
	MinPitch        float64   `mapstructure:"min_pitch"`
	MaxPitch        float64   `mapstructure:"max_pitch"`
	FrontThreshold  float64   `mapstructure:"front_threshold"`
	Rig             RigConfig `mapstructure:"rig"`
}

// ProjectileConfig 子弹参数
type ProjectileConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MuzzleSpeed   float64 `mapstructure:"muzzle_speed"`
	FireRate      float64 `mapstructure:"fire_rate"`
	Lifetime      float64 `mapstructure:"lifetime"`
	Radius        float64 `mapstructure:"radius"`
	FireThreshold float64 `mapstructure:"fire_threshold"`
}

// 朝向奖励模式
const (
	OrientationFraction = "fraction"
	OrientationPerDrone = "per_drone"
)

// RewardConfig 奖励塑形参数
type RewardConfig struct {
	Existence       float64 `mapstructure:"existence"`
	Shooting        float64 `mapstructure:"shooting"`
	Hit             float64 `mapstructure:"hit"`
	Orientation     float64 `mapstructure:"orientation"`
	OrientationMode string  `mapstructure:"orientation_mode"`
}

// ObservationConfig 观测向量参数
type ObservationConfig struct {
	MaxDrones     int     `mapstructure:"max_drones"`
	PositionScale float64 `mapstructure:"position_scale"`
	VelocityScale float64 `mapstructure:"velocity_scale"`
	DistanceScale float64 `mapstructure:"distance_scale"`
}

// EpisodeConfig 回合参数
type EpisodeConfig struct {
	MaxSteps            int     `mapstructure:"max_steps"`
	FixedDelta          float64 `mapstructure:"fixed_delta"`
	EndWhenAllDestroyed bool    `mapstructure:"end_when_all_destroyed"`
	Seed                int64   `mapstructure:"seed"`
	ParallelDrones      bool    `mapstructure:"parallel_drones"`
}

// PolicyConfig 策略网络参数
type PolicyConfig struct {
	WeightsPath string `mapstructure:"weights_path"`
	HiddenSize  int    `mapstructure:"hidden_size"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig Config

	// ErrInvalidConfig 配置校验失败
	ErrInvalidConfig = errors.New("invalid config")
)

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) error {
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}
	GlobalConfig = *cfg
	return nil
}

// Load 读取配置文件，缺省字段使用默认值
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	v := newViper()
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("默认配置无法解析: %v", err))
	}
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SKYGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.game_port", 8081)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.max_arenas", 32)
	v.SetDefault("server.max_connections", 256)
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "skyguard")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.leaderboard_keep", 1000)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("world.x.min", 0.0)
	v.SetDefault("world.x.max", 100.0)
	v.SetDefault("world.y.min", 3.0)
	v.SetDefault("world.y.max", 20.0)
	v.SetDefault("world.z.min", 0.0)
	v.SetDefault("world.z.max", 100.0)
	v.SetDefault("world.spawn_margin", 15.0)

	v.SetDefault("drone.margin_xz", 10.0)
	v.SetDefault("drone.y_margin_from_edge", 5.0)
	v.SetDefault("drone.gravity", 9.81)
	v.SetDefault("drone.lift", 15.0)
	v.SetDefault("drone.max_lift", 25.0)
	v.SetDefault("drone.drag", 0.5)
	v.SetDefault("drone.base_speed", 8.0)
	v.SetDefault("drone.turn_speed", 100.0)
	v.SetDefault("drone.change_interval", 2.0)
	v.SetDefault("drone.random_spread", 40.0)
	v.SetDefault("drone.boundary_spread", 25.0)
	v.SetDefault("drone.noise_yaw_amp", 8.0)
	v.SetDefault("drone.noise_yaw_speed", 0.6)
	v.SetDefault("drone.base_vertical_jitter", 2.0)
	v.SetDefault("drone.vertical_change_interval", 2.5)
	v.SetDefault("drone.vertical_jitter_noise", 0.4)
	v.SetDefault("drone.edge_threshold", 0.25)
	v.SetDefault("drone.target_inset", 0.2)
	v.SetDefault("drone.radius", 0.5)

	v.SetDefault("spawner.drone_count", 5)
	v.SetDefault("spawner.respawn_on_hit", true)

	v.SetDefault("turret.position.x", 50.0)
	v.SetDefault("turret.position.y", 0.0)
	v.SetDefault("turret.position.z", 50.0)
	v.SetDefault("turret.base_turn_speed", 90.0)
	v.SetDefault("turret.barrel_turn_speed", 60.0)
	v.SetDefault("turret.min_pitch", -85.0)
	v.SetDefault("turret.max_pitch", 45.0)
	v.SetDefault("turret.front_threshold", 0.3)
	v.SetDefault("turret.rig.base", map[string]float64{"x": 0, "y": 0, "z": 0})
	v.SetDefault("turret.rig.pivot", map[string]float64{"x": 0, "y": 1.5, "z": 0})
	v.SetDefault("turret.rig.muzzle", map[string]float64{"x": 0, "y": 0, "z": 2})

	v.SetDefault("projectile.enabled", true)
	v.SetDefault("projectile.muzzle_speed", 60.0)
	v.SetDefault("projectile.fire_rate", 8.0)
	v.SetDefault("projectile.lifetime", 5.0)
	v.SetDefault("projectile.radius", 0.1)
	v.SetDefault("projectile.fire_threshold", 0.5)

	v.SetDefault("reward.existence", -0.001)
	v.SetDefault("reward.shooting", -0.01)
	v.SetDefault("reward.hit", 1.0)
	v.SetDefault("reward.orientation", -0.001)
	v.SetDefault("reward.orientation_mode", OrientationFraction)

	v.SetDefault("observation.max_drones", 10)
	v.SetDefault("observation.position_scale", 100.0)
	v.SetDefault("observation.velocity_scale", 20.0)
	v.SetDefault("observation.distance_scale", 200.0)

	v.SetDefault("episode.max_steps", 5000)
	v.SetDefault("episode.fixed_delta", 0.02)
	v.SetDefault("episode.end_when_all_destroyed", false)
	v.SetDefault("episode.seed", 1)
	v.SetDefault("episode.parallel_drones", false)

	v.SetDefault("policy.weights_path", "")
	v.SetDefault("policy.hidden_size", 64)
}

// Validate 校验会让主循环无法运行的配置项，其余问题由各组件回退处理
func (c *Config) Validate() error {
	if c.Episode.FixedDelta <= 0 {
		return fmt.Errorf("%w: episode.fixed_delta 必须大于0", ErrInvalidConfig)
	}
	if c.Episode.MaxSteps < 0 {
		return fmt.Errorf("%w: episode.max_steps 不能为负", ErrInvalidConfig)
	}
	if c.Observation.MaxDrones < 0 {
		return fmt.Errorf("%w: observation.max_drones 不能为负", ErrInvalidConfig)
	}
	if c.Turret.MinPitch > c.Turret.MaxPitch {
		return fmt.Errorf("%w: turret.min_pitch 大于 max_pitch", ErrInvalidConfig)
	}
	switch c.Reward.OrientationMode {
	case OrientationFraction, OrientationPerDrone:
	default:
		return fmt.Errorf("%w: 未知的 reward.orientation_mode %q", ErrInvalidConfig, c.Reward.OrientationMode)
	}
	return nil
}

// GetDSN 获取PostgreSQL连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetRedisAddr 获取Redis连接地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
