// Package config 加载运行配置：默认值 → YAML 文件 → .env → 环境变量 → 命令行参数，后者覆盖前者。
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mazerush/game"
	"mazerush/logger"
)

// 环境变量名
const (
	EnvAddr        = "MAZE_ADDR"
	EnvWebDir      = "MAZE_WEB_DIR"
	EnvLogFile     = "MAZE_LOG_FILE"
	EnvLogLevel    = "MAZE_LOG_LEVEL"
	EnvLogConsole  = "MAZE_LOG_CONSOLE"
	EnvGracePeriod = "MAZE_GRACE_PERIOD"
	EnvCountdown   = "MAZE_COUNTDOWN"
	EnvWidth       = "MAZE_WIDTH"
	EnvHeight      = "MAZE_HEIGHT"
	EnvMaxPlayers  = "MAZE_MAX_PLAYERS"
	EnvSendBuffer  = "MAZE_SEND_BUFFER"
)

// Config 进程级配置
type Config struct {
	Addr        string        `yaml:"addr" json:"addr"`
	WebDir      string        `yaml:"webDir" json:"webDir"`
	GracePeriod time.Duration `yaml:"gracePeriod" json:"gracePeriod"`
	SendBuffer  int           `yaml:"sendBuffer" json:"sendBuffer"` // 每个连接的发送队列长度
	Room        Room          `yaml:"room" json:"room"`
	Log         logger.Config `yaml:"log" json:"log"`
}

// Room 新建房间使用的参数
type Room struct {
	Width      int           `yaml:"width" json:"width"`
	Height     int           `yaml:"height" json:"height"`
	MaxPlayers int           `yaml:"maxPlayers" json:"maxPlayers"`
	Countdown  time.Duration `yaml:"countdown" json:"countdown"`
}

// Default 默认配置
func Default() Config {
	rc := game.DefaultRoomConfig()
	return Config{
		Addr:        ":8080",
		WebDir:      "web",
		GracePeriod: game.DefaultGracePeriod,
		SendBuffer:  256,
		Room: Room{
			Width:      rc.Width,
			Height:     rc.Height,
			MaxPlayers: rc.MaxPlayers,
			Countdown:  rc.Countdown,
		},
		Log: logger.DefaultConfig(),
	}
}

// Load 按层级合并配置。args 不含程序名。
func Load(args []string) (Config, error) {
	cfg := Default()

	var (
		configFile string
		envFile    string
		addr       string
		webDir     string
		logFile    string
		logLevel   string
		grace      time.Duration
		countdown  time.Duration
		width      int
		height     int
		maxPlayers int
		sendBuffer int
	)
	fset := flag.NewFlagSet("mazerush", flag.ContinueOnError)
	fset.StringVar(&configFile, "config", "", "optional YAML config file")
	fset.StringVar(&envFile, "env", ".env", "optional dotenv file")
	fset.StringVar(&addr, "addr", cfg.Addr, "server listen address, e.g. :8080")
	fset.StringVar(&webDir, "web", cfg.WebDir, "static web directory")
	fset.StringVar(&logFile, "log-file", cfg.Log.File, "log file path, empty for stdout only")
	fset.StringVar(&logLevel, "log-level", cfg.Log.Level, "debug|info|warn|error")
	fset.DurationVar(&grace, "grace", cfg.GracePeriod, "delay before an empty room is removed")
	fset.DurationVar(&countdown, "countdown", cfg.Room.Countdown, "auto start delay once enough players joined, 0 disables")
	fset.IntVar(&width, "width", cfg.Room.Width, "maze width in cells")
	fset.IntVar(&height, "height", cfg.Room.Height, "maze height in cells")
	fset.IntVar(&maxPlayers, "max-players", cfg.Room.MaxPlayers, "players per room, 0 for unlimited")
	fset.IntVar(&sendBuffer, "send-buffer", cfg.SendBuffer, "outbound queue length per connection")
	if err := fset.Parse(args); err != nil {
		return cfg, err
	}

	if configFile != "" {
		if err := loadYAML(configFile, &cfg); err != nil {
			return cfg, err
		}
	}

	dotenv, err := readDotenv(envFile)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg, envLookup(dotenv)); err != nil {
		return cfg, err
	}

	// 只有显式传入的参数才覆盖
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = addr
		case "web":
			cfg.WebDir = webDir
		case "log-file":
			cfg.Log.File = logFile
		case "log-level":
			cfg.Log.Level = logLevel
		case "grace":
			cfg.GracePeriod = grace
		case "countdown":
			cfg.Room.Countdown = countdown
		case "width":
			cfg.Room.Width = width
		case "height":
			cfg.Room.Height = height
		case "max-players":
			cfg.Room.MaxPlayers = maxPlayers
		case "send-buffer":
			cfg.SendBuffer = sendBuffer
		}
	})

	return cfg, cfg.Validate()
}

// Validate 检查取值范围
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.Room.Width < 3 || c.Room.Height < 3 {
		errs = append(errs, fmt.Errorf("maze size %dx%d is below 3x3", c.Room.Width, c.Room.Height))
	}
	if c.Room.MaxPlayers < 0 {
		errs = append(errs, fmt.Errorf("maxPlayers %d is negative", c.Room.MaxPlayers))
	}
	if c.Room.MaxPlayers > 0 && c.Room.MaxPlayers < game.MinPlayers {
		errs = append(errs, fmt.Errorf("maxPlayers %d is below %d", c.Room.MaxPlayers, game.MinPlayers))
	}
	if c.Room.Countdown < 0 {
		errs = append(errs, errors.New("countdown is negative"))
	}
	if c.GracePeriod < 0 {
		errs = append(errs, errors.New("gracePeriod is negative"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("sendBuffer %d must be positive", c.SendBuffer))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Registry 转换为房间注册表配置
func (c Config) Registry() game.RegistryConfig {
	rc := game.DefaultRoomConfig()
	rc.Width = c.Room.Width
	rc.Height = c.Room.Height
	rc.MaxPlayers = c.Room.MaxPlayers
	rc.Countdown = c.Room.Countdown
	return game.RegistryConfig{Room: rc, GracePeriod: c.GracePeriod}
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// readDotenv 读取 .env，不修改进程环境；文件不存在不算错误
func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vals, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vals, nil
}

// envLookup 进程环境优先于 .env 文件
func envLookup(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str(EnvAddr, &cfg.Addr)
	str(EnvWebDir, &cfg.WebDir)
	str(EnvLogFile, &cfg.Log.File)
	str(EnvLogLevel, &cfg.Log.Level)

	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be an integer: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be a duration: %w", key, err))
				return
			}
			*dst = d
		}
	}
	integer(EnvWidth, &cfg.Room.Width)
	integer(EnvHeight, &cfg.Room.Height)
	integer(EnvMaxPlayers, &cfg.Room.MaxPlayers)
	integer(EnvSendBuffer, &cfg.SendBuffer)
	duration(EnvGracePeriod, &cfg.GracePeriod)
	duration(EnvCountdown, &cfg.Room.Countdown)

	if v, ok := lookup(EnvLogConsole); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a bool: %w", EnvLogConsole, err))
		} else {
			cfg.Log.Console = b
		}
	}
	return errors.Join(errs...)
}
