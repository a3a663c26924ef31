package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	ListenAddr string

	// 引擎（mpv）
	MPVPath        string
	MPVSocket      string        // JSON-IPC Unix套接字路径
	MPVExtraArgs   []string      // 附加启动参数
	CommandTimeout time.Duration // 单条命令的响应超时
	EngineRespawn  bool          // 引擎退出后是否自动重启

	// 解析工具（yt-dlp）
	YTDLPPath       string
	ResolveTimeout  time.Duration
	ResolveCacheTTL time.Duration // Redis中解析结果的存活时间

	// 推流（ffmpeg采集）
	FFmpegPath   string
	AudioSource  string // ffmpeg采集源，如 pulse 的 monitor 设备
	AudioFormat  string // 采集源格式，如 pulse
	AudioBitrate string // 如 "192k"

	// 数据库
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 日志
	LogLevel string
	LogPath  string
}

// getEnv 读取环境变量，不存在时返回默认值
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt 读取整型环境变量，不存在或非法时返回默认值
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool 读取布尔环境变量
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration 读取时长环境变量，如 "5s"
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load 从环境变量（含.env文件）加载配置
func Load() *Config {
	// godotenv.Load 不会覆盖已存在的环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		MPVPath:        getEnv("MPV_PATH", "mpv"),
		MPVSocket:      getEnv("MPV_SOCKET", filepath.Join(os.TempDir(), "pulsefm-mpv.sock")),
		MPVExtraArgs:   strings.Fields(getEnv("MPV_EXTRA_ARGS", "")),
		CommandTimeout: getEnvDuration("COMMAND_TIMEOUT", 5*time.Second),
		EngineRespawn:  getEnvBool("ENGINE_RESPAWN", true),

		YTDLPPath:       getEnv("YTDLP_PATH", "yt-dlp"),
		ResolveTimeout:  getEnvDuration("RESOLVE_TIMEOUT", 30*time.Second),
		ResolveCacheTTL: getEnvDuration("RESOLVE_CACHE_TTL", 2*time.Hour),

		FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
		AudioSource:  getEnv("AUDIO_SOURCE", "default"),
		AudioFormat:  getEnv("AUDIO_FORMAT", "pulse"),
		AudioBitrate: getEnv("AUDIO_BITRATE", "192k"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // 密码不设默认值
		DBName:     getEnv("DB_NAME", "pulsefm"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
