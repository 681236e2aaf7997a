package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config aggregates every configurable part of the service.
type Config struct {
	Server  ServerConfig
	Chat    ChatConfig
	Speech  SpeechConfig
	Storage StorageConfig
	Share   ShareConfig
	Log     LogConfig
}

// Load reads configuration from the environment. When ZASK_CONFIG names a
// YAML file its entries fill in variables the environment leaves unset.
func Load() (*Config, error) {
	if path := strings.TrimSpace(os.Getenv("ZASK_CONFIG")); path != "" {
		if err := applyFile(path); err != nil {
			return nil, err
		}
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	share, err := loadShareConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Chat:    chat,
		Speech:  speech,
		Storage: loadStorageConfig(),
		Share:   share,
		Log:     loadLogConfig(),
	}, nil
}

// applyFile reads a flat YAML map of variable names to values.
func applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}

	for key, value := range values {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return errors.Wrapf(err, "apply %s", key)
		}
	}
	return nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// accepts ":8080" or "127.0.0.1:8080" as-is
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, errors.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

const (
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

// ChatConfig selects and configures the conversational provider.
type ChatConfig struct {
	Provider     string
	SystemPrompt string
	SendTimeout  time.Duration
	Ark          ArkConfig
	Gemini       GeminiConfig
}

// Enabled reports whether the selected provider has credentials.
func (c ChatConfig) Enabled() bool {
	switch c.Provider {
	case ProviderGemini:
		return c.Gemini.Enabled()
	default:
		return c.Ark.Enabled()
	}
}

// ArkConfig describes the Ark-hosted model.
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required keys are present.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the configuration.
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: set ARK_API_KEY + Model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// GeminiConfig describes the Google Gemini model.
type GeminiConfig struct {
	APIKey string
	Model  string
}

func (c GeminiConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

func loadChatConfig() (ChatConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return ChatConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return ChatConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return ChatConfig{}, err
	}

	timeout, err := parseDurationEnv("CHAT_SEND_TIMEOUT", 2*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("CHAT_PROVIDER", ProviderArk))
	if provider != ProviderArk && provider != ProviderGemini {
		return ChatConfig{}, errors.Errorf("invalid CHAT_PROVIDER value %q", provider)
	}

	return ChatConfig{
		Provider:     provider,
		SystemPrompt: strings.TrimSpace(os.Getenv("CHAT_SYSTEM_PROMPT")),
		SendTimeout:  timeout,
		Ark: ArkConfig{
			APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:       strings.TrimSpace(os.Getenv("Model")),
			BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
		},
		Gemini: GeminiConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		},
	}, nil
}

// SpeechConfig describes the text-to-speech service.
type SpeechConfig struct {
	AppID       string
	AccessToken string
	Voice       string
	Speed       float32
	Volume      float32
	Language    string
	Timeout     time.Duration
	Enabled     bool
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseDurationEnv("SPEECH_TIMEOUT", 30*time.Second)
	if err != nil {
		return SpeechConfig{}, err
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0)
	if speed != nil {
		ttsSpeed = *speed
	}

	volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsVolume := float32(1.0)
	if volume != nil {
		ttsVolume = *volume
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))
	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	}

	return SpeechConfig{
		AppID:       appID,
		AccessToken: accessToken,
		Voice:       getEnvOrDefault("SPEECH_TTS_VOICE", "en_female_amy_jupiter_bigtts"),
		Speed:       ttsSpeed,
		Volume:      ttsVolume,
		Language:    getEnvOrDefault("SPEECH_TTS_LANGUAGE", "en-US"),
		Timeout:     timeout,
		Enabled:     appID != "" && accessToken != "",
	}, nil
}

// StorageConfig selects the local persistence backend.
type StorageConfig struct {
	Driver string
	Path   string
}

func loadStorageConfig() StorageConfig {
	driver := strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", "bolt"))
	defaultPath := "data/zask.bolt"
	if driver == "sqlite" {
		defaultPath = "data/zask.db"
	}
	return StorageConfig{
		Driver: driver,
		Path:   getEnvOrDefault("STORAGE_PATH", defaultPath),
	}
}

// ShareConfig describes the conversation sharing service.
type ShareConfig struct {
	Endpoint  string
	BaseURL   string
	AvatarURL string
	Timeout   time.Duration
}

func loadShareConfig() (ShareConfig, error) {
	timeout, err := parseDurationEnv("SHARE_TIMEOUT", 30*time.Second)
	if err != nil {
		return ShareConfig{}, err
	}
	return ShareConfig{
		Endpoint:  getEnvOrDefault("SHARE_ENDPOINT", "https://sharegpt.com/api/conversations"),
		BaseURL:   strings.TrimRight(getEnvOrDefault("SHARE_BASE_URL", "https://shareg.pt"), "/"),
		AvatarURL: strings.TrimSpace(os.Getenv("SHARE_AVATAR_URL")),
		Timeout:   timeout,
	}, nil
}

// LogConfig controls the zerolog setup.
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// bare integers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s value %q", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	result := float32(val)
	return &result, nil
}
