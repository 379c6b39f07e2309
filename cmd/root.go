package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "panel-interview"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Panel     PanelConfig     `mapstructure:"panel"`
	Interview InterviewConfig `mapstructure:"interview"`
	Resume    ResumeConfig    `mapstructure:"resume"`
	Client    ClientConfig    `mapstructure:"client"`
	Store     StoreConfig     `mapstructure:"store"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MaxUploadBytes  int64         `mapstructure:"max-upload-bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	CookieName      string        `mapstructure:"cookie-name"`
	SummaryCache    int           `mapstructure:"summary-cache"`
	NotesTTL        time.Duration `mapstructure:"notes-ttl"`
}

type LLMConfig struct {
	Provider          string           `mapstructure:"provider"`
	EmbeddingProvider string           `mapstructure:"embedding-provider"`
	MaxLogLength      int              `mapstructure:"max-log-length"`
	RequestTimeout    time.Duration    `mapstructure:"request-timeout"`
	Gemini            *GeminiConfig    `mapstructure:"gemini"`
	OpenAI            *OpenAIConfig    `mapstructure:"openai"`
	Anthropic         *AnthropicConfig `mapstructure:"anthropic"`
	Ollama            *OllamaConfig    `mapstructure:"ollama"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	BaseURL        string `mapstructure:"base-url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
}

type AnthropicConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max-tokens"`
}

type OllamaConfig struct {
	Host           string `mapstructure:"host"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
}

type PanelConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity-threshold"`
	Size                int     `mapstructure:"size"`
	MaxJDTokens         int     `mapstructure:"max-jd-tokens"`
}

type InterviewConfig struct {
	QuestionsPerAgent int  `mapstructure:"questions-per-agent"`
	TurnFeedback      bool `mapstructure:"turn-feedback"`
	HistoryWindow     int  `mapstructure:"history-window"`
}

type ResumeConfig struct {
	MaxTokens int `mapstructure:"max-tokens"`
}

type ClientConfig struct {
	SilenceTimeout time.Duration `mapstructure:"silence-timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "panel-interview runs mock interviews with a panel of AI interviewers built from a job description",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is panel-interview.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("server.max-upload-bytes", 10<<20)
	viper.SetDefault("server.shutdown-timeout", 5*time.Second)
	viper.SetDefault("server.cookie-name", "sid")
	viper.SetDefault("server.summary-cache", 256)
	viper.SetDefault("server.notes-ttl", time.Hour)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.embedding-provider", "openai")
	viper.SetDefault("llm.max-log-length", 200)
	viper.SetDefault("llm.request-timeout", 60*time.Second)
	viper.SetDefault("llm.gemini.api-key", "")
	viper.SetDefault("llm.gemini.api-key-file", "")
	viper.SetDefault("llm.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("llm.gemini.embedding-model", "text-embedding-004")
	viper.SetDefault("llm.openai.api-key", "")
	viper.SetDefault("llm.openai.api-key-file", "")
	viper.SetDefault("llm.openai.base-url", "")
	viper.SetDefault("llm.openai.model", "gpt-4o")
	viper.SetDefault("llm.openai.embedding-model", "text-embedding-3-small")
	viper.SetDefault("llm.anthropic.api-key", "")
	viper.SetDefault("llm.anthropic.api-key-file", "")
	viper.SetDefault("llm.anthropic.model", "claude-sonnet-4-5")
	viper.SetDefault("llm.anthropic.max-tokens", 1024)
	viper.SetDefault("llm.ollama.host", "http://localhost:11434")
	viper.SetDefault("llm.ollama.model", "llama3.1")
	viper.SetDefault("llm.ollama.embedding-model", "nomic-embed-text")

	viper.SetDefault("panel.similarity-threshold", 0.9)
	viper.SetDefault("panel.size", 3)
	viper.SetDefault("panel.max-jd-tokens", 1000)

	viper.SetDefault("interview.questions-per-agent", 2)
	viper.SetDefault("interview.turn-feedback", true)
	viper.SetDefault("interview.history-window", 5)

	viper.SetDefault("resume.max-tokens", 4000)
	viper.SetDefault("client.silence-timeout", 2500*time.Millisecond)

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.path", app+".db")
}

func initConfig() {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix("PANEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Without a config file the defaults and environment are used.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
