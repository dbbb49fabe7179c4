package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/assessment"
	"github.com/voxhire/interview-agent/internal/audio"
	"github.com/voxhire/interview-agent/internal/checkpoint"
	"github.com/voxhire/interview-agent/internal/config"
	"github.com/voxhire/interview-agent/internal/engine"
	"github.com/voxhire/interview-agent/internal/llm"
	"github.com/voxhire/interview-agent/internal/llm/bedrock"
	"github.com/voxhire/interview-agent/internal/llm/gemini"
	"github.com/voxhire/interview-agent/internal/models"
	"github.com/voxhire/interview-agent/internal/recovery"
	"github.com/voxhire/interview-agent/internal/scorer"
	"github.com/voxhire/interview-agent/internal/speech/gateway"
)

type Config struct {
	AWSRegion       string
	ClaudeModelID   string
	GeminiAPIKey    string
	GeminiModelID   string
	DefaultProvider string

	RedisAddr     string
	RedisPassword string

	GatewayURL string

	DurationMinutes        int
	MaxQuestions           int
	SilenceTimeoutSeconds  int
	ReconnectWindowSeconds int
	MinConfidence          float64
	QualityThreshold       float64

	RubricsPath string
	LogLevel    string
	APIPort     string
}

type Dependencies struct {
	Sessions    *engine.SessionManager
	Scorer      *scorer.Scorer
	Checkpoints *checkpoint.Store
	Logger      *zerolog.Logger
}

func LoadConfig() *Config {
	return &Config{
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:   getEnv("CLAUDE_MODEL_ID", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		DefaultProvider: getEnv("DEFAULT_LLM_PROVIDER", "bedrock"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		GatewayURL: getEnv("GATEWAY_WS_URL", "ws://localhost:8765/media"),

		DurationMinutes:        getEnvInt("INTERVIEW_DURATION_MINUTES", 45),
		MaxQuestions:           getEnvInt("MAX_QUESTIONS", 15),
		SilenceTimeoutSeconds:  getEnvInt("SILENCE_TIMEOUT_SECONDS", 15),
		ReconnectWindowSeconds: getEnvInt("RECONNECT_WINDOW_SECONDS", 300),
		MinConfidence:          getEnvFloat("MIN_RECOGNITION_CONFIDENCE", 0.5),
		QualityThreshold:       getEnvFloat("AUDIO_QUALITY_THRESHOLD", 0.4),

		RubricsPath: getEnv("RUBRICS_CONFIG_PATH", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		APIPort:     getEnv("INTERVIEW_AGENT_API_PORT", "18090"),
	}
}

func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	llmClient, err := createLLMClient(ctx, cfg.DefaultProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	// Load scoring rubrics from YAML
	rubrics, err := config.LoadRubrics(cfg.RubricsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rubrics config: %w", err)
	}

	answerScorer, err := scorer.NewScorer(rubrics, llmClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scorer: %w", err)
	}

	questioner := engine.NewQuestioner(llmClient, logger)

	redisClient, err := checkpoint.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, 5, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	checkpoints := checkpoint.NewStore(redisClient, logger)

	factory := newRunnerFactory(cfg, answerScorer, questioner, checkpoints, logger)
	sessions := engine.NewSessionManager(factory, checkpoints, logger)

	return &Dependencies{
		Sessions:    sessions,
		Scorer:      answerScorer,
		Checkpoints: checkpoints,
		Logger:      logger,
	}, nil
}

// newRunnerFactory builds per-session engines. Each session gets its own
// media gateway connection, audio controller, recovery manager, and
// aggregator; the scorer, questioner, and checkpoint store are shared.
func newRunnerFactory(
	cfg *Config,
	answerScorer *scorer.Scorer,
	questioner *engine.Questioner,
	checkpoints *checkpoint.Store,
	logger *zerolog.Logger,
) engine.RunnerFactory {
	return func(ctx context.Context, session *models.Session) (engine.SessionRunner, func(), error) {
		applySessionDefaults(&session.Config, cfg)

		gw, err := gateway.Dial(ctx, cfg.GatewayURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to dial media gateway: %w", err)
		}

		controller := audio.NewController(gw, gw, audio.Config{
			SilenceTimeout:    time.Duration(cfg.SilenceTimeoutSeconds) * time.Second,
			MaxAnswerDuration: 3 * time.Minute,
			MinConfidence:     cfg.MinConfidence,
			QualityThreshold:  cfg.QualityThreshold,
		}, logger)

		faults := recovery.NewManager(gw, time.Duration(cfg.ReconnectWindowSeconds)*time.Second, logger)
		aggregator := assessment.NewAggregator(logger)

		eng := engine.NewEngine(session, controller, answerScorer, questioner, faults, aggregator, checkpoints, logger)

		cleanup := func() {
			if err := gw.Close(); err != nil {
				logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to close gateway connection")
			}
		}
		return eng, cleanup, nil
	}
}

func applySessionDefaults(sc *models.SessionConfig, cfg *Config) {
	if sc.DurationMinutes <= 0 {
		sc.DurationMinutes = cfg.DurationMinutes
	}
	if sc.MaxQuestions <= 0 {
		sc.MaxQuestions = cfg.MaxQuestions
	}
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		value = defaultValue
	}

	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		value = defaultValue
	}

	return value
}

func createLLMClient(ctx context.Context, provider string, cfg *Config) (llm.LLMClient, error) {
	switch provider {
	case "bedrock":
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	case "gemini":
		return gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	default:
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	}
}
