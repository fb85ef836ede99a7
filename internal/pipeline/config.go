package pipeline

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every tunable of the pipeline. Values come from an
// optional YAML file with environment overrides.
type Config struct {
	MetadataPath string `yaml:"metadata_path" env:"NL2SQL_METADATA_PATH" env-default:"metadata.json"`

	Database struct {
		Type     string `yaml:"type" env:"NL2SQL_DB_TYPE" env-default:"sqlite"`
		Path     string `yaml:"path" env:"NL2SQL_DB_PATH" env-default:"banking.db"`
		Host     string `yaml:"host" env:"NL2SQL_DB_HOST"`
		Port     int    `yaml:"port" env:"NL2SQL_DB_PORT"`
		Name     string `yaml:"name" env:"NL2SQL_DB_NAME"`
		User     string `yaml:"user" env:"NL2SQL_DB_USER"`
		Password string `yaml:"password" env:"NL2SQL_DB_PASSWORD"`
	} `yaml:"database"`

	VectorStore struct {
		URL       string `yaml:"url" env:"NL2SQL_VECTOR_STORE_URL"`
		Namespace string `yaml:"namespace" env:"NL2SQL_VECTOR_NAMESPACE" env-default:"database_schema"`
	} `yaml:"vector_store"`

	LLM struct {
		Model          string `yaml:"model" env:"NL2SQL_LLM_MODEL" env-default:"deepseek-chat"`
		EmbeddingModel string `yaml:"embedding_model" env:"NL2SQL_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
		BaseURL        string `yaml:"base_url" env:"NL2SQL_LLM_BASE_URL"`
		Token          string `yaml:"token" env:"NL2SQL_LLM_TOKEN"`
	} `yaml:"llm"`

	MaxRetries     int           `yaml:"max_retries" env:"NL2SQL_MAX_RETRIES" env-default:"2"`
	MaxLLMAttempts int           `yaml:"max_llm_attempts" env:"NL2SQL_MAX_LLM_ATTEMPTS" env-default:"3"`
	MaxHistory     int           `yaml:"max_history" env:"NL2SQL_MAX_HISTORY" env-default:"3"`
	SQLRowLimit    int           `yaml:"sql_row_limit" env:"NL2SQL_SQL_ROW_LIMIT" env-default:"200"`
	TopKSchema     int           `yaml:"top_k_schema" env:"NL2SQL_TOP_K_SCHEMA" env-default:"3"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"NL2SQL_REQUEST_TIMEOUT" env-default:"120s"`
	StageTimeout   time.Duration `yaml:"stage_timeout" env:"NL2SQL_STAGE_TIMEOUT" env-default:"45s"`

	HTTPAddr string `yaml:"http_addr" env:"NL2SQL_HTTP_ADDR" env-default:":8080"`
}

// LoadConfig reads the YAML file when path is non-empty, then applies
// environment overrides. An empty path uses environment and defaults
// only.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
