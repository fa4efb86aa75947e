package config

import "time"

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level hragd configuration, corresponding to .hragd.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	DomainDir         string       `yaml:"domain_dir" koanf:"domain_dir"`

	Server       ServerConfig       `yaml:"server" koanf:"server"`
	Fusion       FusionConfig       `yaml:"fusion" koanf:"fusion"`
	Gardener     GardenerConfig     `yaml:"gardener" koanf:"gardener"`
	Conversation ConversationConfig `yaml:"conversation" koanf:"conversation"`
	LiveData     LiveDataConfig     `yaml:"live_data" koanf:"live_data"`
	Ingest       IngestConfig       `yaml:"ingest" koanf:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// FusionConfig tunes the retrieval fusion engine.
type FusionConfig struct {
	GraphWeight   float64       `yaml:"graph_weight" koanf:"graph_weight"`
	VectorWeight  float64       `yaml:"vector_weight" koanf:"vector_weight"`
	LiveWeight    float64       `yaml:"live_weight" koanf:"live_weight"`
	MaxResults    int           `yaml:"max_results" koanf:"max_results"`
	SourceTimeout time.Duration `yaml:"source_timeout" koanf:"source_timeout"`
}

// GardenerConfig tunes entity conflict classification.
type GardenerConfig struct {
	AutoMergeThreshold float64 `yaml:"auto_merge_threshold" koanf:"auto_merge_threshold"`
	ReviewThreshold    float64 `yaml:"review_threshold" koanf:"review_threshold"`
}

// ConversationConfig tunes the per-thread turn controller.
type ConversationConfig struct {
	ThreadTTL            time.Duration `yaml:"thread_ttl" koanf:"thread_ttl"`
	SweepInterval        time.Duration `yaml:"sweep_interval" koanf:"sweep_interval"`
	MaxClarifyRounds     int           `yaml:"max_clarify_rounds" koanf:"max_clarify_rounds"`
	GenerationTimeout    time.Duration `yaml:"generation_timeout" koanf:"generation_timeout"`
	MaxQueryLength       int           `yaml:"max_query_length" koanf:"max_query_length"`
	StepAnimationDelayMS int           `yaml:"step_animation_delay_ms" koanf:"step_animation_delay_ms"`
}

// LiveDataConfig configures the live operational data source (MCP server).
type LiveDataConfig struct {
	Command string   `yaml:"command" koanf:"command"`
	Args    []string `yaml:"args" koanf:"args"`
	Tool    string   `yaml:"tool" koanf:"tool"`
}

// IngestConfig controls document ingestion.
type IngestConfig struct {
	Include      []string `yaml:"include" koanf:"include"`
	Exclude      []string `yaml:"exclude" koanf:"exclude"`
	MaxChunkSize int      `yaml:"max_chunk_size" koanf:"max_chunk_size"`
}
