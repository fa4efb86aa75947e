package config

import "time"

// DefaultExcludes are glob patterns excluded from ingestion by default.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"*.lock",
	"*.bin",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".hragd",
		DomainDir:         "domains",
		Server: ServerConfig{
			Port: 8080,
		},
		Fusion: FusionConfig{
			GraphWeight:   0.40,
			VectorWeight:  0.35,
			LiveWeight:    0.25,
			MaxResults:    10,
			SourceTimeout: 8 * time.Second,
		},
		Gardener: GardenerConfig{
			AutoMergeThreshold: 0.92,
			ReviewThreshold:    0.75,
		},
		Conversation: ConversationConfig{
			ThreadTTL:         30 * time.Minute,
			SweepInterval:     5 * time.Minute,
			MaxClarifyRounds:  3,
			GenerationTimeout: 60 * time.Second,
			MaxQueryLength:    8000,
		},
		LiveData: LiveDataConfig{
			Tool: "query_metrics",
		},
		Ingest: IngestConfig{
			Include:      []string{"**/*.md", "**/*.txt"},
			Exclude:      DefaultExcludes,
			MaxChunkSize: 1000,
		},
	}
}
