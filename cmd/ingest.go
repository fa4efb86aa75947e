package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hragd/hragd/internal/audit"
	"github.com/hragd/hragd/internal/db"
	"github.com/hragd/hragd/internal/gardener"
	"github.com/hragd/hragd/internal/graphstore"
	"github.com/hragd/hragd/internal/ingest"
	"github.com/hragd/hragd/internal/progress"
	"github.com/hragd/hragd/internal/vectordb"
)

var ingestDomain string

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Ingest operational documents into the knowledge base",
	Long: `Chunks and indexes markdown documents (runbooks, post-mortems, case
studies) into the vector index and extracts entities into the gardener
review queue for graph curation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		llmProvider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		store, err := vectordb.NewChromemStore(embedder)
		if err != nil {
			return fmt.Errorf("creating vector store: %w", err)
		}
		vectorDir := filepath.Join(cfg.DataDir, "vectordb")
		if err := store.Load(cmd.Context(), vectorDir); err != nil {
			fmt.Fprintf(os.Stderr, "Starting with an empty vector index: %v\n", err)
		}

		database, err := db.Open(filepath.Join(cfg.DataDir, "hragd.db"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		graph := graphstore.NewSQLiteStore(database)
		auditStore := audit.NewStore(database)
		queue := gardener.NewQueue(database, graph, embedder, auditStore, cfg.Gardener)
		pipeline := ingest.NewPipeline(store, queue, llmProvider, cfg.Model, auditStore, cfg.Ingest)

		domainName := ingestDomain
		if domainName == "" {
			domainName = "devops"
		}

		result, err := pipeline.IngestDir(cmd.Context(), dir, domainName, progress.NewReporter())
		if err != nil {
			return err
		}

		if err := store.Persist(cmd.Context(), vectorDir); err != nil {
			return fmt.Errorf("persisting vector store: %w", err)
		}

		fmt.Printf("\nIngested %d files into domain %q\n", result.Files, result.Domain)
		fmt.Printf("  Chunks indexed:     %d\n", result.VectorsCreated)
		fmt.Printf("  Entities extracted: %d\n", result.EntitiesExtracted)
		fmt.Printf("  Auto-merged:        %d\n", result.AutoMerged)
		fmt.Printf("  Review tasks:       %d\n", result.TasksCreated)
		if len(result.Errors) > 0 {
			fmt.Printf("  Errors:             %d\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "  - %s\n", e)
			}
		}
		if result.TasksCreated > 0 {
			fmt.Println("\nReview pending tasks via GET /api/gardener/tasks on a running server.")
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDomain, "domain", "", "domain name to file documents under")
	rootCmd.AddCommand(ingestCmd)
}
