package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hragd/hragd/internal/audit"
	"github.com/hragd/hragd/internal/conversation"
	"github.com/hragd/hragd/internal/db"
	"github.com/hragd/hragd/internal/domain"
	"github.com/hragd/hragd/internal/gardener"
	"github.com/hragd/hragd/internal/graphstore"
	"github.com/hragd/hragd/internal/ingest"
	"github.com/hragd/hragd/internal/livedata"
	"github.com/hragd/hragd/internal/retrieval"
	"github.com/hragd/hragd/internal/server"
	"github.com/hragd/hragd/internal/vectordb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hragd API server",
	Long:  `Starts the hragd HTTP server: conversational chat with SSE and WebSocket streaming, gardener review queue, knowledge endpoints and document ingestion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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
		if err := store.Load(context.Background(), vectorDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load vector store from %s: %v\n", vectorDir, err)
			fmt.Fprintln(os.Stderr, "The index is empty until documents are ingested.")
		}

		dbPath := filepath.Join(cfg.DataDir, "hragd.db")
		database, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		vocabs, err := domain.LoadDir(cfg.DomainDir)
		if err != nil {
			return fmt.Errorf("loading domain vocabularies: %w", err)
		}
		domains := domain.NewRegistry(vocabs...)

		var live livedata.Store = livedata.NoopStore{}
		if cfg.LiveData.Command != "" {
			mcpStore := livedata.NewMCPStore(cfg.LiveData.Command, cfg.LiveData.Args, cfg.LiveData.Tool)
			defer mcpStore.Close()
			live = mcpStore
		}

		graph := graphstore.NewSQLiteStore(database)
		auditStore := audit.NewStore(database)
		queue := gardener.NewQueue(database, graph, embedder, auditStore, cfg.Gardener)

		fusion := retrieval.NewEngine(cfg.Fusion,
			retrieval.NewGraphQuerier(graph),
			retrieval.NewVectorQuerier(store, cfg.Fusion.MaxResults),
			retrieval.NewLiveQuerier(live),
		)

		threads := conversation.NewThreadStore(cfg.Conversation.ThreadTTL)
		engine := conversation.NewEngine(llmProvider, cfg.Model, domains, fusion, store, threads, cfg.Conversation)

		pipeline := ingest.NewPipeline(store, queue, llmProvider, cfg.Model, auditStore, cfg.Ingest)

		srv := server.New(cfg.Server, server.Deps{
			DB:         database,
			Engine:     engine,
			Queue:      queue,
			Graph:      graph,
			Vector:     store,
			Live:       live,
			Pipeline:   pipeline,
			Audit:      auditStore,
			LLM:        llmProvider,
			DomainName: strings.Join(domains.Names(), ","),
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		threads.StartSweeper(ctx, cfg.Conversation.SweepInterval)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
			if err := store.Persist(context.Background(), vectorDir); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: persisting vector store: %v\n", err)
			}
		}()

		fmt.Fprintf(os.Stderr, "hragd v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  Domain: %s\n", domains.Default().DisplayName)
		fmt.Fprintf(os.Stderr, "  Documents indexed: %d\n", store.Count())
		fmt.Fprintf(os.Stderr, "  Live data: %s\n", live.Name())

		return srv.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
