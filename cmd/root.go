package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/doqment/docqa-be/config"
	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/repository"
	"github.com/doqment/docqa-be/service"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docqa-be",
	Short: "Document question-answering backend",
	Long: `docqa-be indexes uploaded PDF documents into a hybrid search index and
answers questions about them with streamed, page-cited responses.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/config.yaml", "config file")
}

// pipeline bundles the services shared by the server and CLI commands.
type pipeline struct {
	cfg      *config.Config
	index    *database.WeaviateIndex
	statuses database.StatusStore
	sessions database.SessionStore
	files    *service.FileService
	indexer  *service.IndexingService
	ask      *service.AskService
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	weaviateIndex, err := database.NewWeaviateIndex(cfg.WeaviateConfig)
	if err != nil {
		return nil, err
	}

	mongoClient, err := database.NewMongoClient(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	mongoDb := mongoClient.Database("docqa")
	statuses := repository.NewStatusRepo(mongoDb.Collection("indexing_statuses"))
	sessions := repository.NewSessionRepo(mongoDb.Collection("chat_sessions"))

	var provider service.EmbeddingProvider
	if cfg.Embedding.Provider == "gemini" {
		provider, err = service.NewGeminiEmbeddingProvider(ctx, cfg.GeminiAPIKey, cfg.Embedding.Model)
		if err != nil {
			return nil, err
		}
	} else {
		provider = service.NewOpenAIEmbeddingProvider(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	embedder := service.NewEmbeddingService(provider, cfg.Embedding)

	chunker := service.NewChunkerService(cfg.Chunking)
	extractor := service.NewPdftotextExtractor()
	indexer := service.NewIndexingService(extractor, chunker, embedder, weaviateIndex, statuses)

	retriever := service.NewRetrieverService(weaviateIndex)
	chat := service.NewChatService(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.Model, embedder, retriever, cfg.Retrieval)
	ask := service.NewAskService(chat, sessions)

	return &pipeline{
		cfg:      cfg,
		index:    weaviateIndex,
		statuses: statuses,
		sessions: sessions,
		files:    service.NewFileService(cfg.UploadDir),
		indexer:  indexer,
		ask:      ask,
	}, nil
}
