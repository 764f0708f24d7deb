package cmd

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doqment/docqa-be/config"
	"github.com/doqment/docqa-be/types"
	"github.com/doqment/docqa-be/utils"
)

// indexDocumentCmd represents the index command
var indexDocumentCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index local PDF files",
	Long: `Runs the full indexing pipeline (extract, chunk, embed, index) for one or
more local PDF files, copying each into the upload directory first. The
document id is derived from the file name.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reinit, _ := cmd.Flags().GetBool("reinit")

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		ctx := context.Background()
		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize services: %v", err)
		}

		if reinit {
			if err := p.index.ReInit(ctx); err != nil {
				log.Fatalf("Failed to reinitialize search index: %v", err)
			}
			log.Println("Search index reinitialized")
		} else if err := p.index.EnsureIndexExists(ctx); err != nil {
			log.Fatalf("Failed to ensure search index: %v", err)
		}

		for _, sourcePath := range args {
			base := filepath.Base(sourcePath)
			documentID := utils.SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)))

			path, err := p.files.SaveLocalFile(sourcePath, documentID)
			if err != nil {
				log.Fatalf("Failed to copy %s: %v", sourcePath, err)
			}
			if err := p.statuses.UpsertStatus(ctx, &types.IndexingJobStatus{
				DocumentID: documentID,
				Stage:      types.StagePending,
				Message:    "Queued for indexing",
			}); err != nil {
				log.Fatalf("Failed to record status for %s: %v", documentID, err)
			}

			log.Printf("Indexing %s as document %s", sourcePath, documentID)
			if err := p.indexer.IndexDocument(ctx, documentID, path); err != nil {
				log.Fatalf("Indexing %s failed: %v", documentID, err)
			}
			log.Printf("Document %s is ready", documentID)
		}
	},
}

func init() {
	rootCmd.AddCommand(indexDocumentCmd)
	indexDocumentCmd.Flags().Bool("reinit", false, "drop and recreate the search index before indexing")
}
