package cmd

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/doqment/docqa-be/config"
	"github.com/doqment/docqa-be/handler"
	"github.com/doqment/docqa-be/service"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the document QA server",
	Long:  `Starts the HTTP server that handles document uploads and question answering.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		ctx := context.Background()
		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize services: %v", err)
		}
		if err := p.index.EnsureIndexExists(ctx); err != nil {
			log.Fatalf("Failed to ensure search index: %v", err)
		}

		ws := service.NewWebSocketService(p.ask)

		// Initialize handlers
		corsHandler := handler.NewCorsHandler()
		uploadHandler := handler.NewUploadHandler(p.files, p.indexer, p.statuses)
		chatHandler := handler.NewChatHandler(p.ask, ws, p.sessions)
		statusHandler := handler.NewStatusHandler(p.statuses)
		documentHandler := handler.NewDocumentHandler(p.files, p.index, p.statuses)

		// Setup Gin router
		router := gin.Default()
		router.Use(corsHandler.CorsMiddleware)

		apiV1 := router.Group("/api/v1")
		{
			apiV1.POST("/documents", uploadHandler.HandleUpload)
			apiV1.GET("/documents/:id", documentHandler.HandleServeDocument)
			apiV1.DELETE("/documents/:id", documentHandler.HandleDeleteDocument)
			apiV1.GET("/documents/:id/status", statusHandler.HandleGetStatus)
			apiV1.POST("/documents/:id/ask", chatHandler.HandleAsk)
			apiV1.GET("/documents/:id/ws", chatHandler.HandleAskWebSocket)
			apiV1.GET("/documents/:id/sessions", chatHandler.HandleListSessions)
			apiV1.GET("/sessions/:sessionId", chatHandler.HandleGetSession)
		}

		log.Printf("Starting server on port %s...\n", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Server error:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
