package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cognivia/ideaflow/internal/chat"
	"github.com/cognivia/ideaflow/internal/config"
	"github.com/cognivia/ideaflow/internal/llm"
	"github.com/cognivia/ideaflow/internal/scoring"
	"github.com/cognivia/ideaflow/internal/server"
	"github.com/cognivia/ideaflow/internal/settings"
	"github.com/cognivia/ideaflow/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ideaflow",
	Short: "ideaflow - guided ideation conversation service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config file",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ideaflow status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd)
}

func main() {
	// A .env next to the binary is honored; its absence is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'ideaflow onboard' or set IDEAFLOW_API_KEY / OPENAI_API_KEY")
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		_ = db.Close(context.Background())
	}()

	client := llm.NewOpenAIClient(cfg)
	cache := settings.NewCache(db.Settings())
	buffers := chat.NewBufferManager(chat.DefaultBufferCap)

	pipeline, err := chat.NewPipeline(cfg, client, db.Transcripts(), buffers, cache)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	engine := scoring.NewEngine(cfg, client)

	app := server.New(cfg, pipeline, db.Transcripts(), db.Analyses(), engine, db.Admin(), cache, buffers)
	return app.Run(ctx)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set IDEAFLOW_API_KEY / OPENAI_API_KEY")
	fmt.Println("  3. Run 'ideaflow serve' to start the service")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	fmt.Printf("Scoring model: %s\n", cfg.Provider.ScoringModel)
	fmt.Printf("Mongo: %s/%s\n", cfg.Mongo.URI, cfg.Mongo.Database)
	fmt.Printf("Timezone: %s\n", cfg.Chat.Timezone)
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}

	return nil
}
