// Package main provides the docchat CLI: document-grounded chat with
// per-session ingestion and retrieval.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docchat/internal/assistant"
	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/ingest"
	mcpserver "docchat/internal/mcp"
	"docchat/internal/retriever"
	"docchat/internal/session"
	"docchat/internal/storage"
	"docchat/internal/tokens"
	"docchat/internal/tui"
)

var (
	configPath string
	modelKey   string
	sessionID  string
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your documents",
	Long: `docchat indexes local documents into Qdrant and answers questions
about them, with every session keeping its own private document set.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)
  GROQ_API_KEY   Groq API key for chat completions (required for chat)`,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Opens the chat interface. A new session is created unless --session
names an existing one. Use /ingest <path> inside the chat to add
documents to the session.`,
	RunE: runChat,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest document files into a session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	RunE:  runSessionsList,
}

var keepDocuments bool

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session and its indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var exportPath string

var sessionsExportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session's chat history as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsExport,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported chat models",
	RunE:  runModels,
}

var httpMode bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server",
	Long: `Exposes retrieval and ingestion as MCP tools. Runs over stdio by
default; --http serves Streamable HTTP on PORT (default 8080) with a
health check at /health.`,
	RunE: runMCP,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	chatCmd.Flags().StringVar(&modelKey, "model", "", "chat model key (see 'docchat models')")
	chatCmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session")
	ingestCmd.Flags().StringVar(&sessionID, "session", "", "target session (required)")
	sessionsDeleteCmd.Flags().BoolVar(&keepDocuments, "keep-documents", false, "keep the session's chunks in the vector store")
	sessionsExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "write to file instead of stdout")
	mcpCmd.Flags().BoolVar(&httpMode, "http", false, "serve MCP over HTTP instead of stdio")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd, sessionsExportCmd)
	rootCmd.AddCommand(chatCmd, ingestCmd, sessionsCmd, modelsCmd, mcpCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadDefault()
}

// buildStore wires the embedding client and the Qdrant adapter.
func buildStore(cfg *config.Config) (*storage.Store, error) {
	client, err := embedding.NewClient()
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.BatchSize)

	return storage.New(
		cfg.Qdrant.Host,
		cfg.Qdrant.Port,
		cfg.Qdrant.Collection,
		time.Duration(cfg.Qdrant.TimeoutSecs)*time.Second,
		embedder,
	)
}

func buildPipeline(store *storage.Store) *ingest.Pipeline {
	return ingest.New(nil, nil, store, slog.Default())
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("connecting to Qdrant: %w", err)
	}
	defer store.Close()

	completer, err := chat.NewClient(cfg.Chat, modelKey)
	if err != nil {
		return err
	}

	sessions := session.NewRepository(cfg.SessionFile)
	if sessionID == "" {
		sessionID = uuid.NewString()[:8]
	} else {
		ok, err := sessions.Exists(sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown session %q, run 'docchat sessions list'", sessionID)
		}
	}
	if err := sessions.Init(sessionID); err != nil {
		return err
	}

	asker := assistant.New(
		retriever.New(store, slog.Default()),
		completer,
		sessions,
		slog.Default(),
	)
	pipeline := buildPipeline(store)

	counter, err := tokens.NewCounter(completer.Model())
	if err != nil {
		return err
	}

	program := tea.NewProgram(
		tui.New(asker, &uploadingIngester{pipeline: pipeline, uploadDir: cfg.UploadDir}, counter, sessionID, completer.Model()),
		tea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

// uploadingIngester copies files into the upload directory before
// indexing, so a session's source documents survive the original file
// moving or disappearing.
type uploadingIngester struct {
	pipeline  *ingest.Pipeline
	uploadDir string
}

func (u *uploadingIngester) Ingest(ctx context.Context, path, sessionID string) (*ingest.Result, error) {
	saved, err := saveUpload(u.uploadDir, sessionID, path)
	if err != nil {
		return nil, err
	}
	return u.pipeline.Ingest(ctx, saved, sessionID)
}

// saveUpload copies the file into uploadDir/<session>/ and returns the
// saved path.
func saveUpload(uploadDir, sessionID, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	dir := filepath.Join(uploadDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(path))
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating upload copy: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copying upload: %w", err)
	}
	return dest, nil
}

// stageUploads copies each file into the session's upload directory.
// A file that cannot be copied is recorded as failed and does not block
// its siblings.
func stageUploads(uploadDir, sessionID string, paths []string) (saved []string, failed []ingest.FailedFile) {
	for _, path := range paths {
		dest, err := saveUpload(uploadDir, sessionID, path)
		if err != nil {
			failed = append(failed, ingest.FailedFile{Path: path, Reason: err.Error()})
			continue
		}
		saved = append(saved, dest)
	}
	return saved, failed
}

func runIngest(cmd *cobra.Command, args []string) error {
	if sessionID == "" {
		return fmt.Errorf("--session is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("connecting to Qdrant: %w", err)
	}
	defer store.Close()

	sessions := session.NewRepository(cfg.SessionFile)
	if err := sessions.Init(sessionID); err != nil {
		return err
	}

	ctx := context.Background()
	pipeline := buildPipeline(store)

	saved, copyFailed := stageUploads(cfg.UploadDir, sessionID, args)

	start := time.Now()
	result := pipeline.IngestAll(ctx, saved, sessionID)
	result.Failed = append(copyFailed, result.Failed...)

	fmt.Println("Ingestion complete.")
	fmt.Printf("  Files: %d/%d\n", len(result.Ingested), len(args))
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))

	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed files:")
		for _, failed := range result.Failed {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
	return nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessions := session.NewRepository(cfg.SessionFile)
	ids, err := sessions.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No sessions. Start one with 'docchat chat'.")
		return nil
	}

	counter, err := tokens.NewCounter(cfg.Chat.DefaultModel)
	if err != nil {
		return err
	}

	for _, id := range ids {
		msgs, err := sessions.Messages(id)
		if err != nil {
			return err
		}
		total := 0
		for _, m := range msgs {
			total += counter.Count(m.Content)
		}
		fmt.Printf("%s  %d messages  ~%d tokens\n", id, len(msgs), total)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	id := args[0]
	sessions := session.NewRepository(cfg.SessionFile)
	if err := sessions.Delete(id); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", id)

	if keepDocuments {
		return nil
	}

	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("session deleted, but connecting to Qdrant to remove its documents failed: %w", err)
	}
	defer store.Close()

	if err := store.DeleteSession(context.Background(), id); err != nil {
		return fmt.Errorf("session deleted, but removing its documents failed: %w", err)
	}
	fmt.Println("Removed its document chunks from the vector store.")
	return nil
}

// exportSession writes the session's message history as indented JSON.
func exportSession(sessions *session.Repository, id string, w io.Writer) error {
	msgs, err := sessions.Messages(id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(msgs)
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessions := session.NewRepository(cfg.SessionFile)

	out := os.Stdout
	if exportPath != "" {
		f, err := os.Create(exportPath)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return exportSession(sessions, args[0], out)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for _, key := range cfg.ModelKeys() {
		m := cfg.Chat.Models[key]
		marker := " "
		if key == cfg.Chat.DefaultModel {
			marker = "*"
		}
		fmt.Printf("%s %-18s %-28s context %d\n", marker, key, m.Name, m.MaxTokens)
	}
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("connecting to Qdrant: %w", err)
	}
	defer store.Close()

	sessions := session.NewRepository(cfg.SessionFile)
	server := mcpserver.NewServer(&mcpserver.Config{
		Retriever: retriever.New(store, slog.Default()),
		Ingester:  buildPipeline(store),
		Sessions:  sessions,
		Documents: store,
	})

	if !httpMode {
		return server.Run(ctx)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(store))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	addr := "0.0.0.0:" + port
	slog.Info("serving MCP over HTTP", "addr", addr)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
