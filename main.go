package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/assistant"
	"github.com/mrsingh-rishi/accord/config"
	"github.com/mrsingh-rishi/accord/contract"
	"github.com/mrsingh-rishi/accord/llm"
	"github.com/mrsingh-rishi/accord/notify"
	"github.com/mrsingh-rishi/accord/rag"
	"github.com/mrsingh-rishi/accord/server"
	"github.com/mrsingh-rishi/accord/storage"
	"github.com/mrsingh-rishi/accord/stt"
)

const usage = `usage: accord [-config accord.toml] [serve|ingest]

  serve   run the HTTP API (default)
  ingest  load the knowledge base folder into the vector store`

func main() {
	configPath := flag.String("config", "accord.toml", "path to an optional TOML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("❌ %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := "serve"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}
	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "ingest":
		err = ingest(ctx, cfg, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("❌ %v", err)
	}
}

// languageModel returns the configured generator and streamer plus the URL
// quoted in "model unreachable" messages.
func languageModel(cfg config.LLMConfig, logger *log.Logger) (llm.Generator, llm.Streamer, string, error) {
	if cfg.Backend == "openai" {
		c, err := llm.NewOpenAIClient(cfg.URL, cfg.APIKey, "", cfg.Model, logger)
		if err != nil {
			return nil, nil, "", err
		}
		return c, c, c.Endpoint(), nil
	}
	c, err := llm.NewOllamaClient(cfg.URL, cfg.Model, logger)
	if err != nil {
		return nil, nil, "", err
	}
	return c, c, c.Endpoint(), nil
}

func openStore(ctx context.Context, cfg config.RAGConfig, logger *log.Logger) (rag.Store, error) {
	emb, err := rag.NewOpenAIEmbedder(cfg.EmbeddingURL, "", cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	return rag.New(ctx, cfg, emb, logger)
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	gen, streamer, modelURL, err := languageModel(cfg.LLM, logger)
	if err != nil {
		return errors.Wrap(err, "language model")
	}
	asst, err := assistant.New(gen, modelURL, cfg.LLM.AskTimeout, cfg.LLM.AnalyzeTimeout, logger)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.RAG, logger)
	if err != nil {
		return errors.Wrap(err, "vector store")
	}
	defer store.Close()

	drafter, err := contract.NewDrafter(gen, store, cfg.RAG.TopK, cfg.LLM.ContractTimeout, logger)
	if err != nil {
		return err
	}
	files, err := storage.NewFiles(cfg.Storage.AudioDir, cfg.Storage.ContractsDir)
	if err != nil {
		return err
	}

	transcripts := stt.Load(ctx, cfg.STT, logger)
	defer transcripts.Close()

	deps := server.Dependencies{
		Assistant:   asst,
		Streamer:    streamer,
		Transcripts: transcripts,
		Drafter:     drafter,
		Files:       files,
		StoreName:   cfg.RAG.Store,
		Logger:      logger,
	}
	if cfg.Twilio.Enabled() {
		n, err := notify.NewTwilioNotifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
		if err != nil {
			return err
		}
		deps.Notifier = n
	} else {
		logger.Println("Twilio not configured, contract SMS notices disabled")
	}

	app := server.New(cfg.Server, deps)

	errc := make(chan error, 1)
	go func() {
		logger.Printf("🚀 Listening on %s", cfg.Server.Addr)
		errc <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func ingest(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	store, err := openStore(ctx, cfg.RAG, logger)
	if err != nil {
		return errors.Wrap(err, "vector store")
	}
	defer store.Close()

	splitter, err := rag.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}
	in, err := rag.NewIngester(store, splitter, logger)
	if err != nil {
		return err
	}
	n, err := in.Ingest(ctx, cfg.Storage.KnowledgeBaseDir)
	if err != nil {
		return err
	}
	logger.Printf("✅ Ingested %d chunks from %s", n, cfg.Storage.KnowledgeBaseDir)
	return nil
}
