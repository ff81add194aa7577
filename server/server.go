// Package server exposes the assistant, chat analysis and contract
// generation over HTTP.
package server

import (
	"context"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mrsingh-rishi/accord/assistant"
	"github.com/mrsingh-rishi/accord/config"
	"github.com/mrsingh-rishi/accord/llm"
	"github.com/mrsingh-rishi/accord/notify"
	"github.com/mrsingh-rishi/accord/storage"
)

// Transcripts turns an uploaded recording into speaker-labelled dialogue.
type Transcripts interface {
	Dialogue(ctx context.Context, audioPath string) (string, error)
	Ready() (transcription, diarization bool)
}

// ContractDrafter writes contract text for a conversation.
type ContractDrafter interface {
	Draft(ctx context.Context, conversation string) (string, error)
}

// Dependencies are built once at startup and shared by all handlers.
type Dependencies struct {
	Assistant *assistant.Assistant
	// Streamer backs /ws/ask; nil disables the route.
	Streamer    llm.Streamer
	Transcripts Transcripts
	Drafter     ContractDrafter
	Files       *storage.Files
	// Notifier is optional.
	Notifier  notify.Notifier
	StoreName string
	Logger    *log.Logger
}

// New builds the fiber app with middleware and routes.
func New(cfg config.ServerConfig, deps Dependencies) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 100
	}
	app := fiber.New(fiber.Config{
		AppName:               "accord",
		BodyLimit:             bodyLimit * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: deps.Logger.Writer()}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
	}))
	RegisterRoutes(app, deps)
	return app
}

// RegisterRoutes mounts every endpoint on app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	h := &handlers{deps: deps, log: deps.Logger}
	if h.log == nil {
		h.log = log.Default()
	}

	app.Get("/healthz", h.health)
	app.Post("/ask", h.ask)
	app.Post("/analyze", h.analyze)
	app.Post("/generate_contract/", h.generateContract)
	app.Get("/download_contract/:filename", h.downloadContract)
	if deps.Files != nil {
		app.Static("/contracts", deps.Files.ContractsDir)
	}
	if deps.Streamer != nil {
		app.Use("/ws", requireUpgrade)
		app.Get("/ws/ask", h.wsAsk())
	}
}
