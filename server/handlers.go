package server

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/assistant"
	"github.com/mrsingh-rishi/accord/document"
	"github.com/mrsingh-rishi/accord/storage"
)

type handlers struct {
	deps Dependencies
	log  *log.Logger
}

type analyzeRequest struct {
	ChatData   string `json:"chat_data"`
	UserPrompt string `json:"user_prompt"`
}

type contractResponse struct {
	Message      string `json:"message"`
	Transcript   string `json:"transcript"`
	ContractText string `json:"contract_text"`
	PDFURL       string `json:"pdf_url"`
	PDFFilename  string `json:"pdf_filename"`
}

func (h *handlers) health(c *fiber.Ctx) error {
	var transcription, diarization bool
	if h.deps.Transcripts != nil {
		transcription, diarization = h.deps.Transcripts.Ready()
	}
	return c.JSON(fiber.Map{
		"status":        "ok",
		"transcription": transcription,
		"diarization":   diarization,
		"store":         h.deps.StoreName,
	})
}

// askInput validates the /ask body shared by HTTP and websocket clients.
// Analysis mode reads only the history, so it needs no question; elsewhere
// a blank question is rejected like a missing one.
func askInput(in assistant.AskInput) error {
	if !in.AnalysisMode && strings.TrimSpace(in.Question) == "" {
		return errors.New("`question` field is required")
	}
	return nil
}

func (h *handlers) ask(c *fiber.Ctx) error {
	var in assistant.AskInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if err := askInput(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	answer := h.deps.Assistant.Ask(c.UserContext(), in)
	return c.JSON(fiber.Map{"answer": answer})
}

func (h *handlers) analyze(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": assistant.ErrMissingInput.Error()})
	}
	answer, err := h.deps.Assistant.Analyze(c.UserContext(), req.ChatData, req.UserPrompt)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, assistant.ErrMissingInput) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": h.deps.Assistant.AnalyzeErrorMessage(err)})
	}
	return c.JSON(fiber.Map{"response": answer})
}

func (h *handlers) generateContract(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "`file` upload is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return h.contractError(c, errors.Wrap(err, "open upload"))
	}
	defer src.Close()

	files := h.deps.Files
	ts := files.Stamp()
	audioPath, err := files.SaveAudio(ts, fh.Filename, src)
	if err != nil {
		return h.contractError(c, err)
	}
	h.log.Printf("Saved upload to %s", audioPath)

	ctx := c.UserContext()
	transcript, err := h.deps.Transcripts.Dialogue(ctx, audioPath)
	if err != nil {
		return h.contractError(c, err)
	}
	contractText, err := h.deps.Drafter.Draft(ctx, transcript)
	if err != nil {
		return h.contractError(c, err)
	}

	pdfName, pdfPath := files.ContractFile(ts)
	if err := document.RenderPDF(contractText, pdfPath); err != nil {
		return h.contractError(c, err)
	}
	h.log.Printf("PDF saved at %s", pdfPath)

	pdfURL := c.BaseURL() + "/contracts/" + pdfName
	if to := c.FormValue("notify_to"); to != "" && h.deps.Notifier != nil {
		if err := h.deps.Notifier.ContractReady(ctx, to, pdfURL); err != nil {
			h.log.Printf("❌ Contract notice to %s failed: %v", to, err)
		}
	}

	return c.JSON(contractResponse{
		Message:      "Contract generated successfully",
		Transcript:   transcript,
		ContractText: contractText,
		PDFURL:       pdfURL,
		PDFFilename:  pdfName,
	})
}

func (h *handlers) contractError(c *fiber.Ctx, err error) error {
	h.log.Printf("❌ Error in contract generation: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
}

func (h *handlers) downloadContract(c *fiber.Ctx) error {
	name := c.Params("filename")
	path, err := h.deps.Files.Lookup(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "File not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	c.Type("pdf")
	return c.Download(path, name)
}
