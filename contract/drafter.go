// Package contract drafts a consulting agreement from a conversation
// transcript using retrieved legal context and the language model.
package contract

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/llm"
	"github.com/mrsingh-rishi/accord/prompt"
	"github.com/mrsingh-rishi/accord/rag"
)

//go:embed templates/contract_template.txt
var contractTemplate string

// Drafter turns a transcript into contract text.
type Drafter struct {
	Generator llm.Generator
	// Retriever may be nil, in which case no legal context is used.
	Retriever rag.Retriever
	TopK      int
	Timeout   time.Duration
	Logger    *log.Logger

	tmpl *template.Template
	now  func() time.Time
}

func NewDrafter(gen llm.Generator, retriever rag.Retriever, topK int, timeout time.Duration, logger *log.Logger) (*Drafter, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = log.Default()
	}
	d := &Drafter{
		Generator: gen,
		Retriever: retriever,
		TopK:      topK,
		Timeout:   timeout,
		Logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	tmpl, err := template.New("contract").Funcs(template.FuncMap{
		"now":   func() time.Time { return d.now() },
		"money": money,
	}).Parse(contractTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "parse contract template")
	}
	d.tmpl = tmpl
	return d, nil
}

// Extract asks the model for the contract details discussed in conversation.
func (d *Drafter) Extract(ctx context.Context, conversation string) (Details, error) {
	cleaned := strings.ReplaceAll(conversation, "**", "")

	legal := ""
	if d.Retriever != nil {
		var err error
		legal, err = rag.Context(ctx, d.Retriever, cleaned, d.TopK)
		if err != nil {
			d.Logger.Printf("⚠️ Legal context unavailable, drafting without it: %v", err)
			legal = ""
		}
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	reply, err := d.Generator.Generate(ctx, llm.Request{
		Prompt: prompt.ContractExtraction(legal, cleaned, FormatInstructions()),
		Format: "json",
	})
	if err != nil {
		return DefaultDetails(), errors.Wrap(err, "extract contract details")
	}
	return ParseDetails(reply)
}

// Render fills the contract template.
func (d *Drafter) Render(details Details) (string, error) {
	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, details); err != nil {
		return "", errors.Wrap(err, "render contract")
	}
	return strings.TrimSpace(buf.String()), nil
}

// Draft extracts the details from conversation and renders the contract.
func (d *Drafter) Draft(ctx context.Context, conversation string) (string, error) {
	details, err := d.Extract(ctx, conversation)
	if err != nil {
		return "", err
	}
	d.Logger.Printf("Extracted contract details: client=%q consultant=%q project=%q", details.ClientName, details.ConsultantName, details.ProjectName)
	return d.Render(details)
}

// money formats an amount as US dollars with thousands separators.
func money(v *float64) string {
	if v == nil {
		return ""
	}
	cents := int64(math.Round(*v * 100))
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac := cents % 100; frac != 0 {
		return fmt.Sprintf("$%s.%02d", b.String(), frac)
	}
	return "$" + b.String()
}
