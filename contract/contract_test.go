package contract

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/llm"
	"github.com/mrsingh-rishi/accord/mocks"
	"github.com/mrsingh-rishi/accord/rag"
)

type fakeRetriever struct {
	hits  []rag.Hit
	err   error
	query string
	k     int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, k int) ([]rag.Hit, error) {
	f.query, f.k = query, k
	return f.hits, f.err
}

func newDrafter(t *testing.T, gen llm.Generator, r rag.Retriever) *Drafter {
	t.Helper()
	d, err := NewDrafter(gen, r, 5, time.Minute, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	d.now = func() time.Time { return time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC) }
	return d
}

func TestParseDetails(t *testing.T) {
	raw := "Here is the JSON:\n```json\n" + `{
		"client_name": "Acme Corp",
		"consultant_name": "Jane Doe",
		"project_name": null,
		"total_payment_not_to_exceed": "$50,000",
		"termination_notice_days": 14,
		"scope_of_services": "  "
	}` + "\n```"
	d, err := ParseDetails(raw)
	if err != nil {
		t.Fatal(err)
	}
	if d.ClientName != "Acme Corp" || d.ConsultantName != "Jane Doe" {
		t.Errorf("names not parsed: %+v", d)
	}
	if d.ProjectName != "[Project Name Not Found]" || d.ScopeOfServices != "[Scope of Services Not Found]" {
		t.Errorf("null and blank fields must keep defaults: %+v", d)
	}
	if d.TotalPaymentNotToExceed == nil || *d.TotalPaymentNotToExceed != 50000 {
		t.Errorf("payment not parsed: %v", d.TotalPaymentNotToExceed)
	}
	if d.TerminationNoticeDays != 14 {
		t.Errorf("notice days not parsed: %d", d.TerminationNoticeDays)
	}
}

func TestParseDetailsDefaults(t *testing.T) {
	d, err := ParseDetails(`{}`)
	if err != nil {
		t.Fatal(err)
	}
	if d != DefaultDetails() {
		t.Fatalf("expected defaults, got %+v", d)
	}
	if _, err := ParseDetails("I could not find any details."); err == nil {
		t.Fatal("reply without JSON must fail")
	}
}

func TestMoney(t *testing.T) {
	for in, want := range map[float64]string{1234567: "$1,234,567", 999: "$999", 1500.5: "$1,500.50"} {
		v := in
		if got := money(&v); got != want {
			t.Errorf("money(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestRender(t *testing.T) {
	d := newDrafter(t, mocks.NewMockGenerator(gomock.NewController(t)), nil)
	details := DefaultDetails()
	details.ClientName = "Acme Corp"
	pay := 25000.0
	details.TotalPaymentNotToExceed = &pay

	text, err := d.Render(details)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"March 4, 2025", "Acme Corp (the \"Client\")", "[Consultant Name Not Found]", "shall not exceed $25,000.", "30 days' written notice"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}

	details.TotalPaymentNotToExceed = nil
	text, _ = d.Render(details)
	if strings.Contains(text, "shall not exceed") {
		t.Error("payment cap must be omitted when unknown")
	}
}

func TestDraft(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req llm.Request) (string, error) {
		if req.Format != "json" {
			t.Errorf("expected json format, got %q", req.Format)
		}
		if strings.Contains(req.Prompt, "**") {
			t.Error("markdown emphasis must be stripped from the transcript")
		}
		if !strings.Contains(req.Prompt, "LEGAL CONTEXT:\nclause one\n\nclause two") {
			t.Errorf("legal context missing:\n%s", req.Prompt)
		}
		return `{"client_name":"Acme Corp","consultant_name":"Jane Doe","project_name":"Website Redesign"}`, nil
	})
	r := &fakeRetriever{hits: []rag.Hit{{Chunk: rag.Chunk{Text: "clause one"}}, {Chunk: rag.Chunk{Text: "clause two"}}}}

	text, err := newDrafter(t, gen, r).Draft(context.Background(), "**SPEAKER 00:** I need a website.\n\n**SPEAKER 01:** I can build it.")
	if err != nil {
		t.Fatal(err)
	}
	if r.k != 5 || strings.Contains(r.query, "**") {
		t.Errorf("unexpected retrieval query %q k=%d", r.query, r.k)
	}
	if !strings.Contains(text, "Website Redesign") || !strings.Contains(text, "Jane Doe") {
		t.Errorf("unexpected contract:\n%s", text)
	}
}

func TestDraftWithoutLegalContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(`{}`, nil)
	r := &fakeRetriever{err: errors.New("store down")}

	if _, err := newDrafter(t, gen, r).Draft(context.Background(), "hello"); err != nil {
		t.Fatalf("retrieval failure should not fail the draft: %v", err)
	}
}

func TestDraftModelFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.Wrap(llm.ErrUnavailable, "refused"))

	_, err := newDrafter(t, gen, nil).Draft(context.Background(), "hello")
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected model error, got %v", err)
	}
}
