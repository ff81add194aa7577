package contract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Details are the contract terms extracted from a conversation.
type Details struct {
	ClientName              string   `json:"client_name"`
	ConsultantName          string   `json:"consultant_name"`
	ProjectName             string   `json:"project_name"`
	TotalPaymentNotToExceed *float64 `json:"total_payment_not_to_exceed"`
	TerminationNoticeDays   int      `json:"termination_notice_days"`
	ScopeOfServices         string   `json:"scope_of_services"`
}

func DefaultDetails() Details {
	return Details{
		ClientName:            "[Client Name Not Found]",
		ConsultantName:        "[Consultant Name Not Found]",
		ProjectName:           "[Project Name Not Found]",
		TerminationNoticeDays: 30,
		ScopeOfServices:       "[Scope of Services Not Found]",
	}
}

const formatInstructions = `The output should be formatted as a JSON instance that conforms to the JSON schema below.

Here is the output schema:
` + "```" + `
{"properties": {
  "client_name": {"default": "[Client Name Not Found]", "description": "Name of the Client or the party receiving services.", "type": "string"},
  "consultant_name": {"default": "[Consultant Name Not Found]", "description": "Name of the Consultant or the party providing services.", "type": "string"},
  "project_name": {"default": "[Project Name Not Found]", "description": "The name of the services or project.", "type": "string"},
  "total_payment_not_to_exceed": {"default": null, "description": "The total maximum payment amount. Should be null if not mentioned.", "type": ["number", "null"]},
  "termination_notice_days": {"default": 30, "description": "Number of days for termination notice by either party.", "type": "integer"},
  "scope_of_services": {"default": "[Scope of Services Not Found]", "description": "A detailed description of the services to be performed.", "type": "string"}
}}
` + "```"

// FormatInstructions describes the expected JSON reply to the model.
func FormatInstructions() string {
	return formatInstructions
}

// ParseDetails reads the model's JSON reply. Markdown fences and prose around
// the object are ignored; missing, null or blank fields keep their defaults.
func ParseDetails(raw string) (Details, error) {
	d := DefaultDetails()
	body, err := extractObject(raw)
	if err != nil {
		return d, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return d, errors.Wrap(err, "parse contract details")
	}

	setString(fields, "client_name", &d.ClientName)
	setString(fields, "consultant_name", &d.ConsultantName)
	setString(fields, "project_name", &d.ProjectName)
	setString(fields, "scope_of_services", &d.ScopeOfServices)
	if v, ok := number(fields["total_payment_not_to_exceed"]); ok && v > 0 {
		d.TotalPaymentNotToExceed = &v
	}
	if v, ok := number(fields["termination_notice_days"]); ok && v > 0 {
		d.TerminationNoticeDays = int(v)
	}
	return d, nil
}

func extractObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", errors.Errorf("no JSON object in model reply %q", truncate(raw, 120))
	}
	return raw[start : end+1], nil
}

func setString(fields map[string]json.RawMessage, key string, dst *string) {
	msg, ok := fields[key]
	if !ok {
		return
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return
	}
	if s = strings.TrimSpace(s); s != "" {
		*dst = s
	}
}

// number accepts JSON numbers and strings such as "$50,000".
func number(msg json.RawMessage) (float64, bool) {
	if len(msg) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(msg, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return 0, false
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	s = strings.TrimSuffix(strings.ToLower(s), "days")
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
