// Package notify sends a text message when a contract is ready.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pkg/errors"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier tells someone where to download a generated contract.
type Notifier interface {
	ContractReady(ctx context.Context, to, pdfURL string) error
}

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioNotifier sends SMS through the Twilio REST API.
type TwilioNotifier struct {
	api        messageCreator
	fromNumber string
	logger     *log.Logger
}

func NewTwilioNotifier(accountSid, authToken, fromNumber string, logger *log.Logger) (*TwilioNotifier, error) {
	if accountSid == "" || authToken == "" || fromNumber == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER must be set")
	}
	if logger == nil {
		logger = log.Default()
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
	return &TwilioNotifier{api: client.Api, fromNumber: fromNumber, logger: logger}, nil
}

func (n *TwilioNotifier) ContractReady(ctx context.Context, to, pdfURL string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("recipient number is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.fromNumber)
	params.SetBody(fmt.Sprintf("Your contract is ready: %s", pdfURL))

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return errors.Wrap(err, "twilio send message")
	}
	if resp != nil && resp.Sid != nil {
		n.logger.Printf("✅ Contract notice sent to %s (sid %s)", to, *resp.Sid)
	}
	return nil
}
