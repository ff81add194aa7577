package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

var (
	// ErrTimeout means the model did not answer before the deadline.
	ErrTimeout = errors.New("llm: request timed out")
	// ErrUnavailable means the model server could not be reached or refused the request.
	ErrUnavailable = errors.New("llm: model server unavailable")
	// ErrMalformed means the reply body could not be decoded.
	ErrMalformed = errors.New("llm: malformed reply")
	// ErrNoResponse means the reply decoded but carried no response text.
	ErrNoResponse = errors.New("llm: reply has no response field")
)

// classify maps transport failures onto the package sentinels.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return errors.Wrapf(ErrUnavailable, "status %d: %s", statusErr.StatusCode, statusErr.ErrorMessage)
	}
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, bufio.ErrTooLong) {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return errors.Wrapf(ErrUnavailable, "status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errors.Wrapf(ErrUnavailable, "status %d: %v", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return errors.Wrap(ErrUnavailable, err.Error())
}
