package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ilaydakx/pos-system/internal/domain"
)

// HTTPInvoker bridges the command boundary over HTTP. Every request carries a
// correlation id so backend logs can be matched to terminal actions. Calls
// are attempted exactly once; retrying is always a user action.
type HTTPInvoker struct {
	baseURL string
	client  *http.Client
}

type invokeEnvelope struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

type invokeReply struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func NewHTTPInvoker(baseURL string, timeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTPInvoker) Invoke(ctx context.Context, command string, args any) (json.RawMessage, error) {
	envelope := invokeEnvelope{
		ID:      uuid.NewString(),
		Command: command,
	}
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%s: encode args: %w", command, err)
		}
		envelope.Args = encoded
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%s: encode envelope: %w", command, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", envelope.ID)

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("gateway %s id=%s transport error: %v", command, envelope.ID, err)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrGatewayDown, command, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read reply: %v", domain.ErrGatewayDown, command, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("gateway %s id=%s status=%d", command, envelope.ID, resp.StatusCode)
		return nil, fmt.Errorf("%w: %s: status %d", domain.ErrGatewayDown, command, resp.StatusCode)
	}

	var reply invokeReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return nil, fmt.Errorf("%w: %s: decode reply: %v", domain.ErrGatewayDown, command, err)
	}
	if !reply.OK {
		// Backend rejections are surfaced verbatim.
		return nil, fmt.Errorf("%s", reply.Error)
	}
	return reply.Result, nil
}
