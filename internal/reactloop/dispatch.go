package reactloop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forgehq/sidecar/pkg/models"
)

// ToolDispatcher executes a tool call against its registered capability
// endpoint and returns the raw result the verifier pipeline inspects.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, spec models.ToolSpec, args map[string]interface{}) (map[string]interface{}, error)
}

// HTTPDispatcher dispatches tool calls over HTTP to each tool's
// `mcpRouting.{endpoint,method}` (§3 Tool data model). Every registered
// tool is a capability endpoint; there is no in-process tool execution path.
type HTTPDispatcher struct {
	Client *http.Client
}

// NewHTTPDispatcher builds a dispatcher with a bounded per-call timeout.
func NewHTTPDispatcher(timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDispatcher{Client: &http.Client{Timeout: timeout}}
}

// Dispatch POSTs (or uses spec.MCPRouting.Method) args as a JSON body to the
// tool's endpoint and decodes the JSON response as the result.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, spec models.ToolSpec, args map[string]interface{}) (map[string]interface{}, error) {
	if spec.MCPRouting == nil || spec.MCPRouting.Endpoint == "" {
		return nil, fmt.Errorf("tool %q has no mcpRouting endpoint", spec.Name)
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode tool args: %w", err)
	}

	method := strings.ToUpper(spec.MCPRouting.Method)
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.MCPRouting.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tool %q: %w", spec.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tool response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tool %q returned status %d: %s", spec.Name, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]interface{}{}, nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tool response: %w", err)
	}
	return result, nil
}
