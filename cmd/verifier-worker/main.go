// Command verifier-worker is the sandboxed child process a
// verifier.WorkerPool spawns one of per configured pool slot. It speaks a
// length-prefixed JSON protocol over stdin/stdout: read one request, load
// (or reuse) the named verifier plugin, invoke it, write one response, and
// loop until stdin closes.
//
// It is never run directly by an operator — cmd/sidecar launches it via
// verification.workerCommand (or SIDECAR_VERIFIER_WORKER_BIN) and talks to
// it exclusively through that pipe.
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/forgehq/sidecar/pkg/verifiersdk"
)

// workerRequest/workerResponse mirror internal/verifier/pool.go's unexported
// wire types exactly; that package owns the protocol, this binary is just
// the other end of the pipe.
type workerRequest struct {
	ID           string                 `json:"id"`
	VerifierPath string                 `json:"verifierPath"`
	ExportName   string                 `json:"exportName"`
	ToolName     string                 `json:"toolName"`
	Args         map[string]interface{} `json:"args,omitempty"`
	Result       map[string]interface{} `json:"result,omitempty"`
}

type workerResponse struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cache := &pluginCache{entries: make(map[string]verifiersdk.Verifier)}
	in := bufio.NewReader(os.Stdin)
	out := os.Stdout

	for {
		frame, err := readFrame(in)
		if err != nil {
			if err != io.EOF {
				logger.Error("read request frame", "error", err)
			}
			return
		}

		var req workerRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			logger.Error("decode request", "error", err)
			continue
		}

		resp := handle(cache, req, logger)
		payload, err := json.Marshal(resp)
		if err != nil {
			logger.Error("encode response", "error", err)
			continue
		}
		if err := writeFrame(out, payload); err != nil {
			logger.Error("write response frame", "error", err)
			return
		}
	}
}

// handle loads req.VerifierPath/ExportName and invokes it, recovering from
// a plugin panic so one bad verifier doesn't take the worker process down
// mid-pool-lifetime.
func handle(cache *pluginCache, req workerRequest, logger *slog.Logger) (resp workerResponse) {
	resp.ID = req.ID
	resp.Outcome = "warn"

	defer func() {
		if r := recover(); r != nil {
			logger.Error("verifier plugin panicked", "tool", req.ToolName, "panic", r)
			resp.Outcome = "warn"
			resp.Message = fmt.Sprintf("verifier panicked: %v", r)
		}
	}()

	v, err := cache.get(req.VerifierPath, req.ExportName)
	if err != nil {
		resp.Message = err.Error()
		return resp
	}

	outcome, message := v.Verify(req.ToolName, req.Args, req.Result)
	switch outcome {
	case "pass", "warn", "block":
		resp.Outcome = outcome
	default:
		resp.Outcome = "warn"
		message = fmt.Sprintf("verifier returned unknown outcome %q: %s", outcome, message)
	}
	resp.Message = message
	return resp
}

// pluginCache loads each distinct (path, exportName) pair once. plugin.Open
// is itself idempotent per path within a process, but caching the resolved
// verifiersdk.Verifier avoids a Lookup and type assertion on every call.
type pluginCache struct {
	mu      sync.Mutex
	entries map[string]verifiersdk.Verifier
}

func (c *pluginCache) get(path, exportName string) (verifiersdk.Verifier, error) {
	key := path + "#" + exportName

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	v, err := loadVerifier(path, exportName)
	if err != nil {
		return nil, err
	}
	c.entries[key] = v
	return v, nil
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
