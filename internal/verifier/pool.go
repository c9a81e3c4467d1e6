package verifier

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/forgehq/sidecar/pkg/models"
)

// ErrPoolClosed is returned by Submit once the pool has been shut down.
var ErrPoolClosed = errors.New("verifier worker pool closed")

// WorkerPoolConfig configures the fixed pool of custom-verifier worker
// processes (§4.6).
type WorkerPoolConfig struct {
	// WorkerCommand launches one worker process (cmd/verifier-worker).
	WorkerCommand []string
	PoolSize      int
	CustomTimeout time.Duration
	MaxQueueDepth int
}

func (c WorkerPoolConfig) normalized() WorkerPoolConfig {
	if c.PoolSize <= 0 {
		c.PoolSize = 1
	}
	if c.CustomTimeout <= 0 {
		c.CustomTimeout = 5 * time.Second
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = c.PoolSize * 4
	}
	return c
}

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

// worker wraps one child process communicating length-prefixed JSON over
// its stdin/stdout pipes.
type worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func (w *worker) kill() {
	if w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
	w.stdin.Close()
	w.cmd.Wait()
}

func (w *worker) call(req workerRequest) (workerResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return workerResponse{}, err
	}
	if err := writeFrame(w.stdin, payload); err != nil {
		return workerResponse{}, err
	}

	type outcome struct {
		resp workerResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		frame, err := readFrame(w.stdout)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		var resp workerResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{resp: resp}
	}()

	res := <-done
	return res.resp, res.err
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

// WorkerPool is the process-wide, fixed-size pool of custom-verifier
// workers. Its idle queue is the serialization point: submissions queue
// FIFO and workers are handed out in order of becoming idle.
type WorkerPool struct {
	cfg     WorkerPoolConfig
	idle    chan *worker
	closing chan struct{}
	queued  int32
	closed  atomic.Bool
	mu      sync.Mutex
}

// NewWorkerPool spawns cfg.PoolSize worker processes.
func NewWorkerPool(cfg WorkerPoolConfig) (*WorkerPool, error) {
	cfg = cfg.normalized()
	p := &WorkerPool{cfg: cfg, idle: make(chan *worker, cfg.PoolSize), closing: make(chan struct{})}
	for i := 0; i < cfg.PoolSize; i++ {
		w, err := p.spawn()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.idle <- w
	}
	return p, nil
}

func (p *WorkerPool) spawn() (*worker, error) {
	if len(p.cfg.WorkerCommand) == 0 {
		return nil, errors.New("verifier: no worker command configured")
	}
	cmd := exec.Command(p.cfg.WorkerCommand[0], p.cfg.WorkerCommand[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &worker{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// replace kills w and, unless the pool is shutting down, spawns and enqueues
// its successor.
func (p *WorkerPool) replace(w *worker) {
	w.kill()
	if p.closed.Load() {
		return
	}
	nw, err := p.spawn()
	if err != nil {
		return
	}
	p.idle <- nw
}

// Submit dispatches req to the first idle worker, or queues it. Submissions
// beyond MaxQueueDepth, and any failure, timeout, or crash, resolve to the
// role's degraded outcome instead of propagating an error — the pipeline
// always receives a verdict.
func (p *WorkerPool) Submit(ctx context.Context, role Role, req workerRequest) Result {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if p.closed.Load() {
		return Result{Outcome: DegradeOutcome(role), Message: "pool closed"}
	}
	if atomic.LoadInt32(&p.queued) >= int32(p.cfg.MaxQueueDepth) {
		return Result{Outcome: DegradeOutcome(role), Message: "queue full"}
	}

	atomic.AddInt32(&p.queued, 1)
	defer atomic.AddInt32(&p.queued, -1)

	var w *worker
	select {
	case w = <-p.idle:
	case <-ctx.Done():
		return Result{Outcome: DegradeOutcome(role), Message: "cancelled"}
	case <-p.closing:
		return Result{Outcome: DegradeOutcome(role), Message: "pool closed"}
	}

	type callOutcome struct {
		resp workerResponse
		err  error
	}
	done := make(chan callOutcome, 1)
	go func() {
		resp, err := w.call(req)
		done <- callOutcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			p.replace(w)
			return Result{Outcome: DegradeOutcome(role), Message: "crashed"}
		}
		p.idle <- w
		outcome := models.VerifierOutcome(out.resp.Outcome)
		if outcome != models.OutcomePass && outcome != models.OutcomeWarn && outcome != models.OutcomeBlock {
			outcome = models.OutcomeWarn
		}
		return Result{Outcome: outcome, Message: out.resp.Message}
	case <-time.After(p.cfg.CustomTimeout):
		p.replace(w)
		return Result{Outcome: DegradeOutcome(role), Message: "timed out"}
	case <-ctx.Done():
		p.replace(w)
		return Result{Outcome: DegradeOutcome(role), Message: "cancelled"}
	}
}

// Close shuts down every idle worker and wakes any Submit call still
// waiting for one, so a queued-but-never-dispatched submission resolves to
// its degraded outcome instead of blocking forever (§4.6 shutdown).
// Submissions already dispatched to a worker resolve via their own
// timeout/cancellation path.
func (p *WorkerPool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(p.closing)
	for {
		select {
		case w := <-p.idle:
			w.kill()
		default:
			return nil
		}
	}
}
