package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/logging"
)

// Traceroute statuses beyond OK/EXIT_n.
const (
	TraceStatusOK      = "OK"
	TraceStatusMissing = "NO_TRACEROUTE"
	TraceStatusTimeout = "TIMEOUT"
	TraceStatusError   = "ERROR"
)

// TraceResult is the classified outcome of one path-trace attempt.
type TraceResult struct {
	OK        bool
	Status    string // OK, EXIT_n, NO_TRACEROUTE, TIMEOUT, ERROR
	Output    string
	ElapsedMS float64
}

// Traceroute invokes the platform path-tracing utility toward an address.
// It always soft-fails: a missing binary, a non-zero exit, or a timeout is
// classified, never propagated.
type Traceroute struct {
	MaxHops int
	HopWait time.Duration // per-hop wait passed to the utility
	Timeout time.Duration // overall bound on the process
	Logger  *zap.Logger

	// command overrides the platform invocation; used by tests.
	command []string
}

func (t *Traceroute) args(dest string) []string {
	if len(t.command) > 0 {
		return t.command
	}
	maxHops := t.MaxHops
	if maxHops == 0 {
		maxHops = 30
	}
	hopWait := t.HopWait
	if hopWait == 0 {
		hopWait = 3 * time.Second
	}
	if runtime.GOOS == "windows" {
		return []string{"tracert", "-d",
			"-h", strconv.Itoa(maxHops),
			"-w", strconv.Itoa(int(hopWait.Milliseconds())),
			dest}
	}
	// -n keeps the trace itself from issuing DNS lookups.
	return []string{"traceroute", "-n",
		"-m", strconv.Itoa(maxHops),
		"-w", strconv.Itoa(int(hopWait.Seconds())),
		dest}
}

// Run traces the path to dest and classifies the process outcome.
func (t *Traceroute) Run(ctx context.Context, dest string) TraceResult {
	timeout := t.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := t.args(dest)
	start := time.Now()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	res := TraceResult{Output: string(out), ElapsedMS: elapsed}
	switch {
	case err == nil:
		res.OK = true
		res.Status = TraceStatusOK
	case errors.Is(err, exec.ErrNotFound):
		res.Status = TraceStatusMissing
		res.Output = "traceroute/tracert command not found"
	case ctx.Err() != nil:
		res.Status = TraceStatusTimeout
		res.Output = "traceroute command timed out"
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Status = fmt.Sprintf("EXIT_%d", exitErr.ExitCode())
		} else {
			res.Status = TraceStatusError
			res.Output = fmt.Sprintf("traceroute failed: %v", err)
		}
	}

	t.Logger.Debug("traceroute",
		logging.Server(dest),
		zap.String("status", res.Status),
		logging.RTT(res.ElapsedMS))
	return res
}
