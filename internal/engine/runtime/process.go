package runtime

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const stderrTail = 4096

type spawnConfig struct {
	bin          string
	args         []string
	host         string
	readyTimeout time.Duration
	client       *http.Client
	log          zerolog.Logger
}

// process is a spawned runtime child.
type process struct {
	cmd     *exec.Cmd
	baseURL string
	exited  chan error
	done    chan struct{}
	log     zerolog.Logger

	stopOnce sync.Once
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if n := t.buf.Len(); n > stderrTail {
		t.buf.Next(n - stderrTail)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

func spawn(ctx context.Context, cfg spawnConfig) (*process, error) {
	port, err := pickFreePort(cfg.host)
	if err != nil {
		return nil, err
	}
	baseURL := "http://" + net.JoinHostPort(cfg.host, strconv.Itoa(port))
	args := append([]string{}, cfg.args...)
	args = append(args, "--host", cfg.host, "--port", strconv.Itoa(port))

	cmd := exec.Command(cfg.bin, args...)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start runtime: %w", err)
	}
	p := &process{cmd: cmd, baseURL: baseURL, exited: make(chan error, 1), done: make(chan struct{}), log: cfg.log}
	pid := cmd.Process.Pid
	cfg.log.Info().Int("pid", pid).Str("url", baseURL).Msg("runtime_spawn")
	go func() {
		p.exited <- cmd.Wait()
		close(p.done)
	}()

	if err := waitHealthy(ctx, cfg.client, baseURL, cfg.readyTimeout, p.exited); err != nil {
		cfg.log.Warn().Int("pid", pid).Err(err).Msg("runtime_not_ready")
		p.Stop()
		if tail := stderr.String(); tail != "" {
			return nil, fmt.Errorf("%w; stderr tail: %s", err, tail)
		}
		return nil, err
	}
	cfg.log.Info().Int("pid", pid).Msg("runtime_ready")
	return p, nil
}

// Stop terminates the child with SIGTERM, then kills it after two seconds.
func (p *process) Stop() {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.done:
		case <-time.After(2 * time.Second):
			_ = p.cmd.Process.Kill()
			<-p.done
		}
		p.log.Info().Int("pid", p.cmd.Process.Pid).Msg("runtime_stop")
	})
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
