package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"bento/pkg/logging"
)

// ErrProcessExited is recorded when a running engine ends without being asked
// to stop.
var ErrProcessExited = errors.New("engine process exited unexpectedly")

const defaultPollInterval = 250 * time.Millisecond

// ProcessConfig describes how to run one engine as a child process.
type ProcessConfig struct {
	Name      string
	DependsOn []string
	Command   []string
	Env       map[string]string
	Dir       string

	ReadyHost    string
	ReadyPort    int
	ReadyTimeout time.Duration
	StopTimeout  time.Duration
	PollInterval time.Duration
}

// ProcessService runs an engine in its own process group and reports it
// ready once its ready port accepts connections.
type ProcessService struct {
	*BaseService

	cfg ProcessConfig

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	exitErr  error
	stopping bool
}

// NewProcessService returns an unstarted service for cfg.
func NewProcessService(cfg ProcessConfig) *ProcessService {
	if cfg.ReadyHost == "" {
		cfg.ReadyHost = "localhost"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &ProcessService{
		BaseService: NewBaseService(cfg.Name, cfg.DependsOn),
		cfg:         cfg,
	}
}

// PID returns the engine's process id, or 0 when it is not running.
func (s *ProcessService) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Done is closed when the engine process has exited.
func (s *ProcessService) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Start launches the engine and waits for its ready port.
func (s *ProcessService) Start(ctx context.Context) error {
	if s.GetState() == StateRunning {
		return nil
	}
	if len(s.cfg.Command) == 0 {
		err := fmt.Errorf("no command configured for %s", s.cfg.Name)
		s.UpdateState(StateFailed, err)
		return err
	}

	s.UpdateState(StateStarting, nil)

	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(os.Environ(), envList(s.cfg.Env)...)
	cmd.Dir = s.cfg.Dir
	cmd.Stdout = &lineLogger{service: s.cfg.Name, stream: "stdout"}
	cmd.Stderr = &lineLogger{service: s.cfg.Name, stream: "stderr"}
	// Grandchildren holding the output pipes must not keep Wait from returning.
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		err = fmt.Errorf("failed to start %s (%v): %w", s.cfg.Name, s.cfg.Command, err)
		s.UpdateState(StateFailed, err)
		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.done = done
	s.exitErr = nil
	s.stopping = false
	s.mu.Unlock()

	pid := cmd.Process.Pid
	logging.Info("Engine", "Started %s (pid %d): %v", s.cfg.Name, pid, s.cfg.Command)

	go s.wait(cmd, done)

	readyCtx := ctx
	if s.cfg.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		readyCtx, cancel = context.WithTimeout(ctx, s.cfg.ReadyTimeout)
		defer cancel()
	}

	address := net.JoinHostPort(s.cfg.ReadyHost, strconv.Itoa(s.cfg.ReadyPort))
	if err := WaitForPort(readyCtx, address, s.cfg.PollInterval, done); err != nil {
		if errors.Is(err, ErrExitedBeforeReady) {
			if exitErr := s.exitError(); exitErr != nil {
				err = fmt.Errorf("%w: %v", err, exitErr)
			}
		} else {
			s.terminate(pid, done)
		}
		err = fmt.Errorf("%s did not become ready on %s: %w", s.cfg.Name, address, err)
		s.UpdateState(StateFailed, err)
		return err
	}

	s.UpdateState(StateRunning, nil)
	logging.Info("Engine", "%s is ready on %s", s.cfg.Name, address)
	return nil
}

// CheckHealth dials the engine's ready port.
func (s *ProcessService) CheckHealth(ctx context.Context) error {
	if s.GetState() != StateRunning {
		return fmt.Errorf("%s is %s", s.cfg.Name, s.GetState())
	}
	return CheckPort(ctx, net.JoinHostPort(s.cfg.ReadyHost, strconv.Itoa(s.cfg.ReadyPort)))
}

func (s *ProcessService) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	s.mu.Lock()
	s.exitErr = err
	stopping := s.stopping
	s.mu.Unlock()
	close(done)

	if stopping {
		return
	}
	if s.GetState() == StateRunning {
		exitErr := ErrProcessExited
		if err != nil {
			exitErr = fmt.Errorf("%w: %v", ErrProcessExited, err)
		}
		logging.Error("Engine", exitErr, "%s exited while running", s.cfg.Name)
		s.UpdateState(StateFailed, exitErr)
	}
}

func (s *ProcessService) exitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// Stop sends SIGTERM to the engine's process group and escalates to SIGKILL
// after StopTimeout or when ctx ends.
func (s *ProcessService) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.stopping = true
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		s.UpdateState(StateStopped, nil)
		return nil
	}

	select {
	case <-done:
		s.UpdateState(StateStopped, nil)
		return nil
	default:
	}

	s.UpdateState(StateStopping, nil)
	pid := cmd.Process.Pid
	logging.Info("Engine", "Stopping %s (pid %d)", s.cfg.Name, pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		logging.Warn("Engine", "SIGTERM to %s failed: %v", s.cfg.Name, err)
	}

	var grace <-chan time.Time
	if s.cfg.StopTimeout > 0 {
		timer := time.NewTimer(s.cfg.StopTimeout)
		defer timer.Stop()
		grace = timer.C
	}

	select {
	case <-done:
	case <-grace:
		logging.Warn("Engine", "%s did not exit within %s, killing it", s.cfg.Name, s.cfg.StopTimeout)
		s.kill(pid, done)
	case <-ctx.Done():
		s.kill(pid, done)
		s.UpdateState(StateStopped, ctx.Err())
		return fmt.Errorf("stopping %s: %w", s.cfg.Name, ctx.Err())
	}

	s.UpdateState(StateStopped, nil)
	return nil
}

// terminate stops a process that never became ready.
func (s *ProcessService) terminate(pid int, done chan struct{}) {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	s.kill(pid, done)
}

func (s *ProcessService) kill(pid int, done chan struct{}) {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		logging.Error("Engine", err, "Failed to kill %s (pid %d)", s.cfg.Name, pid)
	}
	<-done
}

// lineLogger forwards engine output to the debug log one line at a time.
type lineLogger struct {
	service string
	stream  string
	buf     []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		logging.Debug("Engine", "[%s %s] %s", l.service, l.stream, bytes.TrimRight(l.buf[:i], "\r"))
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}
