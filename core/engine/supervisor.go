package engine

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"PulseFM/config"
	"PulseFM/core/ipc"
	"PulseFM/logger"

	"github.com/fsnotify/fsnotify"
)

// 等待IPC套接字出现的上限
const socketWaitTimeout = 10 * time.Second

// Supervisor 引擎进程监督者：拉起外部媒体引擎、等IPC套接字就绪、
// 建立会话并在进程死亡后按策略重建。会话重建永远是这里的显式动作。
type Supervisor struct {
	cfg *config.Config

	mu      sync.Mutex
	cmd     *exec.Cmd
	session *ipc.Session
	stopped bool

	// 每次新会话建立后回调（挂接控制器、注册事件处理器）
	onSession func(*ipc.Session)
}

// NewSupervisor 创建监督者，onSession 在每次会话建立后被调用
func NewSupervisor(cfg *config.Config, onSession func(*ipc.Session)) *Supervisor {
	return &Supervisor{cfg: cfg, onSession: onSession}
}

// Start 拉起引擎并建立首个会话
func (s *Supervisor) Start() error {
	return s.spawn()
}

// Session 当前会话，可能为 nil
func (s *Supervisor) Session() *ipc.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Stop 终止引擎进程并关闭会话，不再重建
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	cmd, session := s.cmd, s.session
	s.cmd, s.session = nil, nil
	s.mu.Unlock()

	if session != nil {
		session.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// spawn 启动一次引擎进程并建立会话
func (s *Supervisor) spawn() error {
	// 残留的旧套接字会让引擎启动失败
	_ = os.Remove(s.cfg.MPVSocket)

	args := append([]string{
		"--idle",
		"--no-video",
		"--no-terminal",
		fmt.Sprintf("--input-ipc-server=%s", s.cfg.MPVSocket),
	}, s.cfg.MPVExtraArgs...)

	cmd := exec.Command(s.cfg.MPVPath, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("engine: start %s: %w", s.cfg.MPVPath, err)
	}
	logger.Info("engine process started",
		logger.String("path", s.cfg.MPVPath),
		logger.Int("pid", cmd.Process.Pid))

	if err := waitForSocket(s.cfg.MPVSocket, socketWaitTimeout); err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	session, err := ipc.Dial(s.cfg.MPVSocket, s.cfg.CommandTimeout)
	if err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("engine: dial ipc: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.session = session
	s.mu.Unlock()

	// 先挂回调再订阅退出处理，避免错过早期事件
	if s.onSession != nil {
		s.onSession(session)
	}
	session.Subscribe(func(ev ipc.Event) {
		if ev.Name == ipc.EventEngineLost {
			go s.onLost(cmd)
		}
	})

	go func() {
		// 进程自亡（崩溃、被杀）时会话读循环随套接字关闭而结束，
		// engine-lost 由会话侧合成；这里只负责收尸
		_ = cmd.Wait()
	}()
	return nil
}

// onLost 会话死亡后的重建路径
func (s *Supervisor) onLost(dead *exec.Cmd) {
	s.mu.Lock()
	if s.cmd == dead {
		s.cmd = nil
		s.session = nil
	}
	stopped := s.stopped
	s.mu.Unlock()

	if dead.Process != nil {
		_ = dead.Process.Kill()
	}

	if stopped || !s.cfg.EngineRespawn {
		logger.Warn("engine lost, respawn disabled")
		return
	}

	logger.Warn("engine lost, respawning")
	time.Sleep(time.Second)
	if err := s.spawn(); err != nil {
		logger.Error("engine respawn failed", logger.ErrorField(err))
	}
}

// waitForSocket 用fsnotify等套接字文件出现，兜底做周期stat
func waitForSocket(path string, timeout time.Duration) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("engine: watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("engine: watch socket dir: %w", err)
	}
	// 加watch前的窗口期里套接字可能已经出现
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(500 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case ev := <-watcher.Events:
			if ev.Op&fsnotify.Create == fsnotify.Create && ev.Name == path {
				return nil
			}
		case err := <-watcher.Errors:
			logger.Warn("socket watcher error", logger.ErrorField(err))
		case <-poll.C:
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("engine: ipc socket %s did not appear within %s", path, timeout)
		}
	}
}
