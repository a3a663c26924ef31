package audio

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"PulseFM/core/broadcast"
	"PulseFM/logger"
)

// 生产者单次读取的基准块。各客户端的实际块大小由广播器按档位再切
const captureReadSize = 32 * 1024

// Capture 推流采集源：一个长驻ffmpeg进程从音频设备采集、
// 编码成MP3字节流，经由广播器扇出
type Capture struct {
	ffmpegPath string
	format     string // 采集源格式，如 pulse
	source     string // 采集设备，如某个 monitor
	bitrate    string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stopped bool
}

// NewCapture 创建采集源
func NewCapture(ffmpegPath, format, source, bitrate string) *Capture {
	return &Capture{
		ffmpegPath: ffmpegPath,
		format:     format,
		source:     source,
		bitrate:    bitrate,
	}
}

// Start 启动ffmpeg进程并开始向广播器投递。
// 进程退出（主动停止或采集源断流）时向广播器推流结束哨兵。
func (c *Capture) Start(b *broadcast.Broadcaster) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return fmt.Errorf("audio: capture already running")
	}
	c.stopped = false

	args := []string{
		"-f", c.format,
		"-i", c.source,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", c.bitrate,
		"-f", "mp3",
		"pipe:1",
	}
	cmd := exec.Command(c.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start ffmpeg: %w", err)
	}
	c.cmd = cmd
	c.stdout = stdout

	logger.Info("capture started",
		logger.String("source", c.source),
		logger.String("bitrate", c.bitrate))

	go c.pump(b, stdout, cmd, &stderr)
	return nil
}

// pump 读取循环：把编码输出整块投给广播器
func (c *Capture) pump(b *broadcast.Broadcaster, stdout io.ReadCloser, cmd *exec.Cmd, stderr *bytes.Buffer) {
	buf := make([]byte, captureReadSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			b.Broadcast(buf[:n])
		}
		if err != nil {
			break
		}
	}

	waitErr := cmd.Wait()

	c.mu.Lock()
	intentional := c.stopped
	c.cmd = nil
	c.stdout = nil
	c.mu.Unlock()

	if waitErr != nil && !intentional {
		logger.Warn("capture exited abnormally",
			logger.ErrorField(waitErr),
			logger.String("stderr", tail(stderr.String(), 512)))
	} else {
		logger.Info("capture stopped")
	}
	b.EndOfStream()
}

// Stop 停止采集进程
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil {
		return
	}
	c.stopped = true
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

// Running 采集是否在运行
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil
}

// tail 截取字符串末尾n个字节
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
