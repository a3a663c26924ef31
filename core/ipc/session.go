package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"PulseFM/logger"

	"github.com/google/uuid"
)

// 单帧上限。引擎的属性值可能携带较长的元数据
const maxFrameSize = 1 << 20

// Session 与一个引擎进程实例的IPC会话，由命令通道和事件监听器共同持有。
// 引擎死亡后整体废弃，由监督者重建新会话。
type Session struct {
	token   string
	conn    net.Conn
	timeout time.Duration

	writeCh chan *pendingRequest
	closed  chan struct{}
	quiet   atomic.Bool // 主动关闭时不合成 engine-lost 事件
	once    sync.Once

	mu      sync.Mutex
	pending map[int64]chan wireFrame
	nextID  atomic.Int64

	submu sync.RWMutex
	subs  []EventHandler
}

type pendingRequest struct {
	frame   []byte
	settled chan struct{} // 响应到达或超时后关闭，放行下一条命令
}

// Dial 连接引擎的IPC套接字并建立新会话
func Dial(socketPath string, timeout time.Duration) (*Session, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	return newSession(conn, timeout), nil
}

// newSession 基于已建立的连接创建会话并启动读写循环
func newSession(conn net.Conn, timeout time.Duration) *Session {
	s := &Session{
		token:   uuid.NewString(),
		conn:    conn,
		timeout: timeout,
		writeCh: make(chan *pendingRequest),
		closed:  make(chan struct{}),
		pending: make(map[int64]chan wireFrame),
	}
	go s.writeLoop()
	go s.readLoop()
	return s
}

// Token 本会话的令牌。每次命令调用都必须出示，
// 引擎重启后旧令牌被拒绝而不是被静默复用。
func (s *Session) Token() string { return s.token }

// Alive 会话是否仍然可用
func (s *Session) Alive() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// Subscribe 注册事件处理器。事件按引擎发出的顺序依次回调。
func (s *Session) Subscribe(handler EventHandler) {
	s.submu.Lock()
	defer s.submu.Unlock()
	s.subs = append(s.subs, handler)
}

// Send 发送一条命令并等待对应响应。
// 线上任一时刻只有一条命令在途，并发调用按提交顺序排队。
// 超时返回 ErrChannelTimeout，连接断开返回 ErrChannelClosed，不做内部重试。
func (s *Session) Send(ctx context.Context, token string, args ...any) (any, error) {
	if token != s.token {
		return nil, ErrStaleSession
	}
	if !s.Alive() {
		return nil, ErrChannelClosed
	}

	id := s.nextID.Add(1)
	payload, err := json.Marshal(wireRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("ipc: marshal command: %w", err)
	}
	payload = append(payload, '\n')

	respCh := make(chan wireFrame, 1)
	s.mu.Lock()
	s.pending[id] = respCh
	s.mu.Unlock()

	req := &pendingRequest{frame: payload, settled: make(chan struct{})}
	defer close(req.settled)

	select {
	case s.writeCh <- req:
	case <-s.closed:
		s.unregister(id)
		return nil, ErrChannelClosed
	case <-ctx.Done():
		s.unregister(id)
		return nil, ctx.Err()
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case f := <-respCh:
		if f.Error != "" && f.Error != "success" {
			return nil, fmt.Errorf("%w: %s", ErrEngineError, f.Error)
		}
		var v any
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &v); err != nil {
				return nil, fmt.Errorf("ipc: decode result: %w", err)
			}
		}
		return v, nil
	case <-timer.C:
		s.unregister(id)
		return nil, ErrChannelTimeout
	case <-s.closed:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		s.unregister(id)
		return nil, ctx.Err()
	}
}

// Query 读取引擎属性（position、volume、pause标志等）
func (s *Session) Query(ctx context.Context, token, property string) (any, error) {
	return s.Send(ctx, token, "get_property", property)
}

// QueryFloat 读取浮点属性
func (s *Session) QueryFloat(ctx context.Context, token, property string) (float64, error) {
	v, err := s.Query(ctx, token, property)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("ipc: property %s is not a number", property)
	}
	return f, nil
}

// SetProperty 设置引擎属性
func (s *Session) SetProperty(ctx context.Context, token, property string, value any) error {
	_, err := s.Send(ctx, token, "set_property", property, value)
	return err
}

// Close 主动关闭会话，不向订阅者合成 engine-lost 事件
func (s *Session) Close() {
	s.quiet.Store(true)
	s.teardown()
}

// writeLoop 串行写循环：写出一条命令后等它落定（响应/超时）再写下一条
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.closed:
			return
		case req := <-s.writeCh:
			if _, err := s.conn.Write(req.frame); err != nil {
				logger.Warn("ipc write failed", logger.ErrorField(err))
				s.teardown()
				return
			}
			select {
			case <-req.settled:
			case <-s.closed:
				return
			}
		}
	}
}

// readLoop 长驻读循环，与写方向互相独立。
// 解码失败或连接断开即标记会话死亡并退出，重启永远是监督者的显式动作。
func (s *Session) readLoop() {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var f wireFrame
		if err := json.Unmarshal(line, &f); err != nil {
			logger.Warn("ipc frame decode failed", logger.ErrorField(err))
			s.teardown()
			return
		}

		if f.Event != "" {
			s.dispatch(decodeEvent(f))
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[f.RequestID]
		if ok {
			delete(s.pending, f.RequestID)
		}
		s.mu.Unlock()

		if ok {
			ch <- f
		} else {
			logger.Debug("ipc stray response dropped", logger.Int64("requestId", f.RequestID))
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("ipc read failed", logger.ErrorField(err))
	}
	s.teardown()
}

// teardown 关闭会话：所有在途请求以 ErrChannelClosed 失败，
// 随后向订阅者派发一次 engine-lost
func (s *Session) teardown() {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.Close()

		s.mu.Lock()
		n := len(s.pending)
		s.pending = make(map[int64]chan wireFrame)
		s.mu.Unlock()
		if n > 0 {
			logger.Warn("ipc session torn down with pending requests", logger.Int("pending", n))
		}

		if !s.quiet.Load() {
			s.dispatch(Event{Name: EventEngineLost})
		}
	})
}

func (s *Session) unregister(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Session) dispatch(ev Event) {
	s.submu.RLock()
	handlers := make([]EventHandler, len(s.subs))
	copy(handlers, s.subs)
	s.submu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// decodeEvent 把线上事件帧转为内部事件
func decodeEvent(f wireFrame) Event {
	ev := Event{
		Name:     f.Event,
		Reason:   f.Reason,
		Path:     f.Path,
		EntryID:  f.EntryID,
		Property: f.Name,
	}
	if len(f.Value) > 0 {
		_ = json.Unmarshal(f.Value, &ev.Value)
	}
	return ev
}
