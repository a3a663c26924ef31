package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// 保留序号：负值与音频块区分，静默不会被当成连接卡死
const (
	SeqHeartbeat int64 = -1 // 心跳标记，不作为负载转发
	SeqEOS       int64 = -2 // 流结束哨兵，消费循环据此干净退出
)

// Frame 客户端队列中的一项：音频块或带外标记
type Frame struct {
	Seq  int64
	Data []byte
}

// IsHeartbeat 是否为心跳标记
func (f Frame) IsHeartbeat() bool { return f.Seq == SeqHeartbeat }

// IsEOS 是否为流结束哨兵
func (f Frame) IsEOS() bool { return f.Seq == SeqEOS }

// Client 一个广播消费端。连接建立时创建，断开或被驱逐时销毁，
// 从不跨连接复用。
type Client struct {
	ID          string
	Profile     Profile
	ConnectedAt time.Time

	frames  chan Frame
	done    chan struct{}
	stop    sync.Once
	dropped atomic.Int64
	lastSeq atomic.Int64
}

func newClient(p Profile) *Client {
	return &Client{
		ID:          uuid.NewString(),
		Profile:     p,
		ConnectedAt: time.Now(),
		frames:      make(chan Frame, p.QueueDepth),
		done:        make(chan struct{}),
	}
}

// Frames 消费端读取自己的有界队列
func (c *Client) Frames() <-chan Frame { return c.frames }

// Done 客户端被摘除后关闭
func (c *Client) Done() <-chan struct{} { return c.done }

// Dropped 因队列满而被丢弃的块数
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// LastSeq 最近入队的音频块序号
func (c *Client) LastSeq() int64 { return c.lastSeq.Load() }

// push 非阻塞入队：队列满时丢最旧的一块，生产者永不等待
func (c *Client) push(f Frame) {
	for {
		select {
		case c.frames <- f:
			if f.Seq > 0 {
				c.lastSeq.Store(f.Seq)
			}
			return
		default:
		}
		select {
		case old := <-c.frames:
			if old.Seq > 0 {
				c.dropped.Add(1)
			}
		default:
		}
	}
}

// close 标记客户端结束，幂等
func (c *Client) close() {
	c.stop.Do(func() { close(c.done) })
}
