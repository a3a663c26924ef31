package broadcast

import (
	"sync"
	"time"

	"PulseFM/logger"
)

// Broadcaster 把一路生产者字节流扇出给N个各自独立限速的消费端。
// 任何一个消费端的迟缓或消失都不影响其他消费端，也不反压生产者。
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*Client
	seq     int64 // 只由生产者goroutine递增
}

// NewBroadcaster 创建广播器
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*Client)}
}

// Attach 按能力档位接入一个消费端并启动其心跳
func (b *Broadcaster) Attach(hint ClientHint) *Client {
	profile := Classify(hint)
	c := newClient(profile)

	b.mu.Lock()
	b.clients[c.ID] = c
	n := len(b.clients)
	b.mu.Unlock()

	go b.heartbeatLoop(c)

	logger.Info("broadcast client attached",
		logger.String("client", c.ID),
		logger.String("profile", profile.Name),
		logger.Int("clients", n))
	return c
}

// Detach 摘除消费端：只取消它自己的消费循环并释放其队列，
// 其余客户端不受影响，广播不整体暂停
func (b *Broadcaster) Detach(id string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	n := len(b.clients)
	b.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	logger.Info("broadcast client detached",
		logger.String("client", id),
		logger.Int64("dropped", c.Dropped()),
		logger.Int("clients", n))
}

// Broadcast 向所有在线消费端投递一段音频数据。
// 按各自档位的块大小切片入队；满队列丢最旧，永不阻塞。
func (b *Broadcaster) Broadcast(data []byte) {
	if len(data) == 0 {
		return
	}
	b.seq++
	seq := b.seq

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		size := c.Profile.ChunkSize
		for off := 0; off < len(data); off += size {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			chunk := make([]byte, end-off)
			copy(chunk, data[off:end])
			c.push(Frame{Seq: seq, Data: chunk})
		}
	}
}

// EndOfStream 生产者流结束（切歌、停止）：给每个在线队列推哨兵，
// 让消费循环干净退出而不是空等超时
func (b *Broadcaster) EndOfStream() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		c.push(Frame{Seq: SeqEOS})
	}
	logger.Debug("end-of-stream sentinel pushed", logger.Int("clients", len(b.clients)))
}

// ClientCount 在线消费端数量
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Shutdown 摘除所有消费端
func (b *Broadcaster) Shutdown() {
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*Client)
	b.mu.Unlock()

	for _, c := range clients {
		c.push(Frame{Seq: SeqEOS})
		c.close()
	}
}

// heartbeatLoop 按档位节奏向客户端队列投心跳标记，直到其被摘除
func (b *Broadcaster) heartbeatLoop(c *Client) {
	ticker := time.NewTicker(c.Profile.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.push(Frame{Seq: SeqHeartbeat})
		}
	}
}
