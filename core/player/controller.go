package player

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"PulseFM/core/ipc"
	"PulseFM/logger"
	"PulseFM/model"

	"github.com/google/uuid"
)

// CommandChannel 控制器对命令通道的依赖，由 *ipc.Session 满足
type CommandChannel interface {
	Token() string
	Send(ctx context.Context, token string, args ...any) (any, error)
	QueryFloat(ctx context.Context, token, property string) (float64, error)
	SetProperty(ctx context.Context, token, property string, value any) error
}

// HistoryRecorder 播放历史落库接口，可为 nil
type HistoryRecorder interface {
	Record(ctx context.Context, t model.Track) error
}

// AdvanceReason 推进原因
type AdvanceReason int

const (
	AdvanceManual  AdvanceReason = iota // 用户 next/prev
	AdvanceAutoEnd                      // 曲目自然播完
)

const (
	minVolume = 0
	maxVolume = 130

	loadTimeout  = 60 * time.Second // 含解析在内的整次加载
	queryTimeout = 2 * time.Second
)

// Controller 播放控制器。独占队列、播放位、循环模式和播放状态，
// 所有变更都在同一把锁内完成，播放位和队列内容作为一个整体更新。
type Controller struct {
	mu    sync.RWMutex
	queue *Queue
	loop  model.LoopMode
	state model.PlayerStatus

	volume  int
	paused  bool
	lastErr string

	engine     CommandChannel // 会话建立前为 nil
	token      string
	engineLost bool

	// 自动推进防重入：loadToken 每次成功加载刷新，
	// advancedFor 记录已经触发过自动推进的那次加载，
	// endedEntry 记录已消费过的引擎侧加载序号（重复投递去重）
	loadToken   string
	advancedFor string
	endedEntry  int64

	resolver Resolver
	history  HistoryRecorder
}

// NewController 创建控制器，引擎会话由 AttachSession 随后挂接
func NewController(resolver Resolver, history HistoryRecorder) *Controller {
	return &Controller{
		queue:  NewQueue(),
		loop:   model.LoopNone,
		state:  model.StatusIdle,
		volume: 100,

		resolver: resolver,
		history:  history,
	}
}

// AttachSession 挂接新建的引擎会话（启动时和引擎重启后）
func (c *Controller) AttachSession(ch CommandChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = ch
	c.token = ch.Token()
	c.engineLost = false
	c.endedEntry = 0 // 新引擎进程的加载序号从头计
	if c.state == model.StatusError {
		c.state = model.StatusIdle
		c.lastErr = ""
	}
	logger.Info("engine session attached", logger.String("token", c.token))
}

// HandleEvent 事件监听器的回调入口
func (c *Controller) HandleEvent(ev ipc.Event) {
	switch ev.Name {
	case ipc.EventEngineLost:
		c.onEngineLost()
	case ipc.EventEndFile:
		switch ev.Reason {
		case ipc.ReasonEOF:
			c.onTrackEnded(ev.Path, ev.EntryID)
		case ipc.ReasonError:
			c.failf("engine reported playback error for %s", ev.Path)
		}
	case ipc.EventPropertyChange:
		if ev.Property == "pause" {
			if b, ok := ev.Value.(bool); ok {
				c.mu.Lock()
				c.paused = b
				c.mu.Unlock()
			}
		}
	}
}

// onEngineLost 引擎死亡：只传播一次，队列与状态保留等待重连，
// 期间不做任何自动推进
func (c *Controller) onEngineLost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engineLost {
		return
	}
	c.engineLost = true
	c.loadToken = ""
	c.lastErr = ErrEngineLost.Error()
	logger.Warn("engine lost, playback suspended",
		logger.Int("queueLen", c.queue.Len()),
		logger.String("state", string(c.state)))
}

// onTrackEnded 自动推进入口。同一次加载的重复 end-of-track 事件只生效一次：
// 优先用引擎侧单调递增的加载序号去重，序号未知时退回本地加载令牌。
func (c *Controller) onTrackEnded(finished string, entry int64) {
	c.mu.Lock()
	if c.engineLost || c.state == model.StatusError || c.state == model.StatusStopped {
		c.mu.Unlock()
		return
	}
	if entry != 0 {
		if entry <= c.endedEntry {
			logger.Debug("duplicate end-of-track dropped",
				logger.String("path", finished),
				logger.Int64("entry", entry))
			c.mu.Unlock()
			return
		}
		c.endedEntry = entry
	} else {
		if c.loadToken == "" || c.advancedFor == c.loadToken {
			logger.Debug("duplicate end-of-track dropped", logger.String("path", finished))
			c.mu.Unlock()
			return
		}
		// 序号缺失时先核对完结曲目再消耗守卫令牌：
		// 迟到的错配事件不得烧掉本次加载唯一的一次推进机会
		if cur := c.queue.Current(); cur == nil || !trackFinished(*cur, finished) {
			logger.Warn("stale end-of-track mismatch ignored",
				logger.String("reported", finished))
			c.mu.Unlock()
			return
		}
		c.advancedFor = c.loadToken
	}
	c.mu.Unlock()

	// 自动推进中的失败已在 load 内转为 Error 状态，这里不再向外传播
	if err := c.Advance(AdvanceAutoEnd, finished); err != nil {
		logger.Error("auto-advance failed", logger.ErrorField(err))
	}
}

// Advance 推进算法。AutoEnd 语义：
// LoopSingle 原地重播；LoopNone 移除刚播完的一条再播新的当前位；
// LoopAll 播放位循环后移，不移除任何曲目。
func (c *Controller) Advance(reason AdvanceReason, finished string) error {
	if reason == AdvanceManual {
		return c.step(1)
	}

	c.mu.Lock()
	switch c.loop {
	case model.LoopSingle:
		cur := c.queue.Current()
		if cur == nil {
			c.state = model.StatusStopped
			c.mu.Unlock()
			return nil
		}
		track := *cur
		c.state = model.StatusLoading
		c.mu.Unlock()
		_, err := c.load(track)
		return err

	case model.LoopAll:
		n := c.queue.Len()
		if n == 0 {
			c.state = model.StatusStopped
			c.mu.Unlock()
			return nil
		}
		c.queue.setCurrent((c.queue.CurrentIndex() + 1) % n)
		track := *c.queue.Current()
		c.state = model.StatusLoading
		c.mu.Unlock()
		_, err := c.load(track)
		return err

	default: // LoopNone
		cur := c.queue.Current()
		if cur == nil {
			c.state = model.StatusStopped
			c.mu.Unlock()
			return nil
		}
		// 引擎上报的完结曲目必须与当前位一致，
		// 防御手动切歌与迟到事件之间的竞争
		if !trackFinished(*cur, finished) {
			logger.Warn("stale end-of-track mismatch ignored",
				logger.String("reported", finished),
				logger.String("current", cur.Locator))
			c.mu.Unlock()
			return nil
		}
		_ = c.queue.RemoveAt(c.queue.CurrentIndex())
		next := c.queue.Current()
		if next == nil {
			c.state = model.StatusStopped
			c.mu.Unlock()
			return nil
		}
		track := *next
		c.state = model.StatusLoading
		c.mu.Unlock()
		_, err := c.load(track)
		return err
	}
}

// Next 手动下一首。只移动播放位，从不移除曲目
func (c *Controller) Next() error { return c.step(1) }

// Prev 手动上一首
func (c *Controller) Prev() error { return c.step(-1) }

// step 播放位 ±1。边界处 no-op，LoopAll 下环绕。
func (c *Controller) step(delta int) error {
	c.mu.Lock()
	n := c.queue.Len()
	if n == 0 {
		c.mu.Unlock()
		return nil
	}
	j := c.queue.CurrentIndex() + delta
	if c.loop == model.LoopAll {
		j = ((j % n) + n) % n
	} else if j < 0 || j > n-1 {
		c.mu.Unlock()
		return nil
	}
	c.queue.setCurrent(j)
	track := *c.queue.Current()
	c.state = model.StatusLoading
	c.mu.Unlock()

	_, err := c.load(track)
	return err
}

// Play 按定位串播放。已在队列中的曲目移动播放位过去，
// 队列外的曲目加载成功后插到顶部；加载失败队列保持不变。
func (c *Controller) Play(locator string) error {
	c.mu.Lock()
	var track model.Track
	inQueue := false
	if i := c.queue.IndexOf(locator); i >= 0 {
		track, _ = c.queue.At(i)
		c.queue.setCurrent(i)
		inQueue = true
	} else {
		track = TrackFromLocator(locator)
	}
	c.state = model.StatusLoading
	c.mu.Unlock()

	loaded, err := c.load(track)
	if err != nil {
		return err
	}

	if !inQueue {
		c.mu.Lock()
		if i := c.queue.IndexOf(loaded.Locator); i >= 0 {
			c.queue.setCurrent(i)
		} else {
			_ = c.queue.InsertAt(0, loaded)
			c.queue.setCurrent(0)
		}
		c.mu.Unlock()
	}
	return nil
}

// PlayIndex 播放队列中指定下标的曲目
func (c *Controller) PlayIndex(i int) error {
	c.mu.Lock()
	track, ok := c.queue.At(i)
	if !ok {
		c.mu.Unlock()
		return ErrInvalidIndex
	}
	c.queue.setCurrent(i)
	c.state = model.StatusLoading
	c.mu.Unlock()

	_, err := c.load(track)
	return err
}

// load 解析（如需）并向引擎下发加载命令。
// 失败转入 Error 状态并原样返回错误，不自动跳过到下一首。
func (c *Controller) load(track model.Track) (model.Track, error) {
	c.mu.RLock()
	engine, token, lost := c.engine, c.token, c.engineLost
	c.mu.RUnlock()
	if engine == nil || lost {
		c.fail(ErrEngineLost.Error())
		return track, ErrEngineLost
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	if track.IsStream() && !track.Resolved() {
		resolved, err := c.resolver.Resolve(ctx, track.Locator)
		if err != nil {
			c.fail(err.Error())
			return track, err
		}
		track = applyResolved(track, resolved)
		c.mu.Lock()
		c.queue.update(track)
		c.mu.Unlock()
	}

	if track.IsStream() {
		if err := engine.SetProperty(ctx, token, "ytdl-format", "bestaudio"); err != nil {
			c.fail(err.Error())
			return track, err
		}
	}
	if _, err := engine.Send(ctx, token, "loadfile", track.PlayableURL(), "replace"); err != nil {
		c.fail(err.Error())
		return track, err
	}

	c.mu.Lock()
	c.state = model.StatusPlaying
	c.paused = false
	c.loadToken = uuid.NewString()
	c.advancedFor = ""
	c.lastErr = ""
	c.mu.Unlock()

	logger.Info("track loaded",
		logger.String("locator", track.Locator),
		logger.String("title", track.Title))

	if c.history != nil {
		go func(t model.Track) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.history.Record(ctx, t); err != nil {
				logger.Warn("history record failed", logger.ErrorField(err))
			}
		}(track)
	}
	return track, nil
}

// Pause 暂停
func (c *Controller) Pause() error {
	if err := c.setEngineProperty("pause", true); err != nil {
		return err
	}
	c.mu.Lock()
	c.paused = true
	if c.state == model.StatusPlaying {
		c.state = model.StatusPaused
	}
	c.mu.Unlock()
	return nil
}

// Resume 恢复播放
func (c *Controller) Resume() error {
	if err := c.setEngineProperty("pause", false); err != nil {
		return err
	}
	c.mu.Lock()
	c.paused = false
	if c.state == model.StatusPaused {
		c.state = model.StatusPlaying
	}
	c.mu.Unlock()
	return nil
}

// Stop 停止播放，队列保留
func (c *Controller) Stop() error {
	c.mu.RLock()
	engine, token := c.engine, c.token
	c.mu.RUnlock()
	if engine == nil {
		return ErrEngineLost
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if _, err := engine.Send(ctx, token, "stop"); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = model.StatusStopped
	c.loadToken = ""
	c.mu.Unlock()
	return nil
}

// Seek 跳转到绝对位置（秒）
func (c *Controller) Seek(position float64) error {
	c.mu.RLock()
	engine, token := c.engine, c.token
	c.mu.RUnlock()
	if engine == nil {
		return ErrEngineLost
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, err := engine.Send(ctx, token, "seek", position, "absolute")
	return err
}

// SetVolume 设置音量，越界值收拢到 [0,130]
func (c *Controller) SetVolume(v int) error {
	if v < minVolume {
		v = minVolume
	}
	if v > maxVolume {
		v = maxVolume
	}
	if err := c.setEngineProperty("volume", v); err != nil {
		return err
	}
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
	return nil
}

// SetLoopMode 设置循环模式
func (c *Controller) SetLoopMode(m model.LoopMode) {
	c.mu.Lock()
	c.loop = m
	c.mu.Unlock()
}

// Append 追加曲目到队尾
func (c *Controller) Append(t model.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Append(t)
}

// InsertNext 插到当前曲目之后，保证紧跟当前曲。
// 插入位置总是对着此刻的真实播放位重新计算，不信任调用方给的绝对下标。
func (c *Controller) InsertNext(t model.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos := c.queue.CurrentIndex() + 1
	if c.queue.CurrentIndex() < 0 {
		// 无播放时留出0号位给"正在播放"
		pos = 1
	}
	if pos > c.queue.Len() {
		pos = c.queue.Len()
	}
	return c.queue.InsertAt(pos, t)
}

// Remove 移除队列中指定下标的曲目
func (c *Controller) Remove(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.RemoveAt(i)
}

// Reorder 调整队列顺序
func (c *Controller) Reorder(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Reorder(from, to)
}

// ClearQueue 清空队列
func (c *Controller) ClearQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.Clear()
}

// QueueTracks 队列内容快照
func (c *Controller) QueueTracks() []model.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue.Tracks()
}

// Reset 从 Error 状态复位回 Idle
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.StatusError {
		c.state = model.StatusIdle
		c.lastErr = ""
	}
}

// Snapshot 只读状态投影。播放中会顺带向引擎查询实时位置，
// 查询失败时退回最近的已知值。
func (c *Controller) Snapshot(ctx context.Context) model.StatusSnapshot {
	c.mu.RLock()
	snap := model.StatusSnapshot{
		State:      c.state,
		Volume:     c.volume,
		Paused:     c.paused,
		LoopMode:   c.loop,
		QueueLen:   c.queue.Len(),
		QueueIndex: c.queue.CurrentIndex(),
		LastError:  c.lastErr,
	}
	if cur := c.queue.Current(); cur != nil {
		t := *cur
		snap.Current = &t
		snap.Duration = t.Duration
	}
	engine, token, lost := c.engine, c.token, c.engineLost
	playing := c.state == model.StatusPlaying || c.state == model.StatusPaused
	c.mu.RUnlock()

	if playing && engine != nil && !lost {
		qctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		if pos, err := engine.QueryFloat(qctx, token, "time-pos"); err == nil {
			snap.Position = pos
		}
		if dur, err := engine.QueryFloat(qctx, token, "duration"); err == nil && dur > 0 {
			snap.Duration = dur
		}
	}
	return snap
}

// setEngineProperty 受锁外执行的引擎属性写入
func (c *Controller) setEngineProperty(name string, value any) error {
	c.mu.RLock()
	engine, token, lost := c.engine, c.token, c.engineLost
	c.mu.RUnlock()
	if engine == nil || lost {
		return ErrEngineLost
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return engine.SetProperty(ctx, token, name, value)
}

func (c *Controller) fail(msg string) {
	c.mu.Lock()
	c.state = model.StatusError
	c.lastErr = msg
	c.mu.Unlock()
}

func (c *Controller) failf(format string, args ...any) {
	c.mu.Lock()
	if c.state == model.StatusPlaying || c.state == model.StatusLoading {
		c.state = model.StatusError
		c.lastErr = fmt.Sprintf(format, args...)
	}
	c.mu.Unlock()
}

// trackFinished 引擎上报的完结地址是否指向该曲目。
// 引擎回报的是加载时下发的地址，串流曲目下是解析后的URL而非定位串。
func trackFinished(t model.Track, reported string) bool {
	return t.Locator == reported || t.PlayableURL() == reported
}

// TrackFromLocator 按定位串形态构造曲目：http(s) 是串流，其余按本地路径
func TrackFromLocator(locator string) model.Track {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return model.NewStreamTrack(locator)
	}
	return model.NewLocalTrack(locator)
}
