package player

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"PulseFM/core/ipc"
	"PulseFM/model"
)

// fakeEngine 脚本化命令通道，按顺序记录收到的命令
type fakeEngine struct {
	mu      sync.Mutex
	token   string
	cmds    [][]any
	sendErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{token: "test-token"}
}

func (f *fakeEngine) Token() string { return f.token }

func (f *fakeEngine) Send(_ context.Context, token string, args ...any) (any, error) {
	if token != f.token {
		return nil, ipc.ErrStaleSession
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.cmds = append(f.cmds, args)
	return nil, nil
}

func (f *fakeEngine) QueryFloat(_ context.Context, _, _ string) (float64, error) {
	return 0, nil
}

func (f *fakeEngine) SetProperty(ctx context.Context, token, property string, value any) error {
	_, err := f.Send(ctx, token, "set_property", property, value)
	return err
}

func (f *fakeEngine) commands() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]any, len(f.cmds))
	copy(out, f.cmds)
	return out
}

// loadedPaths 提取 loadfile 命令的目标，忽略属性设置
func (f *fakeEngine) loadedPaths() []string {
	var paths []string
	for _, cmd := range f.commands() {
		if len(cmd) >= 2 && cmd[0] == "loadfile" {
			paths = append(paths, cmd[1].(string))
		}
	}
	return paths
}

func newTestController(engine *fakeEngine, locators ...string) *Controller {
	c := NewController(nil, nil)
	c.AttachSession(engine)
	for _, l := range locators {
		if err := c.Append(mkTrack(l)); err != nil {
			panic(err)
		}
	}
	return c
}

func endFile(c *Controller, path string, entry int64) {
	c.HandleEvent(ipc.Event{Name: ipc.EventEndFile, Reason: ipc.ReasonEOF, Path: path, EntryID: entry})
}

func locators(tracks []model.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Locator
	}
	return out
}

func TestController_AutoAdvanceLoopNone(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3", "/c.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	endFile(c, "/a.mp3", 1)

	got := locators(c.QueueTracks())
	if !reflect.DeepEqual(got, []string{"/b.mp3", "/c.mp3"}) {
		t.Errorf("queue = %v, want [/b.mp3 /c.mp3]", got)
	}
	snap := c.Snapshot(context.Background())
	if snap.QueueIndex != 0 {
		t.Errorf("QueueIndex = %d, want 0", snap.QueueIndex)
	}
	if paths := engine.loadedPaths(); len(paths) != 2 || paths[1] != "/b.mp3" {
		t.Errorf("loadedPaths = %v, want [... /b.mp3]", paths)
	}
}

func TestController_AutoAdvanceLoopSingle(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3")
	c.SetLoopMode(model.LoopSingle)
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	endFile(c, "/a.mp3", 1)

	got := locators(c.QueueTracks())
	if !reflect.DeepEqual(got, []string{"/a.mp3", "/b.mp3"}) {
		t.Errorf("queue = %v, queue must not change under single loop", got)
	}
	paths := engine.loadedPaths()
	if len(paths) != 2 || paths[1] != "/a.mp3" {
		t.Errorf("loadedPaths = %v, want /a.mp3 replayed", paths)
	}
}

func TestController_AutoAdvanceLoopAllWraps(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3")
	c.SetLoopMode(model.LoopAll)
	if err := c.PlayIndex(1); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	endFile(c, "/b.mp3", 1)

	snap := c.Snapshot(context.Background())
	if snap.QueueIndex != 0 {
		t.Errorf("QueueIndex = %d, want wrap to 0", snap.QueueIndex)
	}
	if got := locators(c.QueueTracks()); len(got) != 2 {
		t.Errorf("queue = %v, all loop must not remove tracks", got)
	}
}

func TestController_DuplicateEndEventOnce(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3", "/c.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	// 同一次加载的事件重复投递，含乱序的旧序号
	endFile(c, "/a.mp3", 1)
	endFile(c, "/a.mp3", 1)
	endFile(c, "/b.mp3", 1)

	got := locators(c.QueueTracks())
	if !reflect.DeepEqual(got, []string{"/b.mp3", "/c.mp3"}) {
		t.Errorf("queue = %v, want exactly one advance", got)
	}
	if paths := engine.loadedPaths(); len(paths) != 2 {
		t.Errorf("loadedPaths = %v, want exactly 2 loads", paths)
	}
}

func TestController_DuplicateEndEventWithoutEntryID(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3", "/c.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	// 序号缺失时退回加载令牌去重：第二个事件属于同一次加载
	c.mu.Lock()
	c.advancedFor = c.loadToken
	c.mu.Unlock()
	endFile(c, "/a.mp3", 0)

	if got := locators(c.QueueTracks()); len(got) != 3 {
		t.Errorf("queue = %v, duplicate event must not advance", got)
	}
}

func TestController_StaleEventDoesNotConsumeAdvanceGuard(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	// 序号缺失的引擎：先来一个错配的迟到事件，再来真正的完结事件。
	// 错配事件不得占掉本次加载的推进名额
	endFile(c, "/c.mp3", 0)
	endFile(c, "/a.mp3", 0)

	got := locators(c.QueueTracks())
	if !reflect.DeepEqual(got, []string{"/b.mp3"}) {
		t.Errorf("queue = %v, want [/b.mp3]: genuine end-of-track was suppressed", got)
	}
	paths := engine.loadedPaths()
	if len(paths) != 2 || paths[1] != "/b.mp3" {
		t.Errorf("loadedPaths = %v, want [/a.mp3 /b.mp3]", paths)
	}
}

func TestController_StaleEndEventMismatch(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3", "/c.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	// 迟到事件报的是别的曲目：不得移除当前曲目
	endFile(c, "/c.mp3", 1)

	got := locators(c.QueueTracks())
	if !reflect.DeepEqual(got, []string{"/a.mp3", "/b.mp3", "/c.mp3"}) {
		t.Errorf("queue = %v, mismatched event must not mutate queue", got)
	}
	snap := c.Snapshot(context.Background())
	if snap.QueueIndex != 0 {
		t.Errorf("QueueIndex = %d, want 0", snap.QueueIndex)
	}
}

func TestController_InsertNext(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3", "/c.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	if err := c.InsertNext(mkTrack("/x.mp3")); err != nil {
		t.Fatalf("InsertNext: %v", err)
	}
	got := locators(c.QueueTracks())
	want := []string{"/a.mp3", "/x.mp3", "/b.mp3", "/c.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
}

func TestController_InsertNextDuplicate(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3")
	before := locators(c.QueueTracks())

	err := c.InsertNext(mkTrack("/b.mp3"))
	if !errors.Is(err, ErrDuplicateTrack) {
		t.Errorf("err = %v, want ErrDuplicateTrack", err)
	}
	if got := locators(c.QueueTracks()); !reflect.DeepEqual(got, before) {
		t.Errorf("queue = %v, want unchanged %v", got, before)
	}
}

func TestController_ManualNextBoundary(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3")
	if err := c.PlayIndex(1); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	// 非循环模式下末尾 next 是 no-op
	if err := c.Next(); err != nil {
		t.Errorf("Next: %v", err)
	}
	if snap := c.Snapshot(context.Background()); snap.QueueIndex != 1 {
		t.Errorf("QueueIndex = %d, want 1", snap.QueueIndex)
	}
	if paths := engine.loadedPaths(); len(paths) != 1 {
		t.Errorf("loadedPaths = %v, boundary next must not load", paths)
	}

	c.SetLoopMode(model.LoopAll)
	if err := c.Next(); err != nil {
		t.Errorf("Next: %v", err)
	}
	if snap := c.Snapshot(context.Background()); snap.QueueIndex != 0 {
		t.Errorf("QueueIndex = %d, want wrap to 0", snap.QueueIndex)
	}
}

func TestController_PlayFailureKeepsQueue(t *testing.T) {
	engine := newFakeEngine()
	engine.sendErr = fmt.Errorf("%w: load failed", ipc.ErrEngineError)
	c := newTestController(engine, "/a.mp3")

	err := c.Play("/broken.mp3")
	if err == nil {
		t.Fatal("Play should fail when engine rejects load")
	}
	snap := c.Snapshot(context.Background())
	if snap.State != model.StatusError {
		t.Errorf("State = %s, want error", snap.State)
	}
	if got := locators(c.QueueTracks()); !reflect.DeepEqual(got, []string{"/a.mp3"}) {
		t.Errorf("queue = %v, failed play must not mutate queue", got)
	}
}

func TestController_EngineLostSuspendsAdvance(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3", "/b.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	loadsBefore := len(engine.loadedPaths())

	c.HandleEvent(ipc.Event{Name: ipc.EventEngineLost})
	endFile(c, "/a.mp3", 1)

	if got := len(engine.loadedPaths()); got != loadsBefore {
		t.Errorf("loads = %d, no commands may be issued after engine lost", got)
	}
	if got := locators(c.QueueTracks()); len(got) != 2 {
		t.Errorf("queue = %v, must be preserved across engine loss", got)
	}
}

func TestController_ReattachAfterLoss(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	c.HandleEvent(ipc.Event{Name: ipc.EventEngineLost})

	fresh := newFakeEngine()
	fresh.token = "fresh-token"
	c.AttachSession(fresh)

	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex after reattach: %v", err)
	}
	if paths := fresh.loadedPaths(); len(paths) != 1 {
		t.Errorf("loadedPaths = %v, want 1 load on fresh session", paths)
	}
}

func TestController_VolumeClamped(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine)

	if err := c.SetVolume(200); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if snap := c.Snapshot(context.Background()); snap.Volume != maxVolume {
		t.Errorf("Volume = %d, want %d", snap.Volume, maxVolume)
	}
	if err := c.SetVolume(-5); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if snap := c.Snapshot(context.Background()); snap.Volume != minVolume {
		t.Errorf("Volume = %d, want %d", snap.Volume, minVolume)
	}
}

func TestController_LastTrackEndsStopped(t *testing.T) {
	engine := newFakeEngine()
	c := newTestController(engine, "/a.mp3")
	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	endFile(c, "/a.mp3", 1)

	snap := c.Snapshot(context.Background())
	if snap.State != model.StatusStopped {
		t.Errorf("State = %s, want stopped", snap.State)
	}
	if snap.QueueLen != 0 {
		t.Errorf("QueueLen = %d, want 0", snap.QueueLen)
	}
}
