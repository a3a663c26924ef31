package broadcast

import (
	"bytes"
	"testing"
	"time"
)

func TestBroadcast_SlowClientNeverBlocksProducer(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Attach(ClientHint{ProfileParam: "constrained"})
	defer b.Detach(slow.ID)

	// 队列深度16、块4KB：一块数据刚好一帧，灌入远超深度的帧数。
	// 没人消费时生产侧也必须在有限时间内返回。
	done := make(chan struct{})
	go func() {
		defer close(done)
		chunk := make([]byte, 1024)
		for i := 0; i < 200; i++ {
			b.Broadcast(chunk)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked on congested client")
	}

	if slow.Dropped() == 0 {
		t.Error("congested client should have dropped frames")
	}
}

func TestBroadcast_DropOldestKeepsNewest(t *testing.T) {
	b := NewBroadcaster()
	c := b.Attach(ClientHint{ProfileParam: "constrained"})
	defer b.Detach(c.ID)

	total := c.Profile.QueueDepth * 3
	for i := 0; i < total; i++ {
		b.Broadcast([]byte{byte(i)})
	}

	// 队列里应只剩最新的若干帧，序号连续且以最后一帧结尾
	var seqs []int64
	for {
		select {
		case f := <-c.Frames():
			if f.Seq > 0 {
				seqs = append(seqs, f.Seq)
			}
			continue
		default:
		}
		break
	}

	if len(seqs) == 0 {
		t.Fatal("no frames retained")
	}
	if last := seqs[len(seqs)-1]; last != int64(total) {
		t.Errorf("newest retained seq = %d, want %d", last, total)
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] != seqs[i-1]+1 {
			t.Errorf("retained seqs not contiguous: %v", seqs)
			break
		}
	}
}

func TestBroadcast_IsolatesClients(t *testing.T) {
	b := NewBroadcaster()
	congested := b.Attach(ClientHint{ProfileParam: "constrained"})
	healthy := b.Attach(ClientHint{ProfileParam: "general"})
	defer b.Detach(congested.ID)

	payload := []byte("audio-frame")
	rounds := congested.Profile.QueueDepth * 2
	received := make(chan Frame, rounds)
	go func() {
		for f := range healthy.Frames() {
			if f.Seq > 0 {
				received <- f
			}
		}
	}()

	for i := 0; i < rounds; i++ {
		b.Broadcast(payload)
	}

	var prev int64
	for i := 0; i < rounds; i++ {
		select {
		case f := <-received:
			if prev != 0 && f.Seq != prev+1 {
				t.Fatalf("healthy client saw gap: %d after %d", f.Seq, prev)
			}
			prev = f.Seq
			if !bytes.Equal(f.Data, payload) {
				t.Fatalf("frame data corrupted: %q", f.Data)
			}
		case <-time.After(time.Second):
			t.Fatalf("healthy client starved at frame %d", i)
		}
	}
	if healthy.Dropped() != 0 {
		t.Errorf("healthy client dropped %d frames", healthy.Dropped())
	}
	b.Detach(healthy.ID)
}

func TestBroadcast_ChunkSlicingPerProfile(t *testing.T) {
	b := NewBroadcaster()
	c := b.Attach(ClientHint{ProfileParam: "constrained"})
	defer b.Detach(c.ID)

	data := make([]byte, c.Profile.ChunkSize*2+100)
	for i := range data {
		data[i] = byte(i)
	}
	b.Broadcast(data)

	var reassembled []byte
	for i := 0; i < 3; i++ {
		select {
		case f := <-c.Frames():
			reassembled = append(reassembled, f.Data...)
		case <-time.After(time.Second):
			t.Fatalf("missing chunk %d", i)
		}
	}
	if !bytes.Equal(reassembled, data) {
		t.Error("re-sliced chunks do not reassemble to original data")
	}
}

func TestBroadcast_EndOfStreamReachesClient(t *testing.T) {
	b := NewBroadcaster()
	c := b.Attach(ClientHint{})
	defer b.Detach(c.ID)

	b.Broadcast([]byte("tail"))
	b.EndOfStream()

	deadline := time.After(time.Second)
	for {
		select {
		case f := <-c.Frames():
			if f.IsEOS() {
				return
			}
		case <-deadline:
			t.Fatal("EOS sentinel never arrived")
		}
	}
}

func TestBroadcast_DetachClosesDone(t *testing.T) {
	b := NewBroadcaster()
	c := b.Attach(ClientHint{})

	b.Detach(c.ID)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after detach")
	}
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", b.ClientCount())
	}

	// 重复摘除幂等
	b.Detach(c.ID)
}

func TestBroadcast_Heartbeat(t *testing.T) {
	b := NewBroadcaster()
	profile := Profile{
		Name:              "test",
		ChunkSize:         1024,
		QueueDepth:        8,
		HeartbeatInterval: 20 * time.Millisecond,
	}
	c := newClient(profile)
	b.mu.Lock()
	b.clients[c.ID] = c
	b.mu.Unlock()
	go b.heartbeatLoop(c)
	defer b.Detach(c.ID)

	select {
	case f := <-c.Frames():
		if !f.IsHeartbeat() {
			t.Errorf("frame seq = %d, want heartbeat", f.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat within interval")
	}
}

func TestBroadcast_ShutdownEvictsAll(t *testing.T) {
	b := NewBroadcaster()
	c1 := b.Attach(ClientHint{})
	c2 := b.Attach(ClientHint{ProfileParam: "constrained"})

	b.Shutdown()

	for _, c := range []*Client{c1, c2} {
		select {
		case <-c.Done():
		case <-time.After(time.Second):
			t.Fatal("client not closed on shutdown")
		}
	}
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", b.ClientCount())
	}
}
