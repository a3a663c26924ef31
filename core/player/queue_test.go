package player

import (
	"errors"
	"math/rand"
	"reflect"
	"strconv"
	"testing"

	"PulseFM/model"
)

func mkTrack(locator string) model.Track {
	return model.Track{Locator: locator, Title: locator, Kind: model.KindLocal}
}

func TestNewQueue(t *testing.T) {
	q := NewQueue()
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", q.CurrentIndex())
	}
	if q.Current() != nil {
		t.Error("Current() should be nil on empty queue")
	}
}

func TestQueue_AppendDuplicateRejected(t *testing.T) {
	q := NewQueue()
	if err := q.Append(mkTrack("/a.mp3")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	before := q.Tracks()

	err := q.Append(mkTrack("/a.mp3"))
	if !errors.Is(err, ErrDuplicateTrack) {
		t.Errorf("err = %v, want ErrDuplicateTrack", err)
	}
	if !reflect.DeepEqual(before, q.Tracks()) {
		t.Error("queue mutated by rejected append")
	}
}

func TestQueue_InsertAtShiftsCurrent(t *testing.T) {
	q := NewQueue()
	q.Append(mkTrack("/a.mp3"))
	q.Append(mkTrack("/b.mp3"))
	q.setCurrent(1)

	if err := q.InsertAt(0, mkTrack("/c.mp3")); err != nil {
		t.Fatalf("InsertAt: %v", err)
	}
	if q.CurrentIndex() != 2 {
		t.Errorf("CurrentIndex() = %d, want 2", q.CurrentIndex())
	}
	if q.Current().Locator != "/b.mp3" {
		t.Errorf("Current() = %s, want /b.mp3", q.Current().Locator)
	}
}

func TestQueue_InsertAtDuplicateRejected(t *testing.T) {
	q := NewQueue()
	q.Append(mkTrack("/a.mp3"))
	before := q.Tracks()

	err := q.InsertAt(0, mkTrack("/a.mp3"))
	if !errors.Is(err, ErrDuplicateTrack) {
		t.Errorf("err = %v, want ErrDuplicateTrack", err)
	}
	if !reflect.DeepEqual(before, q.Tracks()) {
		t.Error("queue mutated by rejected insert")
	}
}

func TestQueue_RemoveAt(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		remove      int
		wantCurrent int
		wantLen     int
	}{
		{"before current", 2, 0, 1, 2},
		{"at current with following", 0, 0, 0, 2},
		{"at current last", 2, 2, 1, 2},
		{"after current", 0, 2, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			q.Append(mkTrack("/a.mp3"))
			q.Append(mkTrack("/b.mp3"))
			q.Append(mkTrack("/c.mp3"))
			q.setCurrent(tt.current)

			if err := q.RemoveAt(tt.remove); err != nil {
				t.Fatalf("RemoveAt: %v", err)
			}
			if q.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", q.Len(), tt.wantLen)
			}
			if q.CurrentIndex() != tt.wantCurrent {
				t.Errorf("CurrentIndex() = %d, want %d", q.CurrentIndex(), tt.wantCurrent)
			}
		})
	}
}

func TestQueue_RemoveLastTrack(t *testing.T) {
	q := NewQueue()
	q.Append(mkTrack("/a.mp3"))
	q.setCurrent(0)

	if err := q.RemoveAt(0); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", q.CurrentIndex())
	}
}

func TestQueue_ReorderFollowsCurrent(t *testing.T) {
	q := NewQueue()
	q.Append(mkTrack("/a.mp3"))
	q.Append(mkTrack("/b.mp3"))
	q.Append(mkTrack("/c.mp3"))
	q.setCurrent(0)

	if err := q.Reorder(0, 2); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if q.Current().Locator != "/a.mp3" {
		t.Errorf("Current() = %s, want /a.mp3", q.Current().Locator)
	}
	if q.CurrentIndex() != 2 {
		t.Errorf("CurrentIndex() = %d, want 2", q.CurrentIndex())
	}
}

// 不变式：任意插入/移除序列之后 current ∈ [-1, len-1]
func TestQueue_IndexInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := NewQueue()
	locator := 0

	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			locator++
			_ = q.Append(mkTrack("app-" + strconv.Itoa(locator)))
		case 1:
			if q.Len() > 0 {
				locator++
				_ = q.InsertAt(rng.Intn(q.Len()+1), mkTrack("ins-"+strconv.Itoa(locator)))
			}
		case 2:
			if q.Len() > 0 {
				_ = q.RemoveAt(rng.Intn(q.Len()))
			}
		case 3:
			if q.Len() > 0 {
				q.setCurrent(rng.Intn(q.Len()))
			}
		}

		if cur := q.CurrentIndex(); cur < -1 || cur > q.Len()-1 {
			t.Fatalf("invariant violated at op %d: current=%d len=%d", i, cur, q.Len())
		}
	}
}
