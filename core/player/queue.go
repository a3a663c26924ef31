package player

import "PulseFM/model"

// Queue 播放队列。本身不加锁，只能由 Controller 在其互斥锁内操作。
// 不变式：任何一次变更之后 current ∈ [-1, len-1]。
type Queue struct {
	tracks  []model.Track
	current int // -1 = 无播放位
}

// NewQueue 创建空队列
func NewQueue() *Queue {
	return &Queue{current: -1}
}

// Len 队列长度
func (q *Queue) Len() int { return len(q.tracks) }

// CurrentIndex 当前播放位下标
func (q *Queue) CurrentIndex() int { return q.current }

// Current 当前播放位的曲目，无则返回 nil
func (q *Queue) Current() *model.Track {
	if q.current < 0 || q.current >= len(q.tracks) {
		return nil
	}
	return &q.tracks[q.current]
}

// Tracks 队列内容的副本
func (q *Queue) Tracks() []model.Track {
	out := make([]model.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// At 指定下标的曲目副本
func (q *Queue) At(i int) (model.Track, bool) {
	if i < 0 || i >= len(q.tracks) {
		return model.Track{}, false
	}
	return q.tracks[i], true
}

// IndexOf 按定位串查找曲目下标，未找到返回 -1
func (q *Queue) IndexOf(locator string) int {
	for i, t := range q.tracks {
		if t.Locator == locator {
			return i
		}
	}
	return -1
}

// Contains 队列中是否已有该定位串
func (q *Queue) Contains(locator string) bool { return q.IndexOf(locator) >= 0 }

// Append 追加曲目，定位串重复时拒绝
func (q *Queue) Append(t model.Track) error {
	if q.Contains(t.Locator) {
		return ErrDuplicateTrack
	}
	q.tracks = append(q.tracks, t)
	return nil
}

// InsertAt 在指定位置插入曲目，定位串重复时拒绝。
// 插入位置在当前播放位之前时，播放位跟随后移。
func (q *Queue) InsertAt(i int, t model.Track) error {
	if i < 0 || i > len(q.tracks) {
		return ErrInvalidIndex
	}
	if q.Contains(t.Locator) {
		return ErrDuplicateTrack
	}
	q.tracks = append(q.tracks, model.Track{})
	copy(q.tracks[i+1:], q.tracks[i:])
	q.tracks[i] = t
	if q.current >= i {
		q.current++
	}
	return nil
}

// RemoveAt 移除指定位置的曲目。
// 移除当前播放位时，播放位落在原来的下一条上；队列尾部收缩时向前收拢。
func (q *Queue) RemoveAt(i int) error {
	if i < 0 || i >= len(q.tracks) {
		return ErrInvalidIndex
	}
	q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
	switch {
	case q.current > i:
		q.current--
	case q.current == i && q.current > len(q.tracks)-1:
		q.current = len(q.tracks) - 1
	}
	return nil
}

// Reorder 把 from 位置的曲目移到 to 位置，播放位跟随曲目移动
func (q *Queue) Reorder(from, to int) error {
	if from < 0 || from >= len(q.tracks) || to < 0 || to >= len(q.tracks) {
		return ErrInvalidIndex
	}
	if from == to {
		return nil
	}
	cur := q.Current()
	var curLocator string
	if cur != nil {
		curLocator = cur.Locator
	}

	t := q.tracks[from]
	q.tracks = append(q.tracks[:from], q.tracks[from+1:]...)
	q.tracks = append(q.tracks, model.Track{})
	copy(q.tracks[to+1:], q.tracks[to:])
	q.tracks[to] = t

	if curLocator != "" {
		q.current = q.IndexOf(curLocator)
	}
	return nil
}

// Clear 清空队列
func (q *Queue) Clear() {
	q.tracks = nil
	q.current = -1
}

// setCurrent 移动播放位，非法下标重置为 -1
func (q *Queue) setCurrent(i int) {
	if i < 0 || i >= len(q.tracks) {
		q.current = -1
		return
	}
	q.current = i
}

// update 回填指定定位串曲目的解析结果
func (q *Queue) update(t model.Track) {
	if i := q.IndexOf(t.Locator); i >= 0 {
		q.tracks[i] = t
	}
}
