package sandbox

import "sync"

const defaultMaxOutputBytes = 8 << 20

// limitedBuffer keeps the first maxBytes written to it and drops the rest,
// while still reporting every write as complete so the child never blocks or
// sees a broken pipe.
type limitedBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
}

func newLimitedBuffer(maxBytes int) *limitedBuffer {
	if maxBytes <= 0 {
		maxBytes = defaultMaxOutputBytes
	}
	return &limitedBuffer{maxBytes: maxBytes}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	if room := b.maxBytes - len(b.contents); room > 0 {
		if len(p) > room {
			b.contents = append(b.contents, p[:room]...)
		} else {
			b.contents = append(b.contents, p...)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.contents)
}

func (b *limitedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.contents)) < b.total
}
