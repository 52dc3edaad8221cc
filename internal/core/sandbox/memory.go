package sandbox

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

const memoryPollInterval = 20 * time.Millisecond

// startMemoryMonitor samples the resident set size of pid until the returned
// function is called, which stops sampling and returns the peak in KB. The
// figure is informational; no limit is enforced.
func startMemoryMonitor(pid int, logger *zap.Logger) func() int {
	var peak atomic.Uint64
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(memoryPollInterval)
		defer ticker.Stop()

		sample := func() {
			proc, err := process.NewProcess(int32(pid))
			if err != nil {
				return // already gone
			}
			memInfo, err := proc.MemoryInfo()
			if err != nil {
				return
			}
			for {
				cur := peak.Load()
				if memInfo.RSS <= cur || peak.CompareAndSwap(cur, memInfo.RSS) {
					return
				}
			}
		}

		sample()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				sample()
			}
		}
	}()

	var once sync.Once
	return func() int {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
		kb := int(peak.Load() / 1024)
		logger.Debug("memory monitor stopped", zap.Int("pid", pid), zap.Int("peakKb", kb))
		return kb
	}
}
