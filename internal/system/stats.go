package system

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time view of the process and host memory.
type Stats struct {
	RSS        uint64
	CPUPercent float64
	Threads    int32
	Goroutines int
	HeapAlloc  uint64
	HostTotal  uint64
	HostUsed   float64 // percent
}

// ReadStats samples the current process. Host figures are left zero when
// the platform does not expose them.
func ReadStats(ctx context.Context) (Stats, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := Stats{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
	}

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return s, fmt.Errorf("process stats: %w", err)
	}
	if info, err := p.MemoryInfoWithContext(ctx); err == nil {
		s.RSS = info.RSS
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		s.CPUPercent = cpu
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		s.Threads = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.HostTotal = vm.Total
		s.HostUsed = vm.UsedPercent
	}
	return s, nil
}

func (s Stats) String() string {
	out := fmt.Sprintf("rss %s, heap %s, cpu %.1f%%, threads %d, goroutines %d",
		humanize.Bytes(s.RSS), humanize.Bytes(s.HeapAlloc), s.CPUPercent, s.Threads, s.Goroutines)
	if s.HostTotal > 0 {
		out += fmt.Sprintf(", host %.0f%% of %s", s.HostUsed, humanize.Bytes(s.HostTotal))
	}
	return out
}
