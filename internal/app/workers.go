package app

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// MaxWorkers is the hard ceiling on batch workers regardless of load.
const MaxWorkers = 16

// WorkerCount sizes the batch worker pool from the core count and a
// point-in-time load sample. Pure; callers own the sampling.
// Never below 1, never above MaxWorkers.
func WorkerCount(cpus int, load float64) int {
	if cpus < 1 {
		cpus = 1
	}
	n := cpus * 2
	if load > float64(cpus) {
		n = cpus
	}
	if n < 1 {
		n = 1
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n
}

// SampleLoad reads the 1-minute load average. Returns 0 when the sample
// is unavailable (non-Linux, restricted /proc), which leaves sizing to
// the core count alone.
func SampleLoad() float64 {
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return load
}

// DefaultWorkerCount is the convenience composition used by the CLI.
func DefaultWorkerCount() int {
	return WorkerCount(runtime.NumCPU(), SampleLoad())
}

// keyedMutex serializes work per canonical filename. The filesystem
// existence check is not a lock, so two tasks targeting the identical
// artifact must be fenced in-process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entryLock)}
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entryLock{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.Mutex.Lock()
	return func() {
		e.Mutex.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
