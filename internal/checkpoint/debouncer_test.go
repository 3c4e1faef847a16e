package checkpoint

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	var calls int32
	d := NewDebouncer(30*time.Millisecond, func() {
		atomic.AddInt32(&calls, 1)
	})

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDebouncerCancelPreventsFire(t *testing.T) {
	var calls int32
	d := NewDebouncer(20*time.Millisecond, func() {
		atomic.AddInt32(&calls, 1)
	})
	d.Trigger()
	d.Cancel()
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestKeyedDebouncerIsolatesKeys(t *testing.T) {
	var mu sync.Mutex
	fired := make(map[string]int32)
	kd := NewKeyedDebouncer(20*time.Millisecond, func(key string) {
		mu.Lock()
		fired[key]++
		mu.Unlock()
	})

	kd.Trigger("a.txt")
	kd.Trigger("b.txt")
	kd.Trigger("a.txt")

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.EqualValues(t, 1, fired["a.txt"])
	assert.EqualValues(t, 1, fired["b.txt"])
}
