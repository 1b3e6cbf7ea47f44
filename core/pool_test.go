package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJobs(n int) []*job {
	jobs := make([]*job, n)
	for i := range jobs {
		jobs[i] = &job{index: i, firstItem: i, items: []InputItem{{}}}
	}
	return jobs
}

func TestPoolRunsEveryJobOnce(t *testing.T) {
	var mu sync.Mutex
	runs := map[int]int{}

	p := newPool(4,
		func(j *job) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			runs[j.index]++
			mu.Unlock()
		},
		func(j *job) { j.completed = true })
	defer p.shutdown()

	jobs := makeJobs(32)
	p.reset(jobs)
	p.dispatch()
	p.wait()

	require.Len(t, runs, 32)
	for i, n := range runs {
		assert.Equal(t, 1, n, "job %d", i)
	}
	for _, j := range jobs {
		assert.True(t, j.completed)
	}
}

func TestPoolAssignmentOrder(t *testing.T) {
	var order []int
	var mu sync.Mutex

	// One worker observes the strict cursor order.
	p := newPool(1,
		func(j *job) {
			mu.Lock()
			order = append(order, j.index)
			mu.Unlock()
		},
		func(*job) {})
	defer p.shutdown()

	jobs := makeJobs(8)
	p.reset(jobs)
	p.dispatch()
	p.wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestPoolReuseAcrossCalls(t *testing.T) {
	var count atomic.Int64
	p := newPool(3,
		func(*job) { count.Add(1) },
		func(*job) {})
	defer p.shutdown()

	for call := 0; call < 5; call++ {
		p.reset(makeJobs(10))
		p.dispatch()
		p.wait()
	}
	assert.Equal(t, int64(50), count.Load())
}

func TestPoolMoreWorkersThanJobs(t *testing.T) {
	var count atomic.Int64
	p := newPool(8,
		func(*job) { count.Add(1) },
		func(*job) {})
	defer p.shutdown()

	p.reset(makeJobs(2))
	p.dispatch()
	p.wait()
	assert.Equal(t, int64(2), count.Load())
}

func TestPoolShutdownAfterWork(t *testing.T) {
	p := newPool(2, func(*job) {}, func(*job) {})
	p.reset(makeJobs(1))
	p.dispatch()
	p.wait()
	p.shutdown()
}
