package membership

import "github.com/Himess/espresso-network/pkg/consensus/types"

// drbJob is one unit of work submitted to the DRB worker pool.
type drbJob struct {
	seed   [32]byte
	result chan<- types.DrbResult
}

// drbWorkerPool runs DRBCompute on a small fixed set of goroutines,
// keeping the CPU-bound computation off the coordinator's request path
// (spec.md §4.G step 7, §9 "Blocking work inside async" — the Go
// analogue of tokio::task::spawn_blocking).
type drbWorkerPool struct {
	jobs chan drbJob
}

func newDRBWorkerPool(workers int, compute DRBCompute) *drbWorkerPool {
	if workers <= 0 {
		workers = 1
	}
	p := &drbWorkerPool{jobs: make(chan drbJob, workers*4)}
	for i := 0; i < workers; i++ {
		go p.run(compute)
	}
	return p
}

func (p *drbWorkerPool) run(compute DRBCompute) {
	for job := range p.jobs {
		job.result <- compute(job.seed)
	}
}

// Submit enqueues seed for computation and returns a channel that
// receives exactly one result.
func (p *drbWorkerPool) Submit(seed [32]byte) <-chan types.DrbResult {
	result := make(chan types.DrbResult, 1)
	p.jobs <- drbJob{seed: seed, result: result}
	return result
}
