package service

import "sync"

// runningJobs prevents the same job id from running twice in one process.
// It remembers which run holds each job so the refusal can name it.
type runningJobs struct {
	mu   sync.Mutex
	runs map[string]string // job id → run id
}

// tryAcquire marks jobID as run by runID. It returns the run already
// holding the job and false when the job is busy.
func (g *runningJobs) tryAcquire(jobID, runID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.runs == nil {
		g.runs = make(map[string]string)
	}
	if holder, ok := g.runs[jobID]; ok {
		return holder, false
	}
	g.runs[jobID] = runID
	return runID, true
}

// release frees jobID. Must be called after tryAcquire returns true.
func (g *runningJobs) release(jobID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.runs, jobID)
}

// count returns the number of jobs currently running.
func (g *runningJobs) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runs)
}
