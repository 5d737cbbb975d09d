package coordinator

import "time"

// Status is a snapshot of the coordinator.
type Status struct {
	Running    bool
	InRun      bool
	NextRun    time.Time
	LastReport *Report
	LastError  string
}

// Status returns the latest coordinator information.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status := Status{Running: c.running, InRun: c.inRun, NextRun: c.nextRun}
	if c.lastReport != nil {
		copied := *c.lastReport
		status.LastReport = &copied
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	return status
}

func (c *Coordinator) setNextRun(t time.Time) {
	c.mu.Lock()
	c.nextRun = t
	c.mu.Unlock()
}

func (c *Coordinator) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
