package optimize

import "time"

// ContentionMetrics is the live snapshot spec §4.10 mandates: "active
// readers/writers, pending readers/writers, read/write wait time,
// acquisition rate, contested ratio."
type ContentionMetrics struct {
	ActiveReaders     int
	ActiveWriters     int
	PendingReaders    int
	PendingWriters    int
	ReadWaitTotal     time.Duration
	WriteWaitTotal    time.Duration
	ReadAcquisitions  int64
	WriteAcquisitions int64
	ContestedRatio    float64
}

// Healthy reports spec §4.10's compound predicate: "contested-ratio < 0.3
// AND write wait < 100ms AND pending writers < 10."
func (c ContentionMetrics) Healthy() bool {
	if c.ContestedRatio >= 0.3 {
		return false
	}
	if c.WriteAcquisitions > 0 && c.WriteWaitTotal/time.Duration(c.WriteAcquisitions) >= 100*time.Millisecond {
		return false
	}
	return c.PendingWriters < 10
}

// Contention returns a live ContentionMetrics snapshot.
func (o *Index) Contention() ContentionMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	total := o.readAcquisitions + o.writeAcquisitions
	var ratio float64
	if total > 0 {
		ratio = float64(o.contestedReads+o.contestedWrites) / float64(total)
	}

	return ContentionMetrics{
		ActiveReaders:     o.activeReaders,
		ActiveWriters:     o.activeWriters,
		PendingReaders:    o.pendingReaders,
		PendingWriters:    o.pendingWriters,
		ReadWaitTotal:     o.readWaitTotal,
		WriteWaitTotal:    o.writeWaitTotal,
		ReadAcquisitions:  o.readAcquisitions,
		WriteAcquisitions: o.writeAcquisitions,
		ContestedRatio:    ratio,
	}
}
