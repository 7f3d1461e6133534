package repository

import "time"

// QueryObserver receives timing for document store operations. Implemented
// by the metrics service; a nil observer disables instrumentation.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

func observe(obs QueryObserver, label string, start time.Time) {
	if obs == nil {
		return
	}
	obs.ObserveDBQuery(label, time.Since(start))
}
