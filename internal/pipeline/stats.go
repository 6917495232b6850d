package pipeline

import "sync/atomic"

// Stats counts pipeline activity for the process lifetime. All fields are
// updated atomically; Snapshot returns a plain copy.
type Stats struct {
	TotalValidations atomic.Int64
	Gate1Blocks      atomic.Int64
	Gate2Blocks      atomic.Int64
	Gate3Invocations atomic.Int64
	Gate3Blocks      atomic.Int64
	Rejections       atomic.Int64
	DetectorErrors   atomic.Int64
	Errors           atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalValidations int64 `json:"total_validations"`
	Gate1Blocks      int64 `json:"gate1_blocks"`
	Gate2Blocks      int64 `json:"gate2_blocks"`
	Gate3Invocations int64 `json:"gate3_invocations"`
	Gate3Blocks      int64 `json:"gate3_blocks"`
	Rejections       int64 `json:"rejections"`
	DetectorErrors   int64 `json:"detector_errors"`
	Errors           int64 `json:"errors"`
}

// Stats returns a snapshot of the counters.
func (o *Orchestrator) Stats() Snapshot {
	return Snapshot{
		TotalValidations: o.stats.TotalValidations.Load(),
		Gate1Blocks:      o.stats.Gate1Blocks.Load(),
		Gate2Blocks:      o.stats.Gate2Blocks.Load(),
		Gate3Invocations: o.stats.Gate3Invocations.Load(),
		Gate3Blocks:      o.stats.Gate3Blocks.Load(),
		Rejections:       o.stats.Rejections.Load(),
		DetectorErrors:   o.stats.DetectorErrors.Load(),
		Errors:           o.stats.Errors.Load(),
	}
}

// ResetStats zeroes the counters.
func (o *Orchestrator) ResetStats() {
	o.stats.TotalValidations.Store(0)
	o.stats.Gate1Blocks.Store(0)
	o.stats.Gate2Blocks.Store(0)
	o.stats.Gate3Invocations.Store(0)
	o.stats.Gate3Blocks.Store(0)
	o.stats.Rejections.Store(0)
	o.stats.DetectorErrors.Store(0)
	o.stats.Errors.Store(0)
}
