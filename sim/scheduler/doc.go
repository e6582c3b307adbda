// Package scheduler drives the mission control loop. A single goroutine
// advances all mission state in fixed-interval ticks: recharge, perception,
// decision dispatch, one movement step, telemetry. Decision requests are the
// only asynchronous operation; their results are applied at the start of a
// later tick, never concurrently with it.
package scheduler
