// Package smoother estimates a continuous spatial field from sparse sensor
// readings with a Gaussian kernel smoother. The bandwidth is selected once per
// run by leave-one-out cross-validation over the candidate sweep, then every
// time step is smoothed onto a fixed evaluation grid.
//
// All functions here are pure over immutable inputs: the grid and readings are
// read-only for the lifetime of a run, per-step results are collected into
// batches and concatenated once, and iteration orders are sorted so identical
// inputs always give identical output.
package smoother
