// Package interval recommends the next review delay from a discrete set of
// candidates.
//
// Retention is modeled by the baseline exponential
// R = exp(−λ·(S + t/n)), where S aggregates elapsed-time-over-repetitions
// across the user's history with the item. The recommendation is the
// smallest candidate whose predicted retention meets the target, or the
// largest candidate when none does. When no predictive signal is available,
// FallbackInterval maps recent accuracy to a fixed delay.
package interval
