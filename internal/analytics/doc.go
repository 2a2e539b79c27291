// Package analytics holds the types shared by every analyzer: the immutable
// DataContext snapshot, the Guidance result variant, risk/confidence enums,
// the trace Observer, and the error taxonomy.
//
// Analyzers live in subpackages (audience, frequency, gaps, flowscore,
// subjects, cohorts) and are pure functions over a DataContext plus a
// resolved time window. They never hold state, never log inline, and never
// require a cache to be correct.
package analytics
