package analytics

// Observer receives structured trace events from analyzer internals
// (gate failures, filter counts, bucket boundaries). It replaces the
// console logging that used to sit inside computation paths: algorithm
// bodies trace through this interface and never log directly.
//
// Fields are alternating key/value pairs, matching the logger package.
type Observer interface {
	Trace(event string, fields ...interface{})
}

type nopObserver struct{}

func (nopObserver) Trace(string, ...interface{}) {}

// NopObserver discards all trace events. Analyzer options default to it.
var NopObserver Observer = nopObserver{}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event string, fields ...interface{})

// Trace implements Observer.
func (f ObserverFunc) Trace(event string, fields ...interface{}) { f(event, fields...) }
