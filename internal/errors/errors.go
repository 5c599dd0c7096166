package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Phase identifies where in the plugin lifecycle a failure happened.
type Phase string

const (
	PhaseAttach     Phase = "attach"
	PhaseSetup      Phase = "setup"
	PhaseContribute Phase = "contribute"
	PhaseTeardown   Phase = "teardown"
)

// PluginFailure records a failure attributed to one plugin or extension.
type PluginFailure struct {
	Plugin    string
	Phase     Phase
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (pf *PluginFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", pf.Plugin, pf.Phase, pf.Err)
}

// Unwrap returns the underlying failure.
func (pf *PluginFailure) Unwrap() error {
	return pf.Err
}

// ErrorCollector collects plugin failures and general errors so that one
// broken feature never aborts the work of the others.
type ErrorCollector struct {
	failures []PluginFailure
	errors   []error
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		failures: make([]PluginFailure, 0),
		errors:   make([]error, 0),
	}
}

// Add adds a plugin failure to the collector
func (ec *ErrorCollector) Add(f PluginFailure) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	ec.failures = append(ec.failures, f)
}

// AddError adds a general error to the collector
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// Failures returns all collected plugin failures
func (ec *ErrorCollector) Failures() []PluginFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]PluginFailure, len(ec.failures))
	copy(result, ec.failures)
	return result
}

// FailuresFor returns the failures recorded for one plugin.
func (ec *ErrorCollector) FailuresFor(plugin string) []PluginFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var result []PluginFailure
	for _, f := range ec.failures {
		if f.Plugin == plugin {
			result = append(result, f)
		}
	}
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.failures) > 0 || len(ec.errors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = ec.failures[:0]
	ec.errors = ec.errors[:0]
}

// Err joins everything collected into a single error, or nil.
func (ec *ErrorCollector) Err() error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	all := make([]error, 0, len(ec.failures)+len(ec.errors))
	for i := range ec.failures {
		f := ec.failures[i]
		all = append(all, &f)
	}
	all = append(all, ec.errors...)
	return errors.Join(all...)
}
