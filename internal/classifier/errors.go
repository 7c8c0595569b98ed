package classifier

import "fmt"

// LoadError reports a failed load attempt. The classifier is left Unloaded and Load may be retried.
type LoadError struct {
	Stage string // "embedder" or "model"
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load classifier: %s: %v", e.Stage, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// NotLoadedError reports Classify called before a successful Load (or after Dispose).
type NotLoadedError struct{}

func (NotLoadedError) Error() string { return "classifier not loaded" }

// ErrNotLoaded is the NotLoadedError value returned by Classify; match it with errors.Is.
var ErrNotLoaded error = NotLoadedError{}

// ClassificationError reports a failed classify call. Model state is unaffected; the call may be retried.
type ClassificationError struct {
	Cause error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify: %v", e.Cause)
}

func (e *ClassificationError) Unwrap() error { return e.Cause }
