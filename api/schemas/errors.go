package schemas

import "fmt"

// DetectionError means the target root could not be inspected at all.
// An unrecognized stack is not a detection error; it yields an empty
// profile instead. No writes have happened when this is returned.
type DetectionError struct {
	Root   string
	Reason string
	Err    error
}

func (e *DetectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detection failed for %s (%s): %v", e.Root, e.Reason, e.Err)
	}
	return fmt.Sprintf("detection failed for %s: %s", e.Root, e.Reason)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// ConfigurationError means the supplied options are malformed. Terminal,
// no side effects.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("invalid configuration option %q: %s", e.Option, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// WriteError is an I/O failure while committing a generated file. It
// triggers rollback of every checkpoint taken so far.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed for %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ConcurrentInstallError means another install run holds the exclusive
// lock for the target root. Terminal, no side effects.
type ConcurrentInstallError struct {
	Root   string
	Holder string
}

func (e *ConcurrentInstallError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("another install is already running against %s (held by %s)", e.Root, e.Holder)
	}
	return fmt.Sprintf("another install is already running against %s", e.Root)
}

// RolledBackError wraps the original write failure together with the
// rollback outcome, so the caller sees both in one error chain.
type RolledBackError struct {
	Cause  error
	Report RollbackReport
}

func (e *RolledBackError) Error() string {
	if e.Report.Failed() {
		return fmt.Sprintf("install rolled back after error (%d of %d paths could not be restored): %v",
			len(e.Report.Failures), e.Report.Attempted, e.Cause)
	}
	return fmt.Sprintf("install rolled back after error: %v", e.Cause)
}

func (e *RolledBackError) Unwrap() error { return e.Cause }
