package models

import "fmt"

// Outcome is the result of a one-shot call to an external collaborator (transport,
// document generator, record-keeping sink). Callers decide what a failure means.
type Outcome struct {
	Target string // e.g. "twilio", "sheets", "crm"
	Err    error
}

// Succeeded builds a successful outcome.
func Succeeded(target string) Outcome {
	return Outcome{Target: target}
}

// Failed builds a failed outcome with the reason attached.
func Failed(target string, err error) Outcome {
	if err == nil {
		err = fmt.Errorf("%s: unknown failure", target)
	}
	return Outcome{Target: target, Err: err}
}

// OK reports whether the call succeeded
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Reason returns the failure reason, empty on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
