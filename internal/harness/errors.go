package harness

import "fmt"

// Kind classifies why a run stopped.
type Kind string

const (
	KindPrecondition Kind = "precondition" // local fixture missing
	KindNotReady     Kind = "not_ready"    // a dependency never answered its health check
	KindStorage      Kind = "storage"      // bucket, upload or listing failed
	KindProtocol     Kind = "protocol"     // parser answered with a status other than 200
	KindTransport    Kind = "transport"    // no answer from the parser
	KindUnexpected   Kind = "unexpected"   // panic or anything unclassified
)

// Step numbers the scenario in execution order.
type Step int

const (
	StepFixture Step = iota + 1
	StepStorageReady
	StepParserReady
	StepClient
	StepBucket
	StepUpload
	StepParser
	StepListing
	StepSummary
)

var stepNames = map[Step]string{
	StepFixture:      "fixture",
	StepStorageReady: "storage_ready",
	StepParserReady:  "parser_ready",
	StepClient:       "client",
	StepBucket:       "bucket",
	StepUpload:       "upload",
	StepParser:       "parser",
	StepListing:      "listing",
	StepSummary:      "summary",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return fmt.Sprintf("step%d", int(s))
}

// StepError is returned by Run for any failure.
type StepError struct {
	Step Step
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed [%s]: %v", int(e.Step), e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func fail(step Step, kind Kind, err error) *StepError {
	return &StepError{Step: step, Kind: kind, Err: err}
}
