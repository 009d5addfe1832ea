package models

import "time"

// GateName identifies which validation gate rejected a draft.
type GateName string

const (
	GateEthics       GateName = "ethics"
	GateLength       GateName = "length"
	GateCompleteness GateName = "completeness"
	GateReceipts     GateName = "receipts"
	GateCadence      GateName = "cadence"
	GateHighIntensity GateName = "high_intensity"
	GateDuplicate    GateName = "duplicate"
)

// ActionOutcome is a tagged variant describing what happened to one job
// tick's attempted action. Exactly one of the embedded pointers is set;
// callers should switch on Tag rather than nil-checking every field.
type ActionOutcome struct {
	Tag ActionOutcomeTag

	Success  *ActionSuccess
	Skipped  *ActionSkipped
	Deferred *ActionDeferred
	Rejected *ActionRejected
}

type ActionOutcomeTag string

const (
	OutcomeSuccessTag  ActionOutcomeTag = "success"
	OutcomeSkippedTag  ActionOutcomeTag = "skipped"
	OutcomeDeferredTag ActionOutcomeTag = "deferred"
	OutcomeRejectedTag ActionOutcomeTag = "rejected"
)

type ActionSuccess struct {
	PostID    string
	Receipts  map[Platform]Receipt
}

type ActionSkipped struct {
	Reason string
}

type ActionDeferred struct {
	RetryAt time.Time
	Reason  string
}

type ActionRejected struct {
	Gate   GateName
	Detail string
}

func NewSuccess(postID string, receipts map[Platform]Receipt) ActionOutcome {
	return ActionOutcome{Tag: OutcomeSuccessTag, Success: &ActionSuccess{PostID: postID, Receipts: receipts}}
}

func NewSkipped(reason string) ActionOutcome {
	return ActionOutcome{Tag: OutcomeSkippedTag, Skipped: &ActionSkipped{Reason: reason}}
}

func NewDeferred(retryAt time.Time, reason string) ActionOutcome {
	return ActionOutcome{Tag: OutcomeDeferredTag, Deferred: &ActionDeferred{RetryAt: retryAt, Reason: reason}}
}

func NewRejected(gate GateName, detail string) ActionOutcome {
	return ActionOutcome{Tag: OutcomeRejectedTag, Rejected: &ActionRejected{Gate: gate, Detail: detail}}
}

// Receipt is the structured result of one platform write attempt.
type Receipt struct {
	Platform Platform
	PostID   string
	DryRun   bool
	Meta     map[string]string
}
