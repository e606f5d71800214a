package scheduler

import (
	"time"

	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/refresher"
)

type acquireMsg struct {
	provider credential.Provider
	tag      credential.QueueTag
	reply    chan acquireResult
}

type acquireResult struct {
	lease *credential.Lease
	err   error
}

type reportSuccessMsg struct {
	leaseID uint64
}

type reportRateLimitedMsg struct {
	leaseID    uint64
	retryAfter time.Duration
}

type reportInvalidMsg struct {
	leaseID uint64
}

type reportTransportFailureMsg struct {
	leaseID uint64
}

type ingestMsg struct {
	cred  *credential.Credential
	reply chan struct{}
}

// refreshCompleteMsg is posted back into the actor's mailbox by a
// detached refresh goroutine (spawned from Ingest or ReportInvalid) or by
// EnsureFresh, so the state mutation happens on the actor goroutine only.
type refreshCompleteMsg struct {
	key      credential.Key
	provider credential.Provider
	result   refresher.Result
	isIngest bool
	// reenqueue controls whether a successful refresh re-enqueues the
	// credential. False for the pre-emptive refresh issued by
	// EnsureFresh, since that credential is still held by an active
	// lease and re-enqueuing it would let a second caller acquire it
	// concurrently.
	reenqueue bool
}
