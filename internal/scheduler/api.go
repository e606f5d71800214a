package scheduler

import (
	"context"
	"time"

	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/refresher"
)

// Acquire requests a Lease for provider on the given queue tag. Returns
// ErrNoCredential if both the requested and sibling queues are empty.
func (a *Actor) Acquire(ctx context.Context, provider credential.Provider, tag credential.QueueTag) (*credential.Lease, error) {
	reply := make(chan acquireResult, 1)
	select {
	case a.mailbox <- acquireMsg{provider: provider, tag: tag, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.lease, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReportSuccess returns a Lease as successfully completed: the
// credential is re-enqueued at the tail of both queues.
func (a *Actor) ReportSuccess(lease *credential.Lease) {
	a.send(reportSuccessMsg{leaseID: lease.ID})
}

// ReportRateLimited returns a Lease after an upstream 429. retryAfter
// may be zero, in which case the default cooldown (60s) applies.
func (a *Actor) ReportRateLimited(lease *credential.Lease, retryAfter time.Duration) {
	a.send(reportRateLimitedMsg{leaseID: lease.ID, retryAfter: retryAfter})
}

// ReportInvalid returns a Lease after a 401/403: the credential is sent
// through the Token Refresher before it can be scheduled again.
func (a *Actor) ReportInvalid(lease *credential.Lease) {
	a.send(reportInvalidMsg{leaseID: lease.ID})
}

// ReportTransportFailure returns a Lease after a network or 5xx error:
// the credential is presumed still valid and re-enqueued immediately.
func (a *Actor) ReportTransportFailure(lease *credential.Lease) {
	a.send(reportTransportFailureMsg{leaseID: lease.ID})
}

// Ingest adds a newly-discovered credential (file scan, OAuth callback,
// or resource:add) to the scheduler: it is refreshed, persisted, and
// enqueued on success, or disabled on auth failure. Ingest returns once
// the credential is known to the actor; refresh completes asynchronously.
func (a *Actor) Ingest(ctx context.Context, cred *credential.Credential) {
	reply := make(chan struct{})
	select {
	case a.mailbox <- ingestMsg{cred: cred, reply: reply}:
	case <-ctx.Done():
		return
	}
	select {
	case <-reply:
	case <-ctx.Done():
	}
}

// send blocks until the actor's mailbox accepts m. Report messages must
// never be dropped silently — a dropped report leaks the credential out
// of the queue, cooldown heap, and refresh pipeline alike.
func (a *Actor) send(m any) {
	a.mailbox <- m
}

// EnsureFresh refreshes lease.Credential synchronously if it is within
// the configured safety margin of expiry (or has no token at all),
// returning a lease with the updated token. This is the pre-emptive
// refresh described in spec.md §4.6 step 3: the caller (Upstream Caller)
// awaits it directly rather than routing through the mailbox, since the
// caller needs the fresh token immediately to proceed with its request.
func (a *Actor) EnsureFresh(ctx context.Context, lease *credential.Lease) (*credential.Lease, error) {
	if !lease.Credential.NeedsRefresh(time.Now(), a.safetyMargin) {
		return lease, nil
	}

	dedupKey := string(lease.Credential.Provider) + "/" + lease.Credential.Identity
	res := a.refresher.Refresh(ctx, dedupKey, string(lease.Credential.Provider),
		lease.Credential.ClientID, lease.Credential.ClientSecret, lease.Credential.RefreshToken)

	select {
	case a.mailbox <- refreshCompleteMsg{key: lease.Credential.Key(), provider: lease.Credential.Provider, result: res, reenqueue: false}:
	case <-ctx.Done():
	}

	if res.Outcome != refresher.OutcomeSuccess {
		return lease, refreshErr(res)
	}
	lease.Credential.AccessToken = res.AccessToken
	lease.Credential.AccessTokenExpiresAt = res.ExpiresAt
	return lease, nil
}

func refreshErr(res refresher.Result) error {
	if res.Err != nil {
		return res.Err
	}
	return ErrNoCredential
}
