// Package scheduler implements the Scheduler Actor: the single-threaded
// owner of the Queue Set and Cooldown Timer, serviced by acquire/report
// messages from request handlers. Grounded in the teacher's credential
// Manager (internal/credential/manager*.go, since deleted — see
// DESIGN.md) but replacing its mutex-guarded shared state with a
// message-passing actor, per the spec's REDESIGN note.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yeshanjun/pollux/internal/cooldown"
	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/credstore"
	"github.com/yeshanjun/pollux/internal/queueset"
	"github.com/yeshanjun/pollux/internal/refresher"
)

// ErrNoCredential is returned by Acquire when both queues for a
// provider/tag are empty.
var ErrNoCredential = errors.New("scheduler: no available credential")

// defaultRateLimitCooldown is used when an upstream 429 carries no
// parseable retry instant (spec.md §4.5).
const defaultRateLimitCooldown = 60 * time.Second

// transientRefreshBackoff is the short re-enqueue delay after a
// transient (non-auth) refresh failure triggered by ReportInvalid.
const transientRefreshBackoff = 5 * time.Second

// Actor is the Scheduler Actor. All exported methods are safe to call
// concurrently; they communicate with the single actor goroutine
// exclusively via channels.
type Actor struct {
	mailbox chan any

	store     credstore.Store
	refresher *refresher.Refresher
	safetyMargin time.Duration

	// owned exclusively by run(); never touched from other goroutines.
	queues   *queueset.Set
	cooldown *cooldown.Heap
	known    map[credential.Key]*credential.Credential
	leases   map[uint64]*leaseState

	nextLeaseID uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type leaseState struct {
	key      credential.Key
	provider credential.Provider
	tag      credential.QueueTag
	reported bool
}

// New constructs an Actor. Call Start to begin processing.
func New(store credstore.Store, r *refresher.Refresher, safetyMargin time.Duration) *Actor {
	if safetyMargin <= 0 {
		safetyMargin = 60 * time.Second
	}
	return &Actor{
		mailbox:      make(chan any, 256),
		store:        store,
		refresher:    r,
		safetyMargin: safetyMargin,
		queues:       queueset.New(),
		cooldown:     cooldown.New(),
		known:        make(map[credential.Key]*credential.Credential),
		leases:       make(map[uint64]*leaseState),
	}
}

// Start loads all enabled credentials and begins the actor loop. The
// loop runs until ctx is done or Stop is called.
func (a *Actor) Start(ctx context.Context) error {
	creds, err := a.store.LoadAllEnabled(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for _, c := range creds {
		a.known[c.Key()] = c
		a.queues.Enqueue(c.Provider, c.Key())
	}

	a.wg.Add(1)
	go a.run(runCtx)
	return nil
}

// Stop ends the actor loop and waits for it to exit.
func (a *Actor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *Actor) run(ctx context.Context) {
	defer a.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	armTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
		next, ok := a.cooldown.NextReadyAt()
		if !ok {
			return
		}
		d := time.Until(next)
		if d < 0 {
			d = 0
		}
		timer = time.NewTimer(d)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerC:
			a.drainCooldown(ctx)
			armTimer()
		case m := <-a.mailbox:
			a.handle(ctx, m)
			armTimer()
		}
	}
}

func (a *Actor) drainCooldown(ctx context.Context) {
	entries := a.cooldown.DrainReady(time.Now())
	for _, e := range entries {
		if c, ok := a.known[e.Key]; ok && c.Status == credential.StatusEnabled {
			a.queues.Enqueue(e.Provider, e.Key)
		}
	}
}

func (a *Actor) handle(ctx context.Context, m any) {
	switch msg := m.(type) {
	case acquireMsg:
		a.handleAcquire(msg)
	case reportSuccessMsg:
		a.handleReportSuccess(msg)
	case reportRateLimitedMsg:
		a.handleReportRateLimited(msg)
	case reportInvalidMsg:
		a.handleReportInvalid(ctx, msg)
	case reportTransportFailureMsg:
		a.handleReportTransportFailure(msg)
	case ingestMsg:
		a.handleIngest(ctx, msg)
	case refreshCompleteMsg:
		a.handleRefreshComplete(ctx, msg)
	default:
		log.Warnf("scheduler: unknown message type %T", m)
	}
}

func (a *Actor) handleAcquire(msg acquireMsg) {
	key, ok := a.queues.Dequeue(msg.provider, msg.tag)
	if !ok {
		msg.reply <- acquireResult{err: ErrNoCredential}
		return
	}
	c, ok := a.known[key]
	if !ok || c.Status != credential.StatusEnabled {
		// Stale entry (e.g. disabled concurrently with a queued position);
		// try once more rather than surfacing a bogus lease.
		if key, ok = a.queues.Dequeue(msg.provider, msg.tag); ok {
			c, ok = a.known[key]
		}
		if !ok || c.Status != credential.StatusEnabled {
			msg.reply <- acquireResult{err: ErrNoCredential}
			return
		}
	}

	id := atomic.AddUint64(&a.nextLeaseID, 1)
	a.leases[id] = &leaseState{key: key, provider: msg.provider, tag: msg.tag}

	msg.reply <- acquireResult{lease: &credential.Lease{
		ID:         id,
		Credential: c.Clone(),
		QueueTag:   msg.tag,
		IssuedAt:   time.Now(),
	}}
}

func (a *Actor) handleReportSuccess(msg reportSuccessMsg) {
	ls, ok := a.takeLease(msg.leaseID)
	if !ok {
		return
	}
	if c, ok := a.known[ls.key]; ok && c.Status == credential.StatusEnabled {
		a.queues.Enqueue(ls.provider, ls.key)
	}
}

func (a *Actor) handleReportTransportFailure(msg reportTransportFailureMsg) {
	ls, ok := a.takeLease(msg.leaseID)
	if !ok {
		return
	}
	if c, ok := a.known[ls.key]; ok && c.Status == credential.StatusEnabled {
		a.queues.Enqueue(ls.provider, ls.key)
	}
}

func (a *Actor) handleReportRateLimited(msg reportRateLimitedMsg) {
	ls, ok := a.takeLease(msg.leaseID)
	if !ok {
		return
	}
	retryAfter := msg.retryAfter
	if retryAfter <= 0 {
		retryAfter = defaultRateLimitCooldown
	}
	a.cooldown.Push(ls.key, ls.provider, time.Now().Add(retryAfter))
}

func (a *Actor) handleReportInvalid(ctx context.Context, msg reportInvalidMsg) {
	ls, ok := a.takeLease(msg.leaseID)
	if !ok {
		return
	}
	c, ok := a.known[ls.key]
	if !ok {
		return
	}
	a.spawnRefresh(ctx, c, ls.provider, false)
}

func (a *Actor) handleIngest(ctx context.Context, msg ingestMsg) {
	a.known[msg.cred.Key()] = msg.cred
	a.spawnRefresh(ctx, msg.cred, msg.cred.Provider, true)
	if msg.reply != nil {
		close(msg.reply)
	}
}

// spawnRefresh runs a refresh attempt in a detached goroutine and posts
// its outcome back to the mailbox; the actor goroutine itself never
// blocks on refresh I/O.
func (a *Actor) spawnRefresh(ctx context.Context, c *credential.Credential, provider credential.Provider, isIngest bool) {
	cloned := c.Clone()
	mailbox := a.mailbox
	r := a.refresher
	go func() {
		dedupKey := string(cloned.Provider) + "/" + cloned.Identity
		res := r.Refresh(ctx, dedupKey, string(cloned.Provider),
			cloned.ClientID, cloned.ClientSecret, cloned.RefreshToken)
		select {
		case mailbox <- refreshCompleteMsg{key: cloned.Key(), provider: provider, result: res, isIngest: isIngest, reenqueue: true}:
		case <-ctx.Done():
		}
	}()
}

func (a *Actor) handleRefreshComplete(ctx context.Context, msg refreshCompleteMsg) {
	c, ok := a.known[msg.key]
	if !ok {
		return
	}

	switch msg.result.Outcome {
	case refresher.OutcomeSuccess:
		c.AccessToken = msg.result.AccessToken
		c.AccessTokenExpiresAt = msg.result.ExpiresAt
		c.Status = credential.StatusEnabled
		c.LastError = ""
		if err := a.store.SetToken(ctx, c.Key(), c.AccessToken, c.AccessTokenExpiresAt); err != nil {
			log.WithError(err).Warn("scheduler: persist refreshed token failed")
		}
		if msg.reenqueue {
			a.queues.Enqueue(msg.provider, msg.key)
		}
	case refresher.OutcomeAuthFailure:
		c.Status = credential.StatusDisabled
		if msg.result.Err != nil {
			c.LastError = msg.result.Err.Error()
		}
		a.queues.Remove(msg.provider, msg.key)
		a.cooldown.Remove(msg.key)
		if err := a.store.SetStatus(ctx, c.Key(), credential.StatusDisabled, c.LastError); err != nil {
			log.WithError(err).Warn("scheduler: persist disabled credential failed")
		}
	case refresher.OutcomeTransientFailure:
		if msg.reenqueue {
			// Re-queued without a token update, per spec.md §4.2: it will
			// be retried (eagerly refreshed) the next time it is leased.
			a.cooldown.Push(msg.key, msg.provider, time.Now().Add(transientRefreshBackoff))
		}
		log.WithError(msg.result.Err).Warn("scheduler: transient refresh failure")
	}
}

func (a *Actor) takeLease(id uint64) (*leaseState, bool) {
	ls, ok := a.leases[id]
	if ok {
		delete(a.leases, id)
	}
	return ls, ok
}
