// Package service holds the engine's business logic. The creation
// orchestrator is an explicit state machine driving the create-family and
// join-family flows end to end: validate input, generate a code, commit
// locally, push best-effort to the cloud, and fall back to local-only when
// the push fails. The UI layer is a pure consumer of its state snapshots
// and transition notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"tribeboard/internal/cloud"
	"tribeboard/internal/codegen"
	"tribeboard/internal/database"
	"tribeboard/internal/errs"
	"tribeboard/internal/models"
	"tribeboard/internal/syncer"
	"tribeboard/internal/validation"
)

// State is one phase of a creation or join attempt.
type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateGeneratingCode  State = "generating_code"
	StateCreatingLocally State = "creating_locally"
	StateSyncingToCloud  State = "syncing_to_cloud"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// FailureReason explains a Failed state.
type FailureReason string

const (
	FailureNone                FailureReason = ""
	FailureValidation          FailureReason = "validation"
	FailureCodeCollision       FailureReason = "code_collision"
	FailureConstraintViolation FailureReason = "constraint_violation"
	FailureNotFound            FailureReason = "not_found"
	FailureStore               FailureReason = "store"
	FailureCanceled            FailureReason = "canceled"
)

// Result is what a completed create or join attempt hands back to the UI
// layer.
type Result struct {
	Family     *models.Family
	Member     *models.Member
	Membership *models.Membership

	// PendingSync is the soft "will sync later" condition: the operation
	// completed locally but the remote push has not been confirmed.
	PendingSync bool
}

// pendingInput is the retained input Retry re-enters with.
type pendingInput struct {
	join    bool
	name    string
	code    string
	memberA *models.Member
}

// DefaultMaxAttempts is the retry ceiling per user-visible operation.
const DefaultMaxAttempts = 3

// Orchestrator drives the create/join state machine. It is safe to invoke
// from multiple call sites concurrently: uniqueness is enforced by the
// local store's transactional commit and the remote check, not by holding
// a lock across I/O.
type Orchestrator struct {
	store       *database.DB
	client      *cloud.Client
	sync        *syncer.Manager
	codes       *codegen.Generator
	maxAttempts int

	mu       sync.Mutex
	state    State
	failure  FailureReason
	lastErr  error
	attempts int
	retained *pendingInput
	subs     []chan State
}

// NewOrchestrator wires the orchestrator from its collaborators.
func NewOrchestrator(store *database.DB, client *cloud.Client, sync *syncer.Manager, codes *codegen.Generator) *Orchestrator {
	return &Orchestrator{
		store:       store,
		client:      client,
		sync:        sync,
		codes:       codes,
		maxAttempts: DefaultMaxAttempts,
		state:       StateIdle,
	}
}

// CurrentState returns a snapshot of the machine's state.
func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastFailure returns the most recent failure reason, or FailureNone.
func (o *Orchestrator) LastFailure() FailureReason {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failure
}

// IsOfflineMode reports the sync manager's explicit offline override.
func (o *Orchestrator) IsOfflineMode() bool {
	return o.sync.OfflineMode()
}

// CanRetry reports whether Retry would re-run the failed attempt: the
// failure must be classified retryable and the attempt ceiling not yet
// reached. Validation and constraint failures are never retryable.
func (o *Orchestrator) CanRetry() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateFailed || o.retained == nil {
		return false
	}
	if o.attempts >= o.maxAttempts {
		return false
	}
	return errs.Retryable(o.lastErr)
}

// Subscribe returns a channel receiving state transitions. Slow consumers
// miss transitions rather than blocking the machine.
func (o *Orchestrator) Subscribe() <-chan State {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := make(chan State, 16)
	o.subs = append(o.subs, ch)
	return ch
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	subs := o.subs
	o.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// fail records a terminal failure for this attempt.
func (o *Orchestrator) fail(reason FailureReason, err error) error {
	o.mu.Lock()
	o.failure = reason
	o.lastErr = err
	o.mu.Unlock()
	o.setState(StateFailed)
	return err
}

// begin starts a fresh operation with a full retry budget; only Retry
// advances the attempt counter toward the ceiling.
func (o *Orchestrator) begin(in *pendingInput) {
	o.mu.Lock()
	o.failure = FailureNone
	o.lastErr = nil
	o.retained = in
	o.attempts = 1
	o.mu.Unlock()
}

func (o *Orchestrator) complete() {
	o.mu.Lock()
	o.attempts = 0
	o.retained = nil
	o.mu.Unlock()
	o.setState(StateCompleted)
}

// CreateFamily runs the full create flow for the given creator profile.
// Remote unavailability never fails the operation: the result completes
// with PendingSync set and the entities queued for a later pass.
func (o *Orchestrator) CreateFamily(ctx context.Context, name string, creator *models.Member) (*Result, error) {
	o.begin(&pendingInput{name: name, memberA: creator})
	return o.runCreate(ctx, name, creator)
}

func (o *Orchestrator) runCreate(ctx context.Context, name string, creator *models.Member) (*Result, error) {
	o.setState(StateValidating)
	if err := validation.ValidateFamilyName(name); err != nil {
		return nil, o.fail(FailureValidation, err)
	}
	if err := validation.ValidateDisplayName(creator.DisplayName); err != nil {
		return nil, o.fail(FailureValidation, err)
	}

	o.setState(StateGeneratingCode)
	code, err := o.generateCode(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return nil, o.fail(FailureCanceled, err)
		case errs.CodeOf(err) == errs.CodeMaxRetriesExceeded:
			// The generator exhausted its own budget; surface a collision
			// the user may retry as a fresh attempt.
			err = errs.Wrap(errs.CodeCollisionDetected, "could not find a unique code", err)
			return nil, o.fail(FailureCodeCollision, err)
		case errs.CodeOf(err) == "":
			return nil, o.fail(FailureStore, err)
		default:
			return nil, o.fail(FailureCodeCollision, err)
		}
	}

	o.setState(StateCreatingLocally)
	family := models.NewFamily(name, code, creator.ID)
	owner := models.NewMembership(family.ID, creator.ID, models.RoleOwnerAdmin)
	if err := o.store.CreateFamily(ctx, family, creator, owner); err != nil {
		if errs.CodeOf(err) == errs.CodeConstraintViolation {
			return nil, o.fail(FailureConstraintViolation, err)
		}
		return nil, o.fail(FailureStore, err)
	}

	result := &Result{Family: family, Member: creator, Membership: owner}
	o.syncToCloud(ctx, result)
	o.complete()
	return result, nil
}

// JoinFamily runs the join flow: resolve the code to a family (locally
// first, then against the remote store) and link the member to it.
func (o *Orchestrator) JoinFamily(ctx context.Context, code string, member *models.Member) (*Result, error) {
	o.begin(&pendingInput{join: true, code: code, memberA: member})
	return o.runJoin(ctx, code, member)
}

func (o *Orchestrator) runJoin(ctx context.Context, code string, member *models.Member) (*Result, error) {
	o.setState(StateValidating)
	code = codegen.Normalize(code)
	if err := codegen.Validate(code); err != nil {
		return nil, o.fail(FailureValidation, err)
	}
	if err := validation.ValidateDisplayName(member.DisplayName); err != nil {
		return nil, o.fail(FailureValidation, err)
	}

	family, err := o.lookupFamily(ctx, code)
	if err != nil {
		return nil, o.fail(FailureStore, err)
	}
	if family == nil {
		return nil, o.fail(FailureNotFound,
			errs.Newf(errs.CodeValidationFailed, "no family with code %s", code))
	}

	o.setState(StateCreatingLocally)
	if err := o.ensureMember(ctx, member); err != nil {
		return nil, o.fail(FailureStore, err)
	}
	membership := models.NewMembership(family.ID, member.ID, models.RoleAdult)
	if err := o.store.InsertMembership(ctx, membership); err != nil {
		if errs.CodeOf(err) == errs.CodeConstraintViolation {
			return nil, o.fail(FailureConstraintViolation, err)
		}
		return nil, o.fail(FailureStore, err)
	}

	result := &Result{Family: family, Member: member, Membership: membership}
	o.syncToCloud(ctx, result)
	o.complete()
	return result, nil
}

// Retry re-enters the machine from Idle with the retained input.
func (o *Orchestrator) Retry(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.state != StateFailed || o.retained == nil {
		o.mu.Unlock()
		return nil, errors.New("nothing to retry")
	}
	if o.attempts >= o.maxAttempts {
		err := o.lastErr
		o.mu.Unlock()
		return nil, fmt.Errorf("retry ceiling reached: %w", err)
	}
	if !errs.Retryable(o.lastErr) {
		err := o.lastErr
		o.mu.Unlock()
		return nil, fmt.Errorf("failure is not retryable: %w", err)
	}
	in := o.retained
	o.attempts++
	o.failure = FailureNone
	o.lastErr = nil
	o.mu.Unlock()

	o.setState(StateIdle)
	if in.join {
		return o.runJoin(ctx, in.code, in.memberA)
	}
	return o.runCreate(ctx, in.name, in.memberA)
}

// generateCode delegates to the code generator. The local check is always
// a fresh read against the store; the remote check is skipped entirely in
// offline mode, leaving the local check authoritative.
func (o *Orchestrator) generateCode(ctx context.Context) (string, error) {
	checkLocal := func(ctx context.Context, code string) (bool, error) {
		inUse, err := o.store.CodeInUse(ctx, code)
		return !inUse, err
	}

	var checkRemote codegen.CheckFunc
	if !o.sync.OfflineMode() {
		checkRemote = func(ctx context.Context, code string) (bool, error) {
			inUse, err := o.client.CodeInUse(ctx, code)
			return !inUse, err
		}
	}

	return o.codes.Generate(ctx, checkLocal, checkRemote)
}

// lookupFamily resolves a join code, consulting the remote store when the
// code is unknown locally and the engine is online. A family found only
// remotely is landed locally first, already remote-authoritative.
func (o *Orchestrator) lookupFamily(ctx context.Context, code string) (*models.Family, error) {
	family, err := o.store.FamilyByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if family != nil {
		return family, nil
	}
	if o.sync.OfflineMode() {
		return nil, nil
	}

	remote, err := o.client.FamilyByCode(ctx, code)
	if err != nil {
		if errs.Retryable(err) {
			return nil, err
		}
		// Non-retryable remote errors degrade to "not found" locally.
		log.Printf("orchestrator: remote code lookup failed: %v", err)
		return nil, nil
	}
	if remote == nil {
		return nil, nil
	}
	if err := o.store.InsertFamily(ctx, remote); err != nil {
		return nil, err
	}
	return remote, nil
}

// ensureMember lands the member profile locally if it is not there yet.
// Used by the join flow; the create flow commits the creator's row inside
// the family transaction.
func (o *Orchestrator) ensureMember(ctx context.Context, member *models.Member) error {
	existing, err := o.store.MemberByID(ctx, member.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return o.store.InsertMember(ctx, member)
}

// syncToCloud is the best-effort push. Whatever the outcome, the attempt
// proceeds to Completed; a failed or skipped push only sets PendingSync so
// the caller can surface a soft warning.
func (o *Orchestrator) syncToCloud(ctx context.Context, result *Result) {
	o.setState(StateSyncingToCloud)

	report, err := o.sync.SyncPendingRecords(ctx)
	if err != nil {
		log.Printf("orchestrator: sync pass failed, completing local-only: %v", err)
		result.PendingSync = true
		return
	}
	if report.Skipped > 0 || len(report.Failed) > 0 {
		result.PendingSync = true
	}
	for _, failure := range report.Failed {
		log.Printf("orchestrator: will sync later: %v", failure)
	}

	o.refresh(ctx, result)
}

// refresh reloads the result entities so their sync metadata reflects the
// push outcome.
func (o *Orchestrator) refresh(ctx context.Context, result *Result) {
	if result.Family != nil {
		if fresh, err := o.store.FamilyByID(ctx, result.Family.ID); err == nil && fresh != nil {
			result.Family = fresh
		}
	}
	if result.Member != nil {
		if fresh, err := o.store.MemberByID(ctx, result.Member.ID); err == nil && fresh != nil {
			result.Member = fresh
		}
	}
	if result.Membership != nil {
		if fresh, err := o.store.MembershipByID(ctx, result.Membership.ID); err == nil && fresh != nil {
			result.Membership = fresh
		}
	}
}
