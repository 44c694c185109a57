// Package anonymize implements the seven-phase account anonymization
// workflow: validation, inventory, key destruction, content purge, account
// scrub, sync invalidation and the final audit with its certificate.
package anonymize

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/auth"
	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/dmitrijs2005/remindsafe/internal/destruction"
	"github.com/dmitrijs2005/remindsafe/internal/logging"
	"github.com/dmitrijs2005/remindsafe/internal/repositories/remote"
)

// AnonymizeAccountToken is the confirmation token the caller must echo
// verbatim to start the workflow.
func AnonymizeAccountToken(userID string) string {
	return "ANONYMIZE_ACCOUNT_" + userID
}

// AccountStore is the server-side account surface the workflow needs.
type AccountStore interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	CountUserContent(ctx context.Context, userID string) (map[string]int64, error)
	PurgeUserContent(ctx context.Context, userID string) (map[string]int64, error)
	AnonymizeUser(ctx context.Context, userID string) error
	ClearUserMetadata(ctx context.Context, userID string) (map[string]int64, error)
}

// ContentStore purges device-local content.
type ContentStore interface {
	PurgeUser(ctx context.Context, userID string) error
}

// KeyDestroyer destroys key material across all locations.
type KeyDestroyer interface {
	DestroyAllKeys(ctx context.Context, userID, token string, verifyBefore bool) (*destruction.Report, error)
}

// SyncInvalidator tears down sync state (cursors, queues, locks) for a user.
type SyncInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// AuditWriter appends to the audit trail.
type AuditWriter interface {
	Record(ctx context.Context, ev *remote.AuditEvent) error
}

// Request carries the caller's credentials for one anonymization run.
type Request struct {
	UserID            string
	AuthToken         string
	ConfirmationToken string
}

type Workflow struct {
	accounts     AccountStore
	localContent ContentStore
	keys         KeyDestroyer
	sync         SyncInvalidator
	audit        AuditWriter
	jwtSecret    []byte
	progress     ProgressFunc
	log          logging.Logger
}

func NewWorkflow(
	accounts AccountStore,
	localContent ContentStore,
	keys KeyDestroyer,
	sync SyncInvalidator,
	audit AuditWriter,
	jwtSecret []byte,
	progress ProgressFunc,
	log logging.Logger,
) *Workflow {
	if log == nil {
		log = logging.NoopLogger{}
	}
	return &Workflow{
		accounts:     accounts,
		localContent: localContent,
		keys:         keys,
		sync:         sync,
		audit:        audit,
		jwtSecret:    jwtSecret,
		progress:     progress,
		log:          log,
	}
}

// Run executes the workflow. Phases 1 and 2 may abort with no side effects.
// Phase 3 is the point of no return: from there every phase runs to the end
// regardless of failures, so partial destruction is always followed by the
// audit trail and certificate material.
func (w *Workflow) Run(ctx context.Context, req Request) (*Report, error) {
	report := &Report{UserID: req.UserID, StartedAt: time.Now()}

	// Phase 1: credentials and existence checks only; nothing is written.
	if err := w.validate(ctx, req); err != nil {
		report.addPhase(PhaseValidation, PhaseFailed, "", err)
		w.abort(report)
		return report, err
	}
	report.addPhase(PhaseValidation, PhaseCompleted, "credentials verified, account found")
	w.emit(report, PhaseValidation)

	// Phase 2: inventory, still read-only and abortable.
	counts, err := w.accounts.CountUserContent(ctx, req.UserID)
	if err != nil {
		report.addPhase(PhaseInventory, PhaseFailed, "", err)
		w.abort(report)
		return report, fmt.Errorf("content inventory failed: %w", err)
	}
	report.ContentCounts = counts
	report.addPhase(PhaseInventory, PhaseCompleted, countsSummary(counts))
	w.emit(report, PhaseInventory)

	// Phase 3: the point of no return is flagged before the first key dies.
	report.PointOfNoReturnReached = true
	destroyReport, err := w.keys.DestroyAllKeys(ctx, req.UserID,
		destruction.DestroyAllKeysToken(req.UserID), true)
	report.KeyDestruction = destroyReport
	if err != nil {
		report.addPhase(PhaseKeyDestruction, PhaseFailed, "", err)
		w.log.Error(ctx, "key destruction failed past the point of no return",
			"user_id", req.UserID, "error", err)
	} else {
		report.addPhase(PhaseKeyDestruction, PhaseCompleted, "all key locations destroyed and verified")
	}
	w.emit(report, PhaseKeyDestruction)

	// Phase 4: content purge, remote then local, best effort.
	purged, purgeErr := w.accounts.PurgeUserContent(ctx, req.UserID)
	report.PurgedCounts = purged
	localErr := w.localContent.PurgeUser(ctx, req.UserID)
	if purgeErr != nil || localErr != nil {
		report.addPhase(PhaseContentPurge, PhaseFailed, countsSummary(purged), purgeErr, localErr)
	} else {
		report.addPhase(PhaseContentPurge, PhaseCompleted, countsSummary(purged))
	}
	w.emit(report, PhaseContentPurge)

	// Phase 5: scrub the account row and clear unencrypted metadata (tags,
	// saved searches, preferences, devices, audit details), best effort.
	scrubErr := w.accounts.AnonymizeUser(ctx, req.UserID)
	cleared, clearErr := w.accounts.ClearUserMetadata(ctx, req.UserID)
	report.ClearedCounts = cleared
	if scrubErr != nil || clearErr != nil {
		report.addPhase(PhaseAccountScrub, PhaseFailed, countsSummary(cleared), scrubErr, clearErr)
	} else {
		report.addPhase(PhaseAccountScrub, PhaseCompleted,
			fmt.Sprintf("identity columns scrubbed, metadata cleared (%s)", countsSummary(cleared)))
	}
	w.emit(report, PhaseAccountScrub)

	// Phase 6: drop sync cursors, queued retries and record locks.
	if err := w.sync.Invalidate(ctx, req.UserID); err != nil {
		report.addPhase(PhaseSyncInvalidate, PhaseFailed, "", err)
	} else {
		report.addPhase(PhaseSyncInvalidate, PhaseCompleted, "sync state invalidated")
	}
	w.emit(report, PhaseSyncInvalidate)

	// Phase 7: the audit event and the tamper-evident proof hash.
	auditErr := w.audit.Record(ctx, &remote.AuditEvent{
		UserID:  req.UserID,
		Action:  "account_anonymized",
		Details: countsSummary(report.ContentCounts),
	})
	if auditErr != nil {
		report.addPhase(PhaseFinalAudit, PhaseFailed, "", auditErr)
	} else {
		report.addPhase(PhaseFinalAudit, PhaseCompleted, "audit event recorded")
	}

	report.FinishedAt = time.Now()
	report.Success = !report.phaseFailed()

	hash, hashErr := ComputeProofHash(report)
	if hashErr != nil {
		return report, hashErr
	}
	report.ProofHash = hash
	w.emit(report, PhaseFinalAudit)

	if !report.Success {
		return report, fmt.Errorf("anonymization of user %s completed with failures", req.UserID)
	}
	w.log.Info(ctx, "account anonymized", "user_id", req.UserID, "proof_hash", hash)
	return report, nil
}

func (w *Workflow) validate(ctx context.Context, req Request) error {
	uid, err := auth.UserIDFromToken(req.AuthToken, w.jwtSecret)
	if err != nil {
		return err
	}
	if uid != req.UserID {
		return fmt.Errorf("%w: token issued for a different user", common.ErrorUnauthorized)
	}
	if req.ConfirmationToken != AnonymizeAccountToken(req.UserID) {
		return fmt.Errorf("%w: anonymize account for user %s", common.ErrInvalidConfirmationToken, req.UserID)
	}
	exists, err := w.accounts.UserExists(ctx, req.UserID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: user %s", common.ErrorNotFound, req.UserID)
	}
	return nil
}

// abort finalizes a run that stopped before the point of no return. Phases
// that never ran are recorded as skipped so the report always covers all
// seven.
func (w *Workflow) abort(report *Report) {
	report.Aborted = true
	report.Success = false
	last := 0
	if n := len(report.Phases); n > 0 {
		last = report.Phases[n-1].Phase
	}
	for phase := last + 1; phase <= TotalPhases; phase++ {
		report.addPhase(phase, PhaseSkipped, "not reached")
	}
	report.FinishedAt = time.Now()
}

func (w *Workflow) emit(report *Report, phase int) {
	if w.progress == nil {
		return
	}
	w.progress(progressFor(phase, report.PointOfNoReturnReached))
}
