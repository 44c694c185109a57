package syncx

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/dmitrijs2005/remindsafe/internal/cryptox"
	"github.com/dmitrijs2005/remindsafe/internal/logging"
	"github.com/dmitrijs2005/remindsafe/internal/models"
)

// CurrentEncryptionVersion is stamped on records whose ciphertext passed
// roundtrip verification.
const CurrentEncryptionVersion = 1

// EncryptionHelper prepares a record's encrypted view for outbound sync:
// it reuses existing valid ciphertext, re-encrypts when needed, verifies
// every ciphertext roundtrips before it may be persisted, and keeps the
// retry queue in step with failures and successes.
type EncryptionHelper struct {
	box   cryptox.CipherBox
	queue *RetryQueue
	log   logging.Logger
}

func NewEncryptionHelper(box cryptox.CipherBox, queue *RetryQueue, log logging.Logger) *EncryptionHelper {
	if log == nil {
		log = logging.NoopLogger{}
	}
	return &EncryptionHelper{box: box, queue: queue, log: log}
}

type encField struct {
	name      string
	plaintext string
	existing  *string
}

func recordFields(r *models.Reminder) []encField {
	return []encField{
		{name: "title", plaintext: r.Title, existing: r.TitleEnc},
		{name: "body", plaintext: r.Body, existing: r.BodyEnc},
		{name: "locationName", plaintext: r.LocationName, existing: r.LocationNameEnc},
	}
}

// EncryptForSync produces the encrypted view for r. It never persists
// anything itself; the caller applies a successful outcome and stores the
// record. Retryable failures are enqueued for backoff; fatal failures
// (corrupt key material) are not, since retrying cannot succeed.
func (h *EncryptionHelper) EncryptForSync(ctx context.Context, r *models.Reminder, userID string) EncryptionOutcome {
	// Reuse existing ciphertext when it still decrypts to the current
	// plaintext; a mismatch or decrypt error means the views diverged and
	// the record must be re-encrypted.
	if r.Encrypted() && h.existingCiphertextValid(ctx, r, userID) {
		h.queue.Dequeue(r.ID)
		return successOutcome(r.TitleEnc, r.BodyEnc, r.LocationNameEnc, *r.EncryptionVersion)
	}

	encrypted := make(map[string]*string, 3)
	for _, f := range recordFields(r) {
		if f.plaintext == "" {
			encrypted[f.name] = nil
			continue
		}
		ct, err := h.box.Encrypt(ctx, userID, r.ID, f.plaintext)
		if err != nil {
			return h.failure(ctx, r, userID, fmt.Sprintf("encryption failed: %s", f.name), err)
		}
		encrypted[f.name] = &ct
	}

	// Verification: decrypt what we just produced and compare against the
	// source plaintext. Ciphertext that fails its own roundtrip check must
	// never be persisted.
	for _, f := range recordFields(r) {
		ct := encrypted[f.name]
		if ct == nil {
			continue
		}
		pt, err := h.box.Decrypt(ctx, userID, r.ID, *ct)
		if err != nil || pt != f.plaintext {
			return h.failure(ctx, r, userID,
				fmt.Sprintf("Encryption verification failed: %s", f.name), err)
		}
	}

	h.queue.Dequeue(r.ID)
	return successOutcome(encrypted["title"], encrypted["body"], encrypted["locationName"], CurrentEncryptionVersion)
}

// existingCiphertextValid decrypts each present encrypted field and compares
// it to the plaintext counterpart. A field with plaintext but no ciphertext
// fails the check.
func (h *EncryptionHelper) existingCiphertextValid(ctx context.Context, r *models.Reminder, userID string) bool {
	for _, f := range recordFields(r) {
		if f.plaintext == "" {
			continue
		}
		if f.existing == nil {
			return false
		}
		pt, err := h.box.Decrypt(ctx, userID, r.ID, *f.existing)
		if err != nil || pt != f.plaintext {
			return false
		}
	}
	return true
}

func (h *EncryptionHelper) failure(ctx context.Context, r *models.Reminder, userID, reason string, err error) EncryptionOutcome {
	if errors.Is(err, common.ErrInvalidKeyMaterial) {
		// Corrupt key: retrying cannot succeed. Drop from the retry path
		// and surface for manual intervention.
		h.queue.Dequeue(r.ID)
		h.log.Error(ctx, "non-retryable encryption failure",
			"record_id", r.ID, "reason", reason, "error", err)
		return FatalFailure(reason, err)
	}

	h.queue.Enqueue(r.ID, r.NoteID, userID)
	h.log.Warn(ctx, "encryption failed, queued for retry",
		"record_id", r.ID, "reason", reason, "error", err)
	return RetryableFailure(reason, err)
}
