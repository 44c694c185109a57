package syncx

import "github.com/dmitrijs2005/remindsafe/internal/models"

// OutcomeStatus tags an EncryptionOutcome. Call sites must handle all three
// variants; retryable and fatal failures take different paths (queue vs
// manual remediation).
type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomeRetryable
	OutcomeFatal
)

// EncryptionOutcome is the tagged result of an encrypt-for-sync attempt.
type EncryptionOutcome struct {
	Status OutcomeStatus

	// Populated on success.
	TitleEnc        *string
	BodyEnc         *string
	LocationNameEnc *string
	Version         int

	// Populated on failure.
	Reason string
	Err    error
}

func successOutcome(titleEnc, bodyEnc, locationEnc *string, version int) EncryptionOutcome {
	return EncryptionOutcome{
		Status:          OutcomeSuccess,
		TitleEnc:        titleEnc,
		BodyEnc:         bodyEnc,
		LocationNameEnc: locationEnc,
		Version:         version,
	}
}

// RetryableFailure marks a failure worth queueing for backoff retry.
func RetryableFailure(reason string, err error) EncryptionOutcome {
	return EncryptionOutcome{Status: OutcomeRetryable, Reason: reason, Err: err}
}

// FatalFailure marks a failure that retrying cannot fix (corrupt key
// material); it is surfaced for manual intervention instead of queued.
func FatalFailure(reason string, err error) EncryptionOutcome {
	return EncryptionOutcome{Status: OutcomeFatal, Reason: reason, Err: err}
}

// Apply copies a successful outcome's ciphertext and version onto r. The
// caller persists r; the helper itself never touches storage.
func (o EncryptionOutcome) Apply(r *models.Reminder) {
	if o.Status != OutcomeSuccess {
		return
	}
	r.TitleEnc = o.TitleEnc
	r.BodyEnc = o.BodyEnc
	r.LocationNameEnc = o.LocationNameEnc
	v := o.Version
	r.EncryptionVersion = &v
}
