package syncx

import "github.com/dmitrijs2005/remindsafe/internal/models"

// ResolveConflict merges a local and a remote version of the same record.
// Rules are evaluated per field, not last-writer-wins for the whole record:
//
//   - Content (plaintext + ciphertext + version): the newer side wins,
//     unless the newer side lacks encryption while the older side has it.
//     Encryption is never downgraded to plaintext-only.
//   - SnoozedUntil: prefer the non-nil side; both set, prefer the newer.
//   - TriggerCount: summed, since each side counts independent occurrences.
//   - IsActive: false is sticky; deactivation wins regardless of timestamp.
//   - Remaining scalars: newest UpdatedAt wins.
//
// Neither input is mutated.
func ResolveConflict(local, remote *models.Reminder) *models.Reminder {
	newer, older := local, remote
	if remote.UpdatedAt.After(local.UpdatedAt) {
		newer, older = remote, local
	}

	merged := newer.Clone()

	// Never downgrade from encrypted to plaintext-only: when only the older
	// side carries ciphertext, its whole content view is kept so the
	// ciphertext still decrypts to the plaintext stored beside it.
	if !newer.Encrypted() && older.Encrypted() {
		merged.Title = older.Title
		merged.Body = older.Body
		merged.LocationName = older.LocationName
		merged.TitleEnc = cloneStringPtr(older.TitleEnc)
		merged.BodyEnc = cloneStringPtr(older.BodyEnc)
		merged.LocationNameEnc = cloneStringPtr(older.LocationNameEnc)
		v := *older.EncryptionVersion
		merged.EncryptionVersion = &v
	}

	if merged.SnoozedUntil == nil && older.SnoozedUntil != nil {
		t := *older.SnoozedUntil
		merged.SnoozedUntil = &t
	}

	merged.TriggerCount = local.TriggerCount + remote.TriggerCount

	merged.IsActive = local.IsActive && remote.IsActive

	// Deleted is terminal for the same reason the active flag is sticky.
	merged.Deleted = local.Deleted || remote.Deleted

	return merged
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
