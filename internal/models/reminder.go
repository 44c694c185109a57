// Package models defines the record types exchanged between the local store,
// the sync engine, and the remote store.
package models

import "time"

// Reminder carries both a plaintext view (Title, Body, LocationName) and a
// parallel encrypted view (TitleEnc, BodyEnc, LocationNameEnc,
// EncryptionVersion) of its content.
//
// Invariant: if EncryptionVersion is set, every encrypted field whose
// plaintext counterpart is non-empty must be set and must decrypt back to
// that plaintext (verified at write time). A record with a nil
// EncryptionVersion is legacy plaintext-only and is valid.
type Reminder struct {
	ID           string
	NoteID       string
	UserID       string
	Title        string
	Body         string
	LocationName string

	TitleEnc          *string
	BodyEnc           *string
	LocationNameEnc   *string
	EncryptionVersion *int

	RemindAt           *time.Time
	IsActive           bool
	RecurrencePattern  *string
	RecurrenceInterval *int
	SnoozedUntil       *time.Time
	SnoozeCount        int
	TriggerCount       int

	CreatedAt time.Time
	// UpdatedAt is the mutation timestamp, authoritative for conflict ordering.
	UpdatedAt time.Time

	Deleted bool
}

// Encrypted reports whether the record carries an encrypted view.
func (r *Reminder) Encrypted() bool {
	return r.EncryptionVersion != nil
}

// Clone returns a deep copy. Pointer fields are duplicated so that merge
// logic can mutate the copy without aliasing either input.
func (r *Reminder) Clone() *Reminder {
	c := *r
	c.TitleEnc = cloneString(r.TitleEnc)
	c.BodyEnc = cloneString(r.BodyEnc)
	c.LocationNameEnc = cloneString(r.LocationNameEnc)
	c.EncryptionVersion = cloneInt(r.EncryptionVersion)
	c.RemindAt = cloneTime(r.RemindAt)
	c.RecurrencePattern = cloneString(r.RecurrencePattern)
	c.RecurrenceInterval = cloneInt(r.RecurrenceInterval)
	c.SnoozedUntil = cloneTime(r.SnoozedUntil)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
