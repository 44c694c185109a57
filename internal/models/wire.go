package models

import "time"

// WireReminder is the record shape exchanged with remote storage. All fields
// except the identifiers are optional on the wire; an absent encrypted field
// (null) is a legal, meaningful state distinct from empty bytes.
type WireReminder struct {
	ID                 string     `json:"id"`
	NoteID             string     `json:"note_id"`
	UserID             string     `json:"user_id"`
	Title              *string    `json:"title,omitempty"`
	Body               *string    `json:"body,omitempty"`
	LocationName       *string    `json:"location_name,omitempty"`
	TitleEnc           *string    `json:"title_enc,omitempty"`
	BodyEnc            *string    `json:"body_enc,omitempty"`
	LocationNameEnc    *string    `json:"location_name_enc,omitempty"`
	EncryptionVersion  *int       `json:"encryption_version,omitempty"`
	RemindAt           *time.Time `json:"remind_at,omitempty"`
	IsActive           bool       `json:"is_active"`
	RecurrencePattern  *string    `json:"recurrence_pattern,omitempty"`
	RecurrenceInterval *int       `json:"recurrence_interval,omitempty"`
	SnoozedUntil       *time.Time `json:"snoozed_until,omitempty"`
	SnoozeCount        int        `json:"snooze_count"`
	TriggerCount       int        `json:"trigger_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Deleted            bool       `json:"deleted"`
}

// ToWire converts a Reminder to its wire shape. Empty plaintext strings map
// to absent wire fields.
func (r *Reminder) ToWire() *WireReminder {
	w := &WireReminder{
		ID:                 r.ID,
		NoteID:             r.NoteID,
		UserID:             r.UserID,
		Title:              optString(r.Title),
		Body:               optString(r.Body),
		LocationName:       optString(r.LocationName),
		TitleEnc:           cloneString(r.TitleEnc),
		BodyEnc:            cloneString(r.BodyEnc),
		LocationNameEnc:    cloneString(r.LocationNameEnc),
		EncryptionVersion:  cloneInt(r.EncryptionVersion),
		RemindAt:           cloneTime(r.RemindAt),
		IsActive:           r.IsActive,
		RecurrencePattern:  cloneString(r.RecurrencePattern),
		RecurrenceInterval: cloneInt(r.RecurrenceInterval),
		SnoozedUntil:       cloneTime(r.SnoozedUntil),
		SnoozeCount:        r.SnoozeCount,
		TriggerCount:       r.TriggerCount,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Deleted:            r.Deleted,
	}
	return w
}

// FromWire converts a wire record back into a Reminder.
func FromWire(w *WireReminder) *Reminder {
	r := &Reminder{
		ID:                 w.ID,
		NoteID:             w.NoteID,
		UserID:             w.UserID,
		Title:              derefString(w.Title),
		Body:               derefString(w.Body),
		LocationName:       derefString(w.LocationName),
		TitleEnc:           cloneString(w.TitleEnc),
		BodyEnc:            cloneString(w.BodyEnc),
		LocationNameEnc:    cloneString(w.LocationNameEnc),
		EncryptionVersion:  cloneInt(w.EncryptionVersion),
		RemindAt:           cloneTime(w.RemindAt),
		IsActive:           w.IsActive,
		RecurrencePattern:  cloneString(w.RecurrencePattern),
		RecurrenceInterval: cloneInt(w.RecurrenceInterval),
		SnoozedUntil:       cloneTime(w.SnoozedUntil),
		SnoozeCount:        w.SnoozeCount,
		TriggerCount:       w.TriggerCount,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
		Deleted:            w.Deleted,
	}
	return r
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
