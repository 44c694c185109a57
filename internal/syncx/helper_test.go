package syncx

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/dmitrijs2005/remindsafe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBox is a reversible cipher fake: ciphertext is "enc:<user>:<record>:<pt>".
// Failures are injectable per plaintext value.
type fakeBox struct {
	encryptErr map[string]error // keyed by plaintext
	decryptErr map[string]error // keyed by ciphertext
	corrupt    map[string]bool  // roundtrip returns wrong plaintext
	encCalls   int
	decCalls   int
}

func newFakeBox() *fakeBox {
	return &fakeBox{
		encryptErr: make(map[string]error),
		decryptErr: make(map[string]error),
		corrupt:    make(map[string]bool),
	}
}

func (b *fakeBox) Encrypt(ctx context.Context, userID, recordID, plaintext string) (string, error) {
	b.encCalls++
	if err := b.encryptErr[plaintext]; err != nil {
		return "", err
	}
	return "enc:" + userID + ":" + recordID + ":" + plaintext, nil
}

func (b *fakeBox) Decrypt(ctx context.Context, userID, recordID, ciphertext string) (string, error) {
	b.decCalls++
	if err := b.decryptErr[ciphertext]; err != nil {
		return "", err
	}
	prefix := "enc:" + userID + ":" + recordID + ":"
	if !strings.HasPrefix(ciphertext, prefix) {
		return "", errors.New("bad ciphertext")
	}
	pt := strings.TrimPrefix(ciphertext, prefix)
	if b.corrupt[ciphertext] {
		return pt + "-corrupted", nil
	}
	return pt, nil
}

func newHelper(box *fakeBox) (*EncryptionHelper, *RetryQueue) {
	q := NewRetryQueue(defaultCfg(), nil)
	return NewEncryptionHelper(box, q, nil), q
}

func testReminder() *models.Reminder {
	return &models.Reminder{
		ID: "r1", NoteID: "n1", UserID: "u1",
		Title: "dentist", Body: "friday 9am", LocationName: "clinic",
	}
}

func TestEncryptForSync_Success(t *testing.T) {
	box := newFakeBox()
	h, q := newHelper(box)

	r := testReminder()
	out := h.EncryptForSync(context.Background(), r, "u1")

	require.Equal(t, OutcomeSuccess, out.Status)
	require.NotNil(t, out.TitleEnc)
	assert.Equal(t, "enc:u1:r1:dentist", *out.TitleEnc)
	assert.Equal(t, CurrentEncryptionVersion, out.Version)
	assert.Equal(t, 0, q.Len())

	out.Apply(r)
	require.NotNil(t, r.EncryptionVersion)
	assert.Equal(t, 1, *r.EncryptionVersion)
	assert.Equal(t, "enc:u1:r1:friday 9am", *r.BodyEnc)
}

func TestEncryptForSync_EmptyFieldsStayNil(t *testing.T) {
	box := newFakeBox()
	h, _ := newHelper(box)

	r := testReminder()
	r.LocationName = ""
	out := h.EncryptForSync(context.Background(), r, "u1")

	require.Equal(t, OutcomeSuccess, out.Status)
	assert.Nil(t, out.LocationNameEnc)
	assert.NotNil(t, out.TitleEnc)
}

func TestEncryptForSync_ReusesValidCiphertext(t *testing.T) {
	box := newFakeBox()
	h, _ := newHelper(box)

	r := testReminder()
	// pre-populate a consistent encrypted view
	first := h.EncryptForSync(context.Background(), r, "u1")
	require.Equal(t, OutcomeSuccess, first.Status)
	first.Apply(r)

	box.encCalls = 0
	second := h.EncryptForSync(context.Background(), r, "u1")
	require.Equal(t, OutcomeSuccess, second.Status)
	assert.Equal(t, 0, box.encCalls, "valid ciphertext must be reused, not re-encrypted")
	assert.Equal(t, *first.TitleEnc, *second.TitleEnc)
}

func TestEncryptForSync_StaleCiphertextReencrypted(t *testing.T) {
	box := newFakeBox()
	h, _ := newHelper(box)

	r := testReminder()
	out := h.EncryptForSync(context.Background(), r, "u1")
	require.Equal(t, OutcomeSuccess, out.Status)
	out.Apply(r)

	// plaintext edited after encryption: views diverged
	r.Title = "dentist rescheduled"
	box.encCalls = 0
	out = h.EncryptForSync(context.Background(), r, "u1")

	require.Equal(t, OutcomeSuccess, out.Status)
	assert.Positive(t, box.encCalls)
	assert.Equal(t, "enc:u1:r1:dentist rescheduled", *out.TitleEnc)
}

func TestEncryptForSync_RetryableFailureEnqueues(t *testing.T) {
	box := newFakeBox()
	box.encryptErr["friday 9am"] = common.ErrKeyNotUnlocked
	h, q := newHelper(box)

	r := testReminder()
	out := h.EncryptForSync(context.Background(), r, "u1")

	require.Equal(t, OutcomeRetryable, out.Status)
	assert.ErrorIs(t, out.Err, common.ErrKeyNotUnlocked)
	assert.True(t, q.Contains("r1"))
}

func TestEncryptForSync_VerificationFailureIsRetryable(t *testing.T) {
	box := newFakeBox()
	box.corrupt["enc:u1:r1:dentist"] = true
	h, q := newHelper(box)

	r := testReminder()
	out := h.EncryptForSync(context.Background(), r, "u1")

	require.Equal(t, OutcomeRetryable, out.Status)
	assert.Equal(t, "Encryption verification failed: title", out.Reason)
	assert.True(t, q.Contains("r1"), "verification failures must be queued for retry")
}

func TestEncryptForSync_FatalFailureNotEnqueued(t *testing.T) {
	box := newFakeBox()
	box.encryptErr["dentist"] = common.ErrInvalidKeyMaterial
	h, q := newHelper(box)

	r := testReminder()
	out := h.EncryptForSync(context.Background(), r, "u1")

	require.Equal(t, OutcomeFatal, out.Status)
	assert.False(t, q.Contains("r1"), "corrupt key material must not be retried")
}

func TestEncryptForSync_SuccessDequeuesPriorFailure(t *testing.T) {
	box := newFakeBox()
	h, q := newHelper(box)

	require.True(t, q.Enqueue("r1", "n1", "u1"))

	r := testReminder()
	out := h.EncryptForSync(context.Background(), r, "u1")

	require.Equal(t, OutcomeSuccess, out.Status)
	assert.False(t, q.Contains("r1"))
}
