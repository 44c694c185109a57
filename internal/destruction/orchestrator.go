// Package destruction implements multi-location key destruction with
// confirmation token gating and post-destruction verification.
package destruction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/dmitrijs2005/remindsafe/internal/keyring"
	"github.com/dmitrijs2005/remindsafe/internal/logging"
)

// Confirmation token templates. The caller must echo the exact token for the
// requested scope; anything else aborts before a single key is touched.
func DestroyAllKeysToken(userID string) string {
	return "DESTROY_ALL_KEYS_" + userID
}

func DestroyAMKToken(userID string) string {
	return "DESTROY_AMK_" + userID
}

func DestroyCrossDeviceKeysToken(userID string) string {
	return "DESTROY_CROSS_DEVICE_KEYS_" + userID
}

// target is one key slot in one location.
type target struct {
	location string
	store    keyring.Store
	name     string
}

func (t target) slot() string { return t.location + "/" + t.name }

// Orchestrator destroys key material across the in-memory keyring, the local
// secure store and the remote escrow. Destruction is best-effort per slot:
// one failing location never stops the others, and the report records every
// slot's fate.
type Orchestrator struct {
	memory keyring.Store
	local  keyring.Store
	remote keyring.Store
	log    logging.Logger
}

func NewOrchestrator(memory, local, remote keyring.Store, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NoopLogger{}
	}
	return &Orchestrator{memory: memory, local: local, remote: remote, log: log}
}

func (o *Orchestrator) allTargets() []target {
	return []target{
		{location: "memory", store: o.memory, name: keyring.KeyDevice},
		{location: "memory", store: o.memory, name: keyring.KeyLegacy},
		{location: "local", store: o.local, name: keyring.KeyAMK},
		{location: "local", store: o.local, name: keyring.KeyCrossDevice},
		{location: "remote", store: o.remote, name: keyring.KeyAMK},
		{location: "remote", store: o.remote, name: keyring.KeyCrossDevice},
	}
}

// DestroyAllKeys destroys every key slot in every location. The token must
// equal DestroyAllKeysToken(userID). verifyBefore records a pre-destruction
// existence snapshot; the post-destruction re-read runs on every call.
func (o *Orchestrator) DestroyAllKeys(ctx context.Context, userID, token string, verifyBefore bool) (*Report, error) {
	if token != DestroyAllKeysToken(userID) {
		return nil, fmt.Errorf("%w: destroy all keys for user %s", common.ErrInvalidConfirmationToken, userID)
	}
	return o.destroy(ctx, userID, o.allTargets(), verifyBefore)
}

// DestroyAccountMasterKey destroys the AMK in the local store and the remote
// escrow. The token must equal DestroyAMKToken(userID).
func (o *Orchestrator) DestroyAccountMasterKey(ctx context.Context, userID, token string, verifyBefore bool) (*Report, error) {
	if token != DestroyAMKToken(userID) {
		return nil, fmt.Errorf("%w: destroy account master key for user %s", common.ErrInvalidConfirmationToken, userID)
	}
	targets := []target{
		{location: "local", store: o.local, name: keyring.KeyAMK},
		{location: "remote", store: o.remote, name: keyring.KeyAMK},
	}
	return o.destroy(ctx, userID, targets, verifyBefore)
}

// DestroyCrossDeviceKeys destroys the cross-device key in the local store and
// the remote escrow. The token must equal DestroyCrossDeviceKeysToken(userID).
func (o *Orchestrator) DestroyCrossDeviceKeys(ctx context.Context, userID, token string, verifyBefore bool) (*Report, error) {
	if token != DestroyCrossDeviceKeysToken(userID) {
		return nil, fmt.Errorf("%w: destroy cross-device keys for user %s", common.ErrInvalidConfirmationToken, userID)
	}
	targets := []target{
		{location: "local", store: o.local, name: keyring.KeyCrossDevice},
		{location: "remote", store: o.remote, name: keyring.KeyCrossDevice},
	}
	return o.destroy(ctx, userID, targets, verifyBefore)
}

// destroy deletes every target slot, then re-reads each one. The re-read is
// unconditional: destruction is confirmed, never assumed. verifyBefore only
// controls the pre-destruction existence snapshot.
func (o *Orchestrator) destroy(ctx context.Context, userID string, targets []target, verifyBefore bool) (*Report, error) {
	report := newReport(userID, time.Now())

	if verifyBefore {
		report.PreChecked = true
		for _, t := range targets {
			existed, err := o.exists(ctx, t, userID)
			if err != nil {
				report.addError("pre-check %s: %v", t.slot(), err)
			}
			report.ExistedBefore[t.slot()] = existed
		}
	}

	// Every location is attempted even when an earlier one fails; partial
	// destruction beats none.
	for _, t := range targets {
		if err := t.store.Delete(ctx, userID, t.name); err != nil {
			report.addError("destroy %s: %v", t.slot(), err)
			o.log.Error(ctx, "key destruction failed",
				"user_id", userID, "slot", t.slot(), "error", err)
			continue
		}
		report.Destroyed[t.slot()] = true
	}

	report.Verified = true
	var stillPresent []string
	for _, t := range targets {
		present, err := o.exists(ctx, t, userID)
		if err != nil {
			report.addError("verify %s: %v", t.slot(), err)
		}
		report.ExistsAfter[t.slot()] = present
		if present {
			stillPresent = append(stillPresent, t.slot())
		}
	}

	report.FinishedAt = time.Now()
	report.Success = len(report.Errors) == 0 && len(stillPresent) == 0

	if len(stillPresent) > 0 {
		return report, fmt.Errorf("%w: %v", common.ErrKeyStillPresent, stillPresent)
	}
	if len(report.Errors) > 0 {
		return report, fmt.Errorf("key destruction incomplete for user %s: %d errors", userID, len(report.Errors))
	}
	o.log.Info(ctx, "key destruction complete", "user_id", userID, "slots", len(targets))
	return report, nil
}

func (o *Orchestrator) exists(ctx context.Context, t target, userID string) (bool, error) {
	_, err := t.store.Get(ctx, userID, t.name)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
