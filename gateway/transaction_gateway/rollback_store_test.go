package transaction_gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdeploy-cli/domain"
)

func TestRollbackStore_CreateLinksDeployment(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(tx.ID, domain.StatusFailed))

	rb, err := store.CreateRollback(tx.ID, domain.ReasonStageFailed, domain.RollbackAutomated, []string{"npm"})
	require.NoError(t, err)

	assert.Contains(t, rb.ID, "rb-")
	assert.Equal(t, tx.ID, rb.DeploymentID)
	assert.Equal(t, "my-lib", rb.Package)
	assert.Equal(t, "1.2.3", rb.Version)
	assert.Equal(t, domain.StatusInProgress, rb.Status)
	assert.Equal(t, domain.PlatformPending, rb.Platforms["npm"].State)

	loaded, err := store.GetRollback(rb.ID)
	require.NoError(t, err)
	assert.Equal(t, rb.ID, loaded.ID)
}

func TestRollbackStore_CreateUnknownDeployment(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateRollback("dep-missing", domain.ReasonManualTrigger, domain.RollbackManual, []string{"npm"})
	assert.ErrorContains(t, err, "transaction not found")
}

func TestRollbackStore_Snapshots(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(tx.ID, domain.StatusFailed))
	rb, err := store.CreateRollback(tx.ID, domain.ReasonStageFailed, domain.RollbackAutomated, []string{"npm"})
	require.NoError(t, err)

	before := map[string]domain.PlatformSnapshot{
		"npm": {Platform: "npm", LatestVersion: "1.2.3", Versions: []string{"1.2.2", "1.2.3"}, TargetPresent: true, CapturedAt: time.Now().UTC()},
	}
	require.NoError(t, store.SetRollbackSnapshot(rb.ID, false, before))

	after := map[string]domain.PlatformSnapshot{
		"npm": {Platform: "npm", LatestVersion: "1.2.2", Versions: []string{"1.2.2"}, TargetPresent: false, CapturedAt: time.Now().UTC()},
	}
	require.NoError(t, store.SetRollbackSnapshot(rb.ID, true, after))

	loaded, err := store.GetRollback(rb.ID)
	require.NoError(t, err)
	assert.True(t, loaded.StateBefore["npm"].TargetPresent)
	assert.False(t, loaded.StateAfter["npm"].TargetPresent)
	assert.Equal(t, "1.2.2", loaded.StateAfter["npm"].LatestVersion)
}

func TestRollbackStore_FinalizeLaw(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(tx.ID, domain.StatusFailed))
	rb, err := store.CreateRollback(tx.ID, domain.ReasonStageFailed, domain.RollbackAutomated, []string{"npm"})
	require.NoError(t, err)

	require.NoError(t, store.UpdateRollbackPlatform(rb.ID, "npm", domain.StatePatch(domain.PlatformCompleted)))
	require.NoError(t, store.FinalizeRollback(rb.ID, domain.StatusCompleted))
	require.NoError(t, store.FinalizeRollback(rb.ID, domain.StatusCompleted))
	assert.ErrorContains(t, store.FinalizeRollback(rb.ID, domain.StatusFailed), "already finalized")

	assert.ErrorContains(t, store.AppendRollbackStage(rb.ID, domain.StageRollback, domain.StageStarted), "terminal")
	assert.ErrorContains(t, store.UpdateRollbackPlatform(rb.ID, "npm", domain.StatePatch(domain.PlatformFailed)), "terminal")
	assert.ErrorContains(t, store.AppendRollbackError(rb.ID, "late diagnostic"), "terminal")
}

func TestRollbackStore_AttemptedSucceeded(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(tx.ID, domain.StatusFailed))
	rb, err := store.CreateRollback(tx.ID, domain.ReasonStageFailed, domain.RollbackAutomated, []string{"npm", "pypi"})
	require.NoError(t, err)

	require.NoError(t, store.UpdateRollbackPlatform(rb.ID, "npm", domain.StatePatch(domain.PlatformCompleted)))
	require.NoError(t, store.UpdateRollbackPlatform(rb.ID, "pypi", domain.StatePatch(domain.PlatformSkipped)))

	loaded, err := store.GetRollback(rb.ID)
	require.NoError(t, err)
	assert.True(t, loaded.AttemptedSucceeded())

	require.NoError(t, store.UpdateRollbackPlatform(rb.ID, "pypi", domain.StatePatch(domain.PlatformFailed)))
	loaded, err = store.GetRollback(rb.ID)
	require.NoError(t, err)
	assert.False(t, loaded.AttemptedSucceeded())
}
