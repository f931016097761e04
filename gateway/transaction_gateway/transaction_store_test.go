package transaction_gateway

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/driver/filesystem_driver"
	"pkgdeploy-cli/port/transaction_port"
	"pkgdeploy-cli/utils/logger"
)

func newTestStore(t *testing.T) *TransactionStore {
	t.Helper()
	store, err := NewTransactionStore(t.TempDir(), filesystem_driver.NewFileSystemDriver(), logger.NewLogger())
	require.NoError(t, err)
	return store
}

func newTestDeployment(t *testing.T, store *TransactionStore) *domain.DeploymentTransaction {
	t.Helper()
	tx, err := store.Create(&domain.DeployRequest{
		Package:  "my-lib",
		Version:  "1.2.3",
		Pipeline: domain.PipelineParallel,
		Targets:  []string{"npm", "pypi"},
	})
	require.NoError(t, err)
	return tx
}

func TestTransactionStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)

	assert.Contains(t, tx.ID, "dep-")
	assert.Equal(t, domain.StatusInProgress, tx.Status)
	assert.Equal(t, domain.PlatformPending, tx.Platforms["npm"].State)
	assert.Equal(t, domain.PlatformPending, tx.Platforms["pypi"].State)

	loaded, err := store.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, loaded.ID)
	assert.Equal(t, "my-lib", loaded.Package)
	assert.Equal(t, []string{"npm", "pypi"}, loaded.Targets)
}

func TestTransactionStore_GetUnknownID(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("dep-20260101T000000-deadbeef")
	assert.ErrorContains(t, err, "transaction not found")
}

func TestTransactionStore_StageAndPlatformWrites(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)

	require.NoError(t, store.AppendStage(tx.ID, domain.StageValidation, domain.StageStarted))
	require.NoError(t, store.AppendStage(tx.ID, domain.StageValidation, domain.StageCompleted))

	url := "https://www.npmjs.com/package/my-lib/v/1.2.3"
	patch := domain.StatePatch(domain.PlatformCompleted)
	patch.RegistryURL = &url
	require.NoError(t, store.UpdatePlatform(tx.ID, "npm", patch))

	loaded, err := store.Get(tx.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Stages, 2)
	assert.Equal(t, domain.PlatformCompleted, loaded.Platforms["npm"].State)
	assert.Equal(t, url, loaded.Platforms["npm"].RegistryURL)
	assert.Equal(t, domain.PlatformPending, loaded.Platforms["pypi"].State)
}

func TestTransactionStore_UnknownPlatformRejected(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)

	err := store.UpdatePlatform(tx.ID, "cargo", domain.StatePatch(domain.PlatformRunning))
	assert.ErrorContains(t, err, "has no platform cargo")
}

func TestTransactionStore_TerminalRejectsWrites(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(tx.ID, domain.StatusFailed))

	assert.ErrorContains(t, store.AppendStage(tx.ID, domain.StageDeploy, domain.StageStarted), "terminal")
	assert.ErrorContains(t, store.UpdatePlatform(tx.ID, "npm", domain.StatePatch(domain.PlatformRunning)), "terminal")
	assert.ErrorContains(t, store.SetVersion(tx.ID, "2.0.0"), "terminal")
	assert.ErrorContains(t, store.AppendError(tx.ID, "late diagnostic"), "terminal")
}

func TestTransactionStore_FinalizeIdempotency(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)

	assert.ErrorContains(t, store.Finalize(tx.ID, domain.StatusInProgress), "terminal status")

	require.NoError(t, store.Finalize(tx.ID, domain.StatusCompleted))
	// Same terminal status is a no-op
	require.NoError(t, store.Finalize(tx.ID, domain.StatusCompleted))
	// A different terminal status is rejected
	assert.ErrorContains(t, store.Finalize(tx.ID, domain.StatusFailed), "already finalized")

	loaded, err := store.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, loaded.Status)
	assert.NotNil(t, loaded.CompletedAt)
}

func TestTransactionStore_MarkRolledBack(t *testing.T) {
	store := newTestStore(t)

	failed := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(failed.ID, domain.StatusFailed))
	require.NoError(t, store.MarkRolledBack(failed.ID))
	// Repeating is a no-op
	require.NoError(t, store.MarkRolledBack(failed.ID))

	loaded, err := store.Get(failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRolledBack, loaded.Status)

	inProgress := newTestDeployment(t, store)
	assert.ErrorContains(t, store.MarkRolledBack(inProgress.ID), "cannot mark rolled back")

	cancelled := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(cancelled.ID, domain.StatusCancelled))
	assert.ErrorContains(t, store.MarkRolledBack(cancelled.ID), "cannot mark rolled back")
}

func TestTransactionStore_RollbackLinkOnTerminalRecord(t *testing.T) {
	store := newTestStore(t)
	tx := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(tx.ID, domain.StatusFailed))

	require.NoError(t, store.SetRollbackLink(tx.ID, "rb-20260824T101502-3f9c21aa"))

	loaded, err := store.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "rb-20260824T101502-3f9c21aa", loaded.RollbackTransactionID)
}

func TestTransactionStore_ConcurrentPlatformUpdates(t *testing.T) {
	store := newTestStore(t)
	tx, err := store.Create(&domain.DeployRequest{
		Package:  "my-lib",
		Pipeline: domain.PipelineParallel,
		Targets:  []string{"npm", "pypi", "cargo", "dockerhub"},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, target := range tx.Targets {
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(target string, i int) {
				defer wg.Done()
				msg := fmt.Sprintf("update %d", i)
				patch := domain.StatePatch(domain.PlatformRunning)
				patch.ErrorMessage = &msg
				assert.NoError(t, store.UpdatePlatform(tx.ID, target, patch))
			}(target, i)
		}
	}
	wg.Wait()

	loaded, err := store.Get(tx.ID)
	require.NoError(t, err)
	for _, target := range tx.Targets {
		assert.Equal(t, domain.PlatformRunning, loaded.Platforms[target].State)
	}
}

func TestTransactionStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	fs := filesystem_driver.NewFileSystemDriver()
	log := logger.NewLogger()

	store, err := NewTransactionStore(dir, fs, log)
	require.NoError(t, err)
	tx := newTestDeployment(t, store)
	require.NoError(t, store.AppendStage(tx.ID, domain.StageDeploy, domain.StageStarted))
	require.NoError(t, store.Finalize(tx.ID, domain.StatusCompleted))

	reopened, err := NewTransactionStore(dir, fs, log)
	require.NoError(t, err)
	loaded, err := reopened.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, loaded.Status)
	assert.Len(t, loaded.Stages, 1)
}

func TestTransactionStore_ListRecentAndFilter(t *testing.T) {
	store := newTestStore(t)

	first := newTestDeployment(t, store)
	require.NoError(t, store.Finalize(first.ID, domain.StatusCompleted))

	other, err := store.Create(&domain.DeployRequest{
		Package:  "other-lib",
		Pipeline: domain.PipelineStandard,
		Targets:  []string{"cargo"},
	})
	require.NoError(t, err)

	all, err := store.ListRecent(10, transaction_port.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := store.ListRecent(10, transaction_port.TransactionFilter{Status: domain.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	latest, err := store.FindLatestForPackage("other-lib")
	require.NoError(t, err)
	assert.Equal(t, other.ID, latest.ID)

	_, err = store.FindLatestForPackage("unknown-lib")
	assert.ErrorContains(t, err, "no transactions found")
}
