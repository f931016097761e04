package transaction_gateway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/port/filesystem_port"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/transaction_port"
)

// TransactionStore is the file-backed, append-only transaction record store.
// Layout under the data directory:
//
//	transactions/{id}.json  one deployment record per file
//	rollbacks/{rid}.json    one rollback record per file
//	logs/{id}.log           free-form stage and adapter logs
//
// Writes to the same id are serialized through a per-id mutex; writes to
// different ids proceed in parallel. Every write lands via atomic rename
// with fsync, so readers never observe a torn record.
type TransactionStore struct {
	dataDir string
	fs      filesystem_port.FileSystemPort
	logger  logger_port.LoggerPort

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Ensure TransactionStore implements the store interface
var _ transaction_port.TransactionStore = (*TransactionStore)(nil)

// NewTransactionStore creates a store rooted at dataDir, creating the
// layout directories if needed
func NewTransactionStore(dataDir string, fs filesystem_port.FileSystemPort, logger logger_port.LoggerPort) (*TransactionStore, error) {
	store := &TransactionStore{
		dataDir: dataDir,
		fs:      fs,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, sub := range []string{"transactions", "rollbacks", "logs", "platforms"} {
		if err := fs.CreateDirectory(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", sub, err)
		}
	}
	return store, nil
}

// DataDir returns the store's root directory
func (s *TransactionStore) DataDir() string {
	return s.dataDir
}

// lockFor returns the serialization mutex for one transaction id
func (s *TransactionStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// newID builds a time-ordered unique id, e.g. dep-20260824T101502-3f9c21aa
func newID(prefix string) string {
	stamp := time.Now().UTC().Format("20060102T150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", prefix, stamp, suffix)
}

func (s *TransactionStore) transactionPath(id string) string {
	return filepath.Join(s.dataDir, "transactions", id+".json")
}

func (s *TransactionStore) rollbackPath(id string) string {
	return filepath.Join(s.dataDir, "rollbacks", id+".json")
}

func (s *TransactionStore) logPath(id string) string {
	return filepath.Join(s.dataDir, "logs", id+".log")
}

// Create writes the initial deployment record
func (s *TransactionStore) Create(req *domain.DeployRequest) (*domain.DeploymentTransaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx := &domain.DeploymentTransaction{
		ID:        newID("dep"),
		Package:   req.Package,
		Version:   req.Version,
		Pipeline:  req.Pipeline,
		Targets:   append([]string(nil), req.Targets...),
		StartedAt: time.Now().UTC(),
		Status:    domain.StatusInProgress,
		Platforms: make(map[string]domain.PlatformStatus, len(req.Targets)),
	}
	for _, target := range req.Targets {
		tx.Platforms[target] = domain.PlatformStatus{State: domain.PlatformPending}
	}

	if err := s.save(s.transactionPath(tx.ID), tx); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext("deployment transaction created", map[string]interface{}{
		"id":       tx.ID,
		"package":  tx.Package,
		"pipeline": string(tx.Pipeline),
		"targets":  strings.Join(tx.Targets, ","),
	})
	return tx, nil
}

// Get returns a deployment transaction by id
func (s *TransactionStore) Get(id string) (*domain.DeploymentTransaction, error) {
	var tx domain.DeploymentTransaction
	if err := s.load(s.transactionPath(id), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// AppendStage appends a stage log entry under per-id serialization
func (s *TransactionStore) AppendStage(id string, stage domain.StageName, state domain.StageState) error {
	return s.update(id, func(tx *domain.DeploymentTransaction) error {
		if tx.Status.IsTerminal() {
			return fmt.Errorf("transaction %s is terminal (%s): stage writes rejected", id, tx.Status)
		}
		tx.Stages = append(tx.Stages, domain.StageEntry{
			Stage:     stage,
			State:     state,
			Timestamp: time.Now().UTC(),
		})
		return nil
	})
}

// UpdatePlatform merges a patch into the named platform entry
func (s *TransactionStore) UpdatePlatform(id string, platform string, patch domain.PlatformPatch) error {
	return s.update(id, func(tx *domain.DeploymentTransaction) error {
		if tx.Status.IsTerminal() {
			return fmt.Errorf("transaction %s is terminal (%s): platform writes rejected", id, tx.Status)
		}
		status, ok := tx.Platforms[platform]
		if !ok {
			return fmt.Errorf("transaction %s has no platform %s", id, platform)
		}
		patch.Apply(&status)
		tx.Platforms[platform] = status
		return nil
	})
}

// AppendError records a diagnostic line
func (s *TransactionStore) AppendError(id string, message string) error {
	return s.update(id, func(tx *domain.DeploymentTransaction) error {
		if tx.Status.IsTerminal() {
			return fmt.Errorf("transaction %s is terminal (%s): error writes rejected", id, tx.Status)
		}
		tx.Errors = append(tx.Errors, message)
		return nil
	})
}

// SetVersion records the resolved version
func (s *TransactionStore) SetVersion(id string, version string) error {
	return s.update(id, func(tx *domain.DeploymentTransaction) error {
		if tx.Status.IsTerminal() {
			return fmt.Errorf("transaction %s is terminal (%s): version write rejected", id, tx.Status)
		}
		tx.Version = version
		return nil
	})
}

// Finalize sets a terminal status. Repeating the same terminal status is a
// no-op; a different terminal status is rejected.
func (s *TransactionStore) Finalize(id string, status domain.TransactionStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize requires a terminal status, got %s", status)
	}
	return s.update(id, func(tx *domain.DeploymentTransaction) error {
		if tx.Status.IsTerminal() {
			if tx.Status == status {
				return nil
			}
			return fmt.Errorf("transaction %s already finalized as %s, cannot finalize as %s", id, tx.Status, status)
		}
		now := time.Now().UTC()
		tx.Status = status
		tx.CompletedAt = &now
		return nil
	})
}

// MarkRolledBack transitions a failed or completed deployment to rolled_back
func (s *TransactionStore) MarkRolledBack(id string) error {
	return s.update(id, func(tx *domain.DeploymentTransaction) error {
		switch tx.Status {
		case domain.StatusRolledBack:
			return nil
		case domain.StatusFailed, domain.StatusCompleted:
			tx.Status = domain.StatusRolledBack
			return nil
		default:
			return fmt.Errorf("transaction %s has status %s: cannot mark rolled back", id, tx.Status)
		}
	})
}

// SetRollbackLink records the back-link to a rollback transaction. This is
// the only write permitted on a terminal record.
func (s *TransactionStore) SetRollbackLink(id string, rollbackID string) error {
	return s.update(id, func(tx *domain.DeploymentTransaction) error {
		tx.RollbackTransactionID = rollbackID
		return nil
	})
}

// ListRecent returns up to n most recent transactions matching filter
func (s *TransactionStore) ListRecent(n int, filter transaction_port.TransactionFilter) ([]*domain.DeploymentTransaction, error) {
	entries, err := s.fs.ListDirectory(filepath.Join(s.dataDir, "transactions"))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	// Ids are time-ordered, so file names sort chronologically
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var result []*domain.DeploymentTransaction
	for _, name := range names {
		if n > 0 && len(result) >= n {
			break
		}
		tx, err := s.Get(name)
		if err != nil {
			s.logger.WarnWithContext("skipping unreadable transaction record", map[string]interface{}{
				"id":    name,
				"error": err.Error(),
			})
			continue
		}
		if filter.Package != "" && tx.Package != filter.Package {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		result = append(result, tx)
	}
	return result, nil
}

// FindLatestForPackage returns the most recent transaction for a package
func (s *TransactionStore) FindLatestForPackage(pkg string) (*domain.DeploymentTransaction, error) {
	matches, err := s.ListRecent(1, transaction_port.TransactionFilter{Package: pkg})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no transactions found for package %s", pkg)
	}
	return matches[0], nil
}

// AppendLog appends a free-form line to the transaction's log file.
// Log failures are not allowed to fail the pipeline.
func (s *TransactionStore) AppendLog(id string, line string) {
	stamped := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), line)
	if err := s.fs.AppendLine(s.logPath(id), stamped); err != nil {
		s.logger.WarnWithContext("failed to append transaction log", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	}
}

// update applies a mutation under the id's lock and persists atomically
func (s *TransactionStore) update(id string, mutate func(*domain.DeploymentTransaction) error) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := mutate(tx); err != nil {
		return err
	}
	return s.save(s.transactionPath(id), tx)
}

// save persists a record durably
func (s *TransactionStore) save(path string, record interface{}) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.fs.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to persist record %s: %w", filepath.Base(path), err)
	}
	return nil
}

// load reads a record, mapping missing files to a not-found error
func (s *TransactionStore) load(path string, record interface{}) error {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("transaction not found: %s", strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return fmt.Errorf("failed to read record: %w", err)
	}
	if err := json.Unmarshal(data, record); err != nil {
		return fmt.Errorf("corrupt record %s: %w", filepath.Base(path), err)
	}
	return nil
}
