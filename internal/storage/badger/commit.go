package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marketgrid/harvester/internal/models"
)

// CommitFetchResult persists the outcome of one fetch attempt in a single
// transaction. A non-nil payload means the payload-success predicate held:
// the payload row is inserted alongside the task update. The caller has
// already mutated the task's Enabled/RetryCount fields.
func (s *Store) CommitFetchResult(_ context.Context, task *models.SecurityTask, payload *models.ResponsePayload) error {
	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		if payload != nil {
			if err := s.db.TxInsert(txn, payload.ID, payload); err != nil {
				return fmt.Errorf("insert payload %s/%s: %w", payload.SecurityCode, payload.Period, err)
			}
		}
		if err := s.db.TxUpdate(txn, task.ID, task); err != nil {
			return fmt.Errorf("update task %s/%s: %w", task.SecurityCode, task.FetchPeriodKey, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit fetch result: %w", err)
	}
	return nil
}
