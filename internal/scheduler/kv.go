package scheduler

import (
	"sync"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// KVStore is the ephemeral job_id -> BacktestRequest map. Entries are
// deleted on every terminal transition so a long-running service never
// accumulates one request per job it has ever processed, per the design
// document's ownership rule that a BacktestRequest is owned by the
// scheduler only until the job reaches a terminal state.
type KVStore struct {
	mu    sync.Mutex
	items map[string]*domain.BacktestRequest
}

// NewKVStore builds an empty KVStore.
func NewKVStore() *KVStore {
	return &KVStore{items: make(map[string]*domain.BacktestRequest)}
}

// Put stores req under jobID.
func (kv *KVStore) Put(jobID string, req *domain.BacktestRequest) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.items[jobID] = req
}

// Get retrieves the request stored under jobID, or nil if absent.
func (kv *KVStore) Get(jobID string) *domain.BacktestRequest {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.items[jobID]
}

// Delete evicts jobID's entry, if present.
func (kv *KVStore) Delete(jobID string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.items, jobID)
}

// Len reports the number of live entries, used by tests asserting the KV
// store drains to empty once every submitted job reaches a terminal state.
func (kv *KVStore) Len() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return len(kv.items)
}
