package dedup

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/carrecon/carrecon/internal/common"
	"github.com/carrecon/carrecon/internal/model"
)

// Store is the slice of the persistence layer the detector needs.
type Store interface {
	GetDocumentByHash(ctx context.Context, hash string) (*model.Document, error)
	GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*model.Transaction, error)
	GetAllTransactions(ctx context.Context) ([]model.Transaction, error)
	MarkTransactionDuplicate(ctx context.Context, id, originalID string) error
}

// Detector answers "have we seen this before" for documents and records.
type Detector struct {
	store Store
}

// NewDetector creates a detector backed by the given store.
func NewDetector(store Store) *Detector {
	return &Detector{store: store}
}

// CheckDocument looks up a document by content hash. A nil document means
// the hash is new.
func (d *Detector) CheckDocument(ctx context.Context, hash string) (*model.Document, error) {
	doc, err := d.store.GetDocumentByHash(ctx, hash)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check document hash: %w", err)
	}
	return doc, nil
}

// CheckRecord looks up a persisted transaction by fingerprint. A nil
// transaction means the fingerprint is new.
func (d *Detector) CheckRecord(ctx context.Context, fingerprint string) (*model.Transaction, error) {
	txn, err := d.store.GetTransactionByFingerprint(ctx, fingerprint)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return txn, nil
}

// DuplicateRecord is an extracted record rejected as a duplicate. Existing
// is the persisted transaction it duplicates, or nil when the duplicate is
// an earlier record within the same batch.
type DuplicateRecord struct {
	Existing    *model.Transaction
	Record      model.ExtractedRecord
	Fingerprint string
}

// FilterNew splits extracted records into those new to the store and those
// duplicating a persisted transaction or an earlier record in the batch.
func (d *Detector) FilterNew(ctx context.Context, records []model.ExtractedRecord) ([]model.ExtractedRecord, []DuplicateRecord, error) {
	var fresh []model.ExtractedRecord
	var duplicates []DuplicateRecord
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		fingerprint := rec.GenerateFingerprint()

		if seen[fingerprint] {
			duplicates = append(duplicates, DuplicateRecord{Record: rec, Fingerprint: fingerprint})
			continue
		}

		existing, err := d.CheckRecord(ctx, fingerprint)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			duplicates = append(duplicates, DuplicateRecord{Record: rec, Fingerprint: fingerprint, Existing: existing})
			continue
		}

		seen[fingerprint] = true
		fresh = append(fresh, rec)
	}

	return fresh, duplicates, nil
}

// FindAllDuplicates groups every persisted transaction by fingerprint and
// returns the groups with more than one member, each group a suspected
// duplicate submission. Groups come back in fingerprint order.
func (d *Detector) FindAllDuplicates(ctx context.Context) ([]model.DuplicateGroup, error) {
	transactions, err := d.store.GetAllTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	byFingerprint := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		fp := txn.Fingerprint
		if fp == "" {
			fp = txn.GenerateFingerprint()
		}
		byFingerprint[fp] = append(byFingerprint[fp], txn)
	}

	var groups []model.DuplicateGroup
	for fp, members := range byFingerprint {
		if len(members) > 1 {
			groups = append(groups, model.DuplicateGroup{Fingerprint: fp, Transactions: members})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Fingerprint < groups[j].Fingerprint
	})

	return groups, nil
}

// MarkDuplicate flags a transaction as a duplicate of another.
func (d *Detector) MarkDuplicate(ctx context.Context, id, originalID string) error {
	if err := d.store.MarkTransactionDuplicate(ctx, id, originalID); err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	return nil
}
