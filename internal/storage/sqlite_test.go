package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrecon/carrecon/internal/common"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testDocument(family model.DocumentFamily, hash string) *model.Document {
	return &model.Document{
		ID:               uuid.New().String(),
		Family:           family,
		OriginalFilename: "statement.pdf",
		StoredPath:       "/tmp/statement.pdf",
		FileHash:         hash,
		PageCount:        3,
		FileSizeBytes:    1024,
	}
}

func testTransaction(docID string, family model.DocumentFamily, day int, amount float64, empID string) model.Transaction {
	date := time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
	merchant := "ACME CORP"
	txn := model.Transaction{
		ID:         uuid.New().String(),
		DocumentID: docID,
		Family:     family,
		Date:       &date,
		Amount:     &amount,
		EmployeeID: &empID,
		Merchant:   &merchant,
		PageNumber: 1,
		Confidence: 1.0,
	}
	txn.Fingerprint = txn.GenerateFingerprint()
	return txn
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestDocuments_SaveAndGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument(model.FamilyCAR, "hash-1")
	require.NoError(t, store.SaveDocument(ctx, doc))

	byID, err := store.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.OriginalFilename, byID.OriginalFilename)
	assert.Equal(t, model.FamilyCAR, byID.Family)
	assert.False(t, byID.UploadedAt.IsZero())

	byHash, err := store.GetDocumentByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byHash.ID)
}

func TestDocuments_DuplicateHashRejected(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, testDocument(model.FamilyCAR, "same-hash")))

	err := store.SaveDocument(ctx, testDocument(model.FamilyCAR, "same-hash"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestDocuments_GetMissing(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetDocumentByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetDocumentByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDocuments_ListByFamily(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, testDocument(model.FamilyCAR, "h1")))
	require.NoError(t, store.SaveDocument(ctx, testDocument(model.FamilyReceipt, "h2")))
	require.NoError(t, store.SaveDocument(ctx, testDocument(model.FamilyReceipt, "h3")))

	all, err := store.ListDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	receipts := model.FamilyReceipt
	got, err := store.ListDocuments(ctx, &receipts)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTransactions_SaveIgnoresDuplicateIDs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument(model.FamilyCAR, "h1")
	require.NoError(t, store.SaveDocument(ctx, doc))

	txn := testTransaction(doc.ID, model.FamilyCAR, 15, 125.50, "12345")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	all, err := store.GetAllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTransactions_SameFingerprintStoredForAudit(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument(model.FamilyCAR, "h1")
	require.NoError(t, store.SaveDocument(ctx, doc))

	// Duplicate business keys are allowed at the storage level; filtering
	// is the duplicate detector's job, and the audit needs the rows.
	first := testTransaction(doc.ID, model.FamilyCAR, 15, 125.50, "12345")
	second := testTransaction(doc.ID, model.FamilyCAR, 15, 125.50, "12345")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{first, second}))

	all, err := store.GetAllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	oldest, err := store.GetTransactionByFingerprint(ctx, first.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, first.ID, oldest.ID, "fingerprint lookup returns the oldest row")
}

func TestTransactions_GetByFingerprint(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument(model.FamilyCAR, "h1")
	require.NoError(t, store.SaveDocument(ctx, doc))

	txn := testTransaction(doc.ID, model.FamilyCAR, 15, 125.50, "12345")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	got, err := store.GetTransactionByFingerprint(ctx, txn.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	require.NotNil(t, got.Amount)
	assert.InDelta(t, 125.50, *got.Amount, 0.001)
	require.NotNil(t, got.EmployeeID)
	assert.Equal(t, "12345", *got.EmployeeID)

	_, err = store.GetTransactionByFingerprint(ctx, "absent")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTransactions_OptionalFieldsRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument(model.FamilyReceipt, "h1")
	require.NoError(t, store.SaveDocument(ctx, doc))

	amount := 42.00
	txn := model.Transaction{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		Family:     model.FamilyReceipt,
		Amount:     &amount,
		PageNumber: 2,
		Confidence: 0.35,
	}
	txn.Fingerprint = txn.GenerateFingerprint()
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	got, err := store.GetTransactionByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Date, "unset date stays nil, never a zero value")
	assert.Nil(t, got.EmployeeID)
	assert.Nil(t, got.Merchant)
	require.NotNil(t, got.Amount)
	assert.InDelta(t, 42.00, *got.Amount, 0.001)
}

func TestTransactions_MarkDuplicateExcludedFromUnmatched(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument(model.FamilyCAR, "h1")
	require.NoError(t, store.SaveDocument(ctx, doc))

	original := testTransaction(doc.ID, model.FamilyCAR, 10, 50.00, "11111")
	dup := testTransaction(doc.ID, model.FamilyCAR, 11, 60.00, "11111")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{original, dup}))

	require.NoError(t, store.MarkTransactionDuplicate(ctx, dup.ID, original.ID))

	got, err := store.GetTransactionByID(ctx, dup.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDuplicate)
	require.NotNil(t, got.DuplicateOfID)
	assert.Equal(t, original.ID, *got.DuplicateOfID)

	pool, err := store.GetUnmatchedTransactions(ctx, model.FamilyCAR)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, original.ID, pool[0].ID)
}

func TestTransactions_Filters(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	carDoc := testDocument(model.FamilyCAR, "h1")
	receiptDoc := testDocument(model.FamilyReceipt, "h2")
	require.NoError(t, store.SaveDocument(ctx, carDoc))
	require.NoError(t, store.SaveDocument(ctx, receiptDoc))

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{
		testTransaction(carDoc.ID, model.FamilyCAR, 10, 10.00, "11111"),
		testTransaction(carDoc.ID, model.FamilyCAR, 11, 20.00, "11111"),
		testTransaction(receiptDoc.ID, model.FamilyReceipt, 10, 10.00, "22222"),
	}))

	family := model.FamilyCAR
	cars, err := store.GetTransactions(ctx, service.TransactionFilter{Family: &family})
	require.NoError(t, err)
	assert.Len(t, cars, 2)

	byDoc, err := store.GetTransactions(ctx, service.TransactionFilter{DocumentID: &receiptDoc.ID})
	require.NoError(t, err)
	assert.Len(t, byDoc, 1)

	limited, err := store.GetTransactions(ctx, service.TransactionFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestTransactions_DeleteMatchedRequiresForce(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	car, receipt := seedMatchedPair(t, store)

	err := store.DeleteTransaction(ctx, car.ID, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransactionMatched)

	require.NoError(t, store.DeleteTransaction(ctx, car.ID, true))

	_, err = store.GetTransactionByID(ctx, car.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Forcing also removed the match referencing it.
	matches, err := store.ListMatches(ctx, service.MatchFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)

	counterpart, err := store.GetTransactionByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.False(t, counterpart.Matched, "counterpart of a force-deleted transaction is released")
}

// seedMatchedPair stores one CAR and one receipt transaction joined by a
// pending match.
func seedMatchedPair(t *testing.T, store *SQLiteStorage) (model.Transaction, model.Transaction) {
	t.Helper()
	ctx := context.Background()

	carDoc := testDocument(model.FamilyCAR, "car-"+uuid.New().String())
	receiptDoc := testDocument(model.FamilyReceipt, "rcpt-"+uuid.New().String())
	require.NoError(t, store.SaveDocument(ctx, carDoc))
	require.NoError(t, store.SaveDocument(ctx, receiptDoc))

	car := testTransaction(carDoc.ID, model.FamilyCAR, 15, 125.50, "12345")
	receipt := testTransaction(receiptDoc.ID, model.FamilyReceipt, 15, 125.50, "12345")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{car, receipt}))

	require.NoError(t, store.CreateMatches(ctx, []model.Match{{
		ID:                   uuid.New().String(),
		CARTransactionID:     car.ID,
		ReceiptTransactionID: receipt.ID,
		Status:               model.MatchPending,
		Confidence:           0.85,
	}}))
	return car, receipt
}

func TestMatches_CreateFlagsTransactions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	car, receipt := seedMatchedPair(t, store)

	for _, id := range []string{car.ID, receipt.ID} {
		txn, err := store.GetTransactionByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, txn.Matched)
	}

	pool, err := store.GetUnmatchedTransactions(ctx, model.FamilyCAR)
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func TestMatches_CreateRejectsConsumedTransaction(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	car, _ := seedMatchedPair(t, store)

	receiptDoc := testDocument(model.FamilyReceipt, "other")
	require.NoError(t, store.SaveDocument(ctx, receiptDoc))
	other := testTransaction(receiptDoc.ID, model.FamilyReceipt, 16, 125.50, "12345")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{other}))

	err := store.CreateMatches(ctx, []model.Match{{
		ID:                   uuid.New().String(),
		CARTransactionID:     car.ID,
		ReceiptTransactionID: other.ID,
		Status:               model.MatchPending,
		Confidence:           0.75,
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransactionMatched)
}

func TestMatches_ReviewApprove(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedMatchedPair(t, store)

	matches, err := store.ListMatches(ctx, service.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, store.ReviewMatch(ctx, matches[0].ID, model.MatchApproved, "looks right"))

	got, err := store.GetMatchByID(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchApproved, got.Status)
	assert.Equal(t, "looks right", got.ReviewNote)
	assert.NotNil(t, got.ReviewedAt)
}

func TestMatches_RejectReleasesTransactions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	car, receipt := seedMatchedPair(t, store)

	matches, err := store.ListMatches(ctx, service.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, store.ReviewMatch(ctx, matches[0].ID, model.MatchRejected, "wrong receipt"))

	for _, id := range []string{car.ID, receipt.ID} {
		txn, getErr := store.GetTransactionByID(ctx, id)
		require.NoError(t, getErr)
		assert.False(t, txn.Matched, "rejected match must release its transactions")
	}
}

func TestMatches_ReviewRequiresDecision(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedMatchedPair(t, store)

	matches, err := store.ListMatches(ctx, service.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	err = store.ReviewMatch(ctx, matches[0].ID, model.MatchPending, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMatches_ExportRequiresApproval(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedMatchedPair(t, store)

	matches, err := store.ListMatches(ctx, service.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	id := matches[0].ID

	err = store.MarkMatchExported(ctx, id, "/exports/out.pdf")
	require.Error(t, err, "pending match cannot be exported")

	require.NoError(t, store.ReviewMatch(ctx, id, model.MatchApproved, ""))
	require.NoError(t, store.MarkMatchExported(ctx, id, "/exports/out.pdf"))

	got, err := store.GetMatchByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.MatchExported, got.Status)
	require.NotNil(t, got.ExportPath)
	assert.Equal(t, "/exports/out.pdf", *got.ExportPath)
	assert.NotNil(t, got.ExportedAt)

	// Exported is final.
	err = store.ReviewMatch(ctx, id, model.MatchRejected, "")
	require.Error(t, err)
}

func TestMatches_ListByStatusOrderedByConfidence(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	carDoc := testDocument(model.FamilyCAR, "h1")
	receiptDoc := testDocument(model.FamilyReceipt, "h2")
	require.NoError(t, store.SaveDocument(ctx, carDoc))
	require.NoError(t, store.SaveDocument(ctx, receiptDoc))

	var matches []model.Match
	for i := 0; i < 3; i++ {
		car := testTransaction(carDoc.ID, model.FamilyCAR, 10+i, 10.00*float64(i+1), "11111")
		receipt := testTransaction(receiptDoc.ID, model.FamilyReceipt, 10+i, 10.00*float64(i+1), "11111")
		require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{car, receipt}))
		matches = append(matches, model.Match{
			ID:                   fmt.Sprintf("m-%d", i),
			CARTransactionID:     car.ID,
			ReceiptTransactionID: receipt.ID,
			Status:               model.MatchPending,
			Confidence:           0.70 + 0.10*float64(i),
		})
	}
	require.NoError(t, store.CreateMatches(ctx, matches))

	pending := model.MatchPending
	got, err := store.ListMatches(ctx, service.MatchFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m-2", got[0].ID, "highest confidence first")
	assert.Equal(t, "m-0", got[2].ID)
}

func TestDocuments_DeleteCascades(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	car, _ := seedMatchedPair(t, store)

	require.NoError(t, store.DeleteDocument(ctx, car.DocumentID))

	_, err := store.GetDocumentByID(ctx, car.DocumentID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetTransactionByID(ctx, car.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	matches, err := store.ListMatches(ctx, service.MatchFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestBeginTx_RollbackDiscardsWrites(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.SaveDocument(ctx, testDocument(model.FamilyCAR, "h1")))
	require.NoError(t, tx.Rollback())

	docs, err := store.ListDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestValidation_EmptyInputs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.GetTransactionByID(ctx, "  ")
	assert.ErrorIs(t, err, ErrEmptyString)

	err = store.SaveTransactions(ctx, []model.Transaction{})
	assert.ErrorIs(t, err, ErrEmptySlice)

	err = store.SaveDocument(ctx, &model.Document{ID: "x", Family: "bogus", FileHash: "h", OriginalFilename: "f"})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}
