package bidstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// P5 — bid-store completeness: every submission attempt produces exactly
// one row whose commitment matches and whose success field agrees.
func TestInsert_CreatesOneRowPerAttempt(t *testing.T) {
	s := openTestStore(t)
	commitment := [32]byte{1, 2, 3}

	_, err := s.Insert(Insert{Commitment: commitment, Success: true})
	require.NoError(t, err)

	rec, err := s.LatestByCommitment(commitment)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Success)
	assert.Equal(t, commitment[:], rec.Commitment)
}

func TestLatestByCommitment_ReturnsMostRecent(t *testing.T) {
	s := openTestStore(t)
	commitment := [32]byte{4, 5, 6}

	_, err := s.Insert(Insert{Commitment: commitment, Success: false, Error: "first attempt failed"})
	require.NoError(t, err)
	_, err = s.Insert(Insert{Commitment: commitment, Success: true})
	require.NoError(t, err)

	rec, err := s.LatestByCommitment(commitment)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Success)
}

func TestLatestByCommitment_NoRowIsNotAnError(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.LatestByCommitment([32]byte{99})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSuccessfulUnretracted(t *testing.T) {
	s := openTestStore(t)
	succeeded := [32]byte{7}
	tentative := [32]byte{70}
	failed := [32]byte{8}

	_, err := s.Insert(Insert{Commitment: succeeded, Success: true, Finalized: true})
	require.NoError(t, err)
	_, err = s.Insert(Insert{Commitment: tentative, Success: true, Finalized: false})
	require.NoError(t, err)
	_, err = s.Insert(Insert{Commitment: failed, Success: false})
	require.NoError(t, err)

	rows, err := s.SuccessfulUnretracted()
	require.NoError(t, err)
	require.Len(t, rows, 1, "InBlock-only (unfinalized) bids must not appear in the fund-recovery feed")
	assert.Equal(t, succeeded[:], rows[0].Commitment)
}

// Bid finality gating: a tentative InBlock success only becomes eligible
// for fund recovery once MarkFinalized promotes it.
func TestMarkFinalized_GatesFundRecovery(t *testing.T) {
	s := openTestStore(t)
	commitment := [32]byte{71}

	_, err := s.Insert(Insert{Commitment: commitment, Success: true, Finalized: false})
	require.NoError(t, err)

	rows, err := s.SuccessfulUnretracted()
	require.NoError(t, err)
	assert.Empty(t, rows)

	ok, err := s.MarkFinalized(commitment)
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err = s.SuccessfulUnretracted()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, commitment[:], rows[0].Commitment)

	again, err := s.MarkFinalized(commitment)
	require.NoError(t, err)
	assert.False(t, again, "marking an already-finalized row again changes nothing")
}

// P6 — retraction idempotence: marking retracted twice yields one retracted
// row; the second call returns false and changes nothing.
func TestMarkRetracted_Idempotent(t *testing.T) {
	s := openTestStore(t)
	commitment := [32]byte{10}
	retractTx := [32]byte{11}

	_, err := s.Insert(Insert{Commitment: commitment, Success: true, Finalized: true})
	require.NoError(t, err)

	first, err := s.MarkRetracted(commitment, retractTx)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.MarkRetracted(commitment, retractTx)
	require.NoError(t, err)
	assert.False(t, second)

	rec, err := s.LatestByCommitment(commitment)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Retracted)

	rows, err := s.SuccessfulUnretracted()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarkRetracted_NoMatchingRow(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.MarkRetracted([32]byte{123}, [32]byte{1})
	require.NoError(t, err)
	assert.False(t, ok)
}

// MarkRetracted must only flip the latest row for a commitment, never an
// earlier unrelated failed attempt still sitting unretracted.
func TestMarkRetracted_OnlyFlipsLatestRow(t *testing.T) {
	s := openTestStore(t)
	commitment := [32]byte{12}

	_, err := s.Insert(Insert{Commitment: commitment, Success: false, Error: "first attempt failed"})
	require.NoError(t, err)
	_, err = s.Insert(Insert{Commitment: commitment, Success: true, Finalized: true})
	require.NoError(t, err)

	ok, err := s.MarkRetracted(commitment, [32]byte{13})
	require.NoError(t, err)
	assert.True(t, ok)

	var all []Record
	require.NoError(t, s.db.Where("commitment = ?", commitment[:]).Order("created_at ASC").Find(&all).Error)
	require.Len(t, all, 2)
	assert.False(t, all[0].Retracted, "the earlier failed attempt must not be touched")
	assert.True(t, all[1].Retracted, "only the latest row is marked retracted")
}

func TestStats(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Insert(Insert{Commitment: [32]byte{1}, Success: true, Finalized: true})
	require.NoError(t, err)
	_, err = s.Insert(Insert{Commitment: [32]byte{2}, Success: false})
	require.NoError(t, err)

	_, err = s.MarkRetracted([32]byte{1}, [32]byte{9})
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Successful)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Finalized)
	assert.Equal(t, int64(1), stats.Retracted)
	assert.Equal(t, int64(0), stats.PendingRetraction)
}
