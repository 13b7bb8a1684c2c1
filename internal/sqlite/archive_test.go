package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/user"
	"github.com/rpggio/cbsbilling/internal/repository"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func sampleEvents() repository.Events {
	ts := time.Date(2020, time.October, 1, 10, 15, 0, 0, time.UTC)
	end := time.Date(2021, time.March, 31, 0, 0, 0, 0, time.UTC)
	return repository.Events{
		AccountRequests: []user.AccountRequest{
			{Timestamp: ts, Name: "apple", Email: "apple@x.ca", PIName: "kiwi", PowerUser: true},
			{Timestamp: ts.Add(time.Hour), Name: "grape", Email: "grape@x.ca", PIName: "kiwi", EndDate: &end},
		},
		AccountUpdates: []user.AccountUpdate{
			{Timestamp: ts.AddDate(0, 1, 0), Name: "apple", Email: "apple@x.ca", PowerUser: ptr(false)},
			{Timestamp: ts.AddDate(0, 2, 0), Name: "grape", Email: "grape@x.ca", PIName: ptr("lime"), EndDate: &end},
		},
		PIRequests: []project.PIRequest{
			{Timestamp: ts.AddDate(-1, 0, 0), Email: "kiwi@x.ca", Name: "kiwi", FirstName: "kim", SpeedCode: "ab12", PowerUser: true, Storage: 20.5},
		},
		PIUpdates: []project.PIUpdate{
			{Timestamp: ts.AddDate(0, 1, 0), Email: "kiwi@x.ca", Name: "kiwi", Storage: ptr(5.0)},
			{Timestamp: ts.AddDate(0, 3, 0), Email: "kiwi@x.ca", Name: "kiwi", SpeedCode: ptr("cd34"), AccountClosed: true},
		},
	}
}

func TestArchive_RoundTrip(t *testing.T) {
	db := NewTestDB(t)
	archive := NewArchive(db)
	ctx := context.Background()

	want := sampleEvents()
	require.NoError(t, archive.Replace(ctx, want))

	got, err := repository.LoadAll(ctx, archive)
	require.NoError(t, err)

	require.Len(t, got.AccountRequests, 2)
	require.True(t, want.AccountRequests[0].Timestamp.Equal(got.AccountRequests[0].Timestamp))
	require.Equal(t, "apple@x.ca", got.AccountRequests[0].Email)
	require.True(t, got.AccountRequests[0].PowerUser)
	require.Nil(t, got.AccountRequests[0].EndDate)
	require.NotNil(t, got.AccountRequests[1].EndDate)
	require.True(t, want.AccountRequests[1].EndDate.Equal(*got.AccountRequests[1].EndDate))

	require.Len(t, got.AccountUpdates, 2)
	require.NotNil(t, got.AccountUpdates[0].PowerUser)
	require.False(t, *got.AccountUpdates[0].PowerUser)
	require.Nil(t, got.AccountUpdates[0].PIName)
	require.Nil(t, got.AccountUpdates[0].EndDate)
	require.Nil(t, got.AccountUpdates[1].PowerUser)
	require.Equal(t, "lime", *got.AccountUpdates[1].PIName)

	require.Len(t, got.PIRequests, 1)
	require.Equal(t, "kim", got.PIRequests[0].FirstName)
	require.InDelta(t, 20.5, got.PIRequests[0].Storage, 1e-9)
	require.True(t, got.PIRequests[0].PowerUser)

	require.Len(t, got.PIUpdates, 2)
	require.InDelta(t, 5.0, *got.PIUpdates[0].Storage, 1e-9)
	require.Nil(t, got.PIUpdates[0].SpeedCode)
	require.False(t, got.PIUpdates[0].AccountClosed)
	require.Nil(t, got.PIUpdates[1].Storage)
	require.Equal(t, "cd34", *got.PIUpdates[1].SpeedCode)
	require.True(t, got.PIUpdates[1].AccountClosed)
}

func TestArchive_ReplaceDiscardsPreviousContents(t *testing.T) {
	db := NewTestDB(t)
	archive := NewArchive(db)
	ctx := context.Background()

	require.NoError(t, archive.Replace(ctx, sampleEvents()))

	smaller := sampleEvents()
	smaller.AccountRequests = smaller.AccountRequests[:1]
	smaller.PIUpdates = nil
	require.NoError(t, archive.Replace(ctx, smaller))

	reqs, err := archive.AccountRequests(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	upds, err := archive.PIUpdates(ctx)
	require.NoError(t, err)
	require.Empty(t, upds)

	imp, err := archive.LastImport(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, imp.AccountRequests)
	require.Equal(t, 2, imp.AccountUpdates)
	require.Equal(t, 1, imp.PIRequests)
	require.Equal(t, 0, imp.PIUpdates)
}

func TestArchive_LastImportEmpty(t *testing.T) {
	archive := NewArchive(NewTestDB(t))
	_, err := archive.LastImport(context.Background())
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestArchive_Uninitialized(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = NewArchive(db).AccountRequests(context.Background())
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}
