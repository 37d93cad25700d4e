package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ratemint/core"
	"ratemint/core/events"
	"ratemint/core/types"
	"ratemint/storage"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	store, err := New(db, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	store.clock = func() time.Time { return time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	err := store.Record(ctx, []*types.Event{
		{Type: "swap.rate.changed", Attributes: map[string]string{"inputAmount": "5", "outputAmount": "1"}},
		{Type: "swap.swapped", Attributes: map[string]string{"account": "0xabc", "inputAmount": "5", "outputAmount": "1"}},
		{Type: "swap.swapped", Attributes: map[string]string{"account": "0xdef", "inputAmount": "5", "outputAmount": "1"}},
	})
	require.NoError(t, err)

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "swap.rate.changed", all[0].Type)
	require.Less(t, all[0].ID, all[1].ID)
	require.NotEmpty(t, all[0].UID)
	require.Equal(t, 2024, all[0].CreatedAt.Year())

	swaps, err := store.List(ctx, Filter{Type: "swap.swapped"})
	require.NoError(t, err)
	require.Len(t, swaps, 2)

	mine, err := store.List(ctx, Filter{AttrName: "account", AttrValue: "0xdef"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "0xdef", mine[0].Attributes["account"])

	page, err := store.List(ctx, Filter{AfterID: all[0].ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, all[1].ID, page[0].ID)
}

// failNthEvent makes the nth event insert on db fail.
func failNthEvent(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	seen := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_nth_event", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Name != "EventRecord" {
			return
		}
		seen++
		if seen == n {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)
}

func TestRecordIsAllOrNothing(t *testing.T) {
	store := setupStore(t)
	failNthEvent(t, store.db, 2)

	err := store.Record(context.Background(), []*types.Event{
		{Type: "swap.rate.changed", Attributes: map[string]string{"inputAmount": "5"}},
		{Type: "swap.swapped", Attributes: map[string]string{"account": "0xabc"}},
		{Type: "swap.swapped", Attributes: map[string]string{"account": "0xdef"}},
	})
	require.ErrorContains(t, err, "disk full")

	got, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestHostCallIndexedAtomically(t *testing.T) {
	store := setupStore(t)
	host, err := core.NewHost(storage.NewMemDB(), store, nil)
	require.NoError(t, err)

	transfer := func(frame *core.Frame, amount uint64) {
		frame.Emitter().Emit(events.ValueTransfer{
			From:   common.HexToAddress("0x01"),
			To:     common.HexToAddress("0x02"),
			Amount: uint256.NewInt(amount),
		})
	}

	_, err = host.Execute(context.Background(), func(frame *core.Frame) error {
		transfer(frame, 9)
		return nil
	})
	require.NoError(t, err)

	failNthEvent(t, store.db, 2)
	committed, err := host.Execute(context.Background(), func(frame *core.Frame) error {
		transfer(frame, 1)
		transfer(frame, 2)
		transfer(frame, 3)
		return nil
	})
	require.NoError(t, err, "state commits even when the index rejects the batch")
	require.Len(t, committed, 3)

	got, err := store.List(context.Background(), Filter{Type: events.TypeValueTransfer})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "9", got[0].Attributes["amount"])
}

func TestRecordEmptyIsNoop(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.Record(context.Background(), nil))
	got, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(" ")
	require.Error(t, err)
	_, err = New(nil, nil)
	require.Error(t, err)
}

func TestOpenStoreMigrates(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "events.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.True(t, store.db.Migrator().HasTable(&EventRecord{}))

	_, err = OpenStore("  ", nil)
	require.Error(t, err)
}

func TestFailedMigrationClosesConnection(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	err = db.Callback().Raw().Before("gorm:raw").Register("test:fail_ddl", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("read-only file system"))
	})
	require.NoError(t, err)

	_, err = newOwning(db, nil)
	require.ErrorContains(t, err, "read-only file system")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.ErrorContains(t, sqlDB.Ping(), "database is closed")
}
