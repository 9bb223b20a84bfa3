package etl

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_InsertsEveryRecord(t *testing.T) {
	groups := GroupRecords([]Record{
		rec("orders", "id", "1", "amount", "10"),
		rec("orders", "id", "2", "amount", "20"),
		rec("Customer", "id", "7"),
	})
	dest := &MemoryDestination{}

	result, err := NewLoader(4, nil).Load(context.Background(), groups, dest)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 3, result.Inserted)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 3, dest.Count())
	assert.Len(t, dest.Documents("orders"), 2)

	schema, ok := dest.Schema("orders")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "amount"}, schema.FieldNames())

	opened, closed := dest.Sessions()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestLoader_WriteFailureIsIsolated(t *testing.T) {
	groups := GroupRecords([]Record{
		rec("orders", "id", "1"),
		rec("orders", "id", "2"),
		rec("orders", "id", "3"),
		rec("items", "sku", "x"),
	})
	dest := &MemoryDestination{
		InsertFunc: func(ref CollectionRef, r Record) error {
			if ref.Name == "orders" && r.Data["id"] == "2" {
				return errors.New("document rejected")
			}
			return nil
		},
	}

	result, err := NewLoader(2, nil).Load(context.Background(), groups, dest)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Groups, 2)
	assert.Equal(t, GroupResult{Name: "orders", Attempted: 3, Inserted: 2, Failed: 1}, result.Groups[0])
	assert.Equal(t, GroupResult{Name: "items", Attempted: 1, Inserted: 1}, result.Groups[1])
}

func TestLoader_ExtraFieldsStillAttempted(t *testing.T) {
	groups := GroupRecords([]Record{
		rec("t", "a", "1", "b", "2"),
		rec("t", "a", "3", "c", "4"),
	})
	dest := &MemoryDestination{}

	result, err := NewLoader(1, nil).Load(context.Background(), groups, dest)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	schema, _ := dest.Schema("t")
	assert.Equal(t, []string{"a", "b"}, schema.FieldNames())

	var sawExtra bool
	for _, d := range dest.Documents("t") {
		if d.Data["c"] == "4" {
			sawExtra = true
		}
	}
	assert.True(t, sawExtra)
}

func TestLoader_ConnectFailure(t *testing.T) {
	var inserts atomic.Int32
	dest := &MemoryDestination{
		ConnectErr: errors.New("auth failed"),
		InsertFunc: func(CollectionRef, Record) error {
			inserts.Add(1)
			return nil
		},
	}

	result, err := NewLoader(1, nil).Load(context.Background(), GroupRecords([]Record{rec("a", "x", "1")}), dest)

	require.Error(t, err)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StateFailed, result.State)
	assert.Zero(t, result.Inserted)
	assert.Zero(t, inserts.Load())
}

func TestLoader_DeclareFailureSkipsGroup(t *testing.T) {
	groups := GroupRecords([]Record{
		rec("bad", "x", "1"),
		rec("bad", "x", "2"),
		rec("good", "y", "1"),
	})
	dest := &MemoryDestination{
		DeclareFunc: func(name string, _ *Schema) error {
			if name == "bad" {
				return errors.New("invalid collection name")
			}
			return nil
		},
	}

	result, err := NewLoader(2, nil).Load(context.Background(), groups, dest)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, "invalid collection name", result.Groups[0].Error)
	assert.Empty(t, dest.Documents("bad"))
}

func TestLoader_NilDestination(t *testing.T) {
	result, err := NewLoader(1, nil).Load(context.Background(), GroupRecords(nil), nil)
	assert.ErrorIs(t, err, ErrDestinationRequired)
	assert.Equal(t, StateFailed, result.State)
}

func TestLoader_EmptyGroups(t *testing.T) {
	dest := &MemoryDestination{}
	result, err := (&Loader{}).Load(context.Background(), GroupRecords(nil), dest)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Zero(t, result.Inserted)
	_, closed := dest.Sessions()
	assert.Equal(t, 1, closed)
}

func TestLoadState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", LoadState(42).String())
}

func TestLoader_NilGroups(t *testing.T) {
	dest := &MemoryDestination{}

	result, err := NewLoader(1, nil).Load(context.Background(), nil, dest)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Zero(t, result.Inserted)
}

func TestLoader_ConnectionLostBeforeAnyGroup(t *testing.T) {
	groups := GroupRecords([]Record{
		rec("orders", "id", "1"),
		rec("orders", "id", "2"),
	})
	dest := &MemoryDestination{
		DeclareFunc: func(string, *Schema) error {
			return &ConnectionError{Driver: "mongodb", Err: errors.New("socket was unexpectedly closed")}
		},
	}

	result, err := NewLoader(2, nil).Load(context.Background(), groups, dest)

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "mongodb", ce.Driver)
	assert.Equal(t, StateFailed, result.State)
	assert.Zero(t, result.Inserted)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, result.Groups[0].Error, "a lost connection is not a declaration failure")
	_, closed := dest.Sessions()
	assert.Equal(t, 1, closed)
}

func TestLoader_ConnectionLostMidLoad(t *testing.T) {
	groups := GroupRecords([]Record{
		rec("first", "id", "1"),
		rec("second", "id", "2"),
		rec("third", "id", "3"),
	})
	dest := &MemoryDestination{
		InsertFunc: func(ref CollectionRef, _ Record) error {
			if ref.Name == "first" {
				return &ConnectionError{Driver: "mongodb", Err: errors.New("connection reset")}
			}
			return nil
		},
	}

	result, err := NewLoader(1, nil).Load(context.Background(), groups, dest)

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 3, result.Inserted+result.Failed)
	assert.Equal(t, 1, result.Groups[0].Failed)
}

func TestLoader_PlainWriteErrorsDoNotFailLoad(t *testing.T) {
	groups := GroupRecords([]Record{rec("t", "id", "1"), rec("t", "id", "2")})
	dest := &MemoryDestination{
		InsertFunc: func(CollectionRef, Record) error { return errors.New("duplicate key") },
	}

	result, err := NewLoader(2, nil).Load(context.Background(), groups, dest)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 2, result.Failed)
}
