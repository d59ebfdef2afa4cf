package contracttable_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/chainstate/pkg/contracttable"
	"github.com/iotaledger/chainstate/pkg/types"
)

func seedRows(t *testing.T, c *contracttable.Cursors, n int) {
	t.Helper()
	for primary := 1; primary <= n; primary++ {
		_, _, err := c.StoreI64(scope, table, alice, uint64(primary), []byte(fmt.Sprintf("row-%d", primary)))
		require.NoError(t, err)
	}
}

func baseRequest() contracttable.Request {
	return contracttable.Request{
		Code:  code,
		Scope: scope.String(),
		Table: table,
	}
}

func TestScanPrimary(t *testing.T) {
	store := newTestStore(t)
	seedRows(t, contracttable.NewCursors(store, code), 5)
	s := contracttable.NewScanner(store)

	req := baseRequest()
	req.Limit = 2
	res, err := s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.True(t, res.More)
	require.Equal(t, "3", res.NextKey)
	require.Equal(t, hex.EncodeToString([]byte("row-1")), res.Rows[0].Data)
	require.Equal(t, hex.EncodeToString([]byte("row-2")), res.Rows[1].Data)
	require.True(t, res.Rows[0].Payer.Empty())

	// resuming from the reported key continues without gaps
	req.LowerBound = res.NextKey
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString([]byte("row-3")), res.Rows[0].Data)
	require.Equal(t, "5", res.NextKey)

	req = baseRequest()
	req.LowerBound, req.UpperBound = "2", "4"
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	require.False(t, res.More)
	require.Empty(t, res.NextKey)

	// inverted bounds yield an empty result, not an error
	req.LowerBound, req.UpperBound = "4", "2"
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, res.Rows)

	req = baseRequest()
	req.ShowPayer = true
	req.Limit = 1
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, alice, res.Rows[0].Payer)

	req = baseRequest()
	req.Table = types.MustNameFromString("notable")
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, res.Rows)

	req = baseRequest()
	req.Scope = "!!!"
	_, err = s.ScanTable(context.Background(), req)
	require.ErrorIs(t, err, contracttable.ErrTableQuery)
}

func TestScanReverse(t *testing.T) {
	store := newTestStore(t)
	seedRows(t, contracttable.NewCursors(store, code), 5)
	s := contracttable.NewScanner(store)

	req := baseRequest()
	req.Reverse = true
	req.Limit = 2
	res, err := s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Equal(t, hex.EncodeToString([]byte("row-5")), res.Rows[0].Data)
	require.Equal(t, hex.EncodeToString([]byte("row-4")), res.Rows[1].Data)
	require.True(t, res.More)
	require.Equal(t, "3", res.NextKey)

	req.UpperBound = res.NextKey
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString([]byte("row-3")), res.Rows[0].Data)
}

func TestScanPagination(t *testing.T) {
	store := newTestStore(t)
	seedRows(t, contracttable.NewCursors(store, code), 2500)
	s := contracttable.NewScanner(store)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// with a deadline in effect the per call cap kicks in
	req := baseRequest()
	req.Limit = 5000
	res, err := s.ScanTable(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1000)
	require.True(t, res.More)
	require.Equal(t, "1001", res.NextKey)

	req.LowerBound = res.NextKey
	res, err = s.ScanTable(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1000)
	require.True(t, res.More)
	require.Equal(t, "2001", res.NextKey)

	req.LowerBound = res.NextKey
	res, err = s.ScanTable(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 500)
	require.False(t, res.More)
	require.Empty(t, res.NextKey)

	// without a deadline the requested limit stands
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 500)

	req.LowerBound = ""
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2500)
	require.False(t, res.More)
}

func TestScanSecondary(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)
	for primary := uint64(1); primary <= 5; primary++ {
		_, _, err := c.StoreI64(scope, table, alice, primary, []byte(fmt.Sprintf("row-%d", primary)))
		require.NoError(t, err)
		_, _, err = c.IdxI64.Store(scope, table, alice, primary, 600-100*primary)
		require.NoError(t, err)
	}
	s := contracttable.NewScanner(store)

	req := baseRequest()
	req.IndexPosition = "secondary"
	req.KeyType = "i64"
	req.Limit = 3
	res, err := s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	// secondary order inverts the primary order here
	require.Equal(t, hex.EncodeToString([]byte("row-5")), res.Rows[0].Data)
	require.Equal(t, hex.EncodeToString([]byte("row-4")), res.Rows[1].Data)
	require.Equal(t, hex.EncodeToString([]byte("row-3")), res.Rows[2].Data)
	require.True(t, res.More)
	require.Equal(t, "400", res.NextKey)

	req.LowerBound = res.NextKey
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString([]byte("row-2")), res.Rows[0].Data)
	require.False(t, res.More)

	req = baseRequest()
	req.IndexPosition = "secondary"
	req.KeyType = "i64"
	req.Reverse = true
	req.Limit = 2
	res, err = s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString([]byte("row-1")), res.Rows[0].Data)
	require.Equal(t, hex.EncodeToString([]byte("row-2")), res.Rows[1].Data)
	require.Equal(t, "300", res.NextKey)

	req = baseRequest()
	req.IndexPosition = "secondary"
	_, err = s.ScanTable(context.Background(), req)
	require.ErrorContains(t, err, "unsupported secondary index type")

	req.KeyType = "i42"
	_, err = s.ScanTable(context.Background(), req)
	require.ErrorIs(t, err, contracttable.ErrTableQuery)
}

type stubDecoder struct{}

func (stubDecoder) TableType(abi []byte, table types.Name) (string, error) {
	if len(abi) == 0 {
		return "", ierrors.New("empty abi")
	}

	return "record", nil
}

func (stubDecoder) DecodeRow(abi []byte, rowType string, value []byte) (any, error) {
	if bytes.HasSuffix(value, []byte("-2")) {
		return nil, ierrors.New("undecodable row")
	}

	return map[string]any{"raw": string(value)}, nil
}

func TestScanRowDecoding(t *testing.T) {
	store := newTestStore(t)
	seedRows(t, contracttable.NewCursors(store, code), 3)

	s := contracttable.NewScanner(store,
		contracttable.WithABIProvider(func(contract types.Name) ([]byte, error) {
			require.Equal(t, code, contract)

			return []byte("abi"), nil
		}),
		contracttable.WithRowDecoder(stubDecoder{}),
	)

	req := baseRequest()
	req.JSON = true
	res, err := s.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	require.Equal(t, map[string]any{"raw": "row-1"}, res.Rows[0].Data)
	// rows that fail to decode fall back to their hex image
	require.Equal(t, hex.EncodeToString([]byte("row-2")), res.Rows[1].Data)
	require.Equal(t, map[string]any{"raw": "row-3"}, res.Rows[2].Data)

	// without an ABI provider everything stays hex encoded
	plain := contracttable.NewScanner(store)
	res, err = plain.ScanTable(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString([]byte("row-1")), res.Rows[0].Data)
}
