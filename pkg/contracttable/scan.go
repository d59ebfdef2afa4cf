package contracttable

import (
	"bytes"
	"context"
	"encoding/hex"
	"math"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/zyedidia/generic/cache"

	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

const (
	// MaxScanRows caps a single deadline-bounded scan regardless of the
	// requested limit.
	MaxScanRows = 1000

	defaultScanLimit    = 10
	defaultABICacheSize = 32
)

// ABIProvider returns the serialized ABI deployed for a code account, or an
// empty slice when the account carries none.
type ABIProvider func(code types.Name) ([]byte, error)

// RowDecoder turns raw row images into structured values using a contract
// ABI. Scans fall back to hex encoding when decoding fails.
type RowDecoder interface {
	TableType(abi []byte, table types.Name) (string, error)
	DecodeRow(abi []byte, rowType string, value []byte) (any, error)
}

// Scanner serves read-only range queries over contract tables. It walks the
// ordered indexes directly and never touches iterator handles, so it is safe
// to use outside action execution.
type Scanner struct {
	store        *statedb.Store
	logger       log.Logger
	abis         ABIProvider
	decoder      RowDecoder
	abiCache     *cache.Cache[types.Name, []byte]
	abiCacheSize int
}

func NewScanner(store *statedb.Store, opts ...options.Option[Scanner]) *Scanner {
	return options.Apply(&Scanner{
		store:        store,
		logger:       log.NewLogger(),
		abiCacheSize: defaultABICacheSize,
	}, opts, func(s *Scanner) {
		s.abiCache = cache.New[types.Name, []byte](s.abiCacheSize)
	})
}

func WithLogger(logger log.Logger) options.Option[Scanner] {
	return func(s *Scanner) {
		s.logger = logger
	}
}

func WithABIProvider(provider ABIProvider) options.Option[Scanner] {
	return func(s *Scanner) {
		s.abis = provider
	}
}

func WithRowDecoder(decoder RowDecoder) options.Option[Scanner] {
	return func(s *Scanner) {
		s.decoder = decoder
	}
}

func WithABICacheSize(size int) options.Option[Scanner] {
	return func(s *Scanner) {
		s.abiCacheSize = size
	}
}

// Request selects a contiguous range of rows from one table index.
type Request struct {
	Code          types.Name
	Scope         string
	Table         types.Name
	IndexPosition string
	KeyType       string
	EncodeType    string
	LowerBound    string
	UpperBound    string
	Limit         uint32
	Reverse       bool
	ShowPayer     bool
	JSON          bool
}

type Row struct {
	Data  any
	Payer types.Name
}

type Result struct {
	Rows    []Row
	More    bool
	NextKey string
}

type rawRow struct {
	value []byte
	payer types.Name
}

// ScanTable returns up to Limit rows between the request bounds, both
// inclusive. When the walk stops early the result carries More plus the key
// to resume from. The context deadline bounds the walk, not the decode
// phase, and decoding falls back to hex on any failure.
func (s *Scanner) ScanTable(ctx context.Context, req Request) (*Result, error) {
	indexTable, primary, err := resolveIndexTable(req.Table, req.IndexPosition)
	if err != nil {
		return nil, err
	}
	scopeRaw, err := parseUint64Value(req.Scope, "scope")
	if err != nil {
		return nil, err
	}
	scope := types.Name(scopeRaw)

	var (
		raw     []rawRow
		more    bool
		nextKey string
	)
	if primary {
		raw, more, nextKey, err = s.scanPrimary(ctx, req, scope)
	} else {
		raw, more, nextKey, err = s.scanSecondary(ctx, req, scope, indexTable)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Rows:    s.decodeRows(req, raw),
		More:    more,
		NextKey: nextKey,
	}, nil
}

func (s *Scanner) scanPrimary(ctx context.Context, req Request, scope types.Name) ([]rawRow, bool, string, error) {
	switch req.KeyType {
	case "", KeyTypeI64, KeyTypeName:
	default:
		return nil, false, "", ierrors.Wrapf(ErrTableQuery, "invalid key type %q for primary index", req.KeyType)
	}

	tab, ok := statedb.Find[Table](s.store, tableKey(req.Code, scope, req.Table))
	if !ok {
		return nil, false, "", nil
	}

	lower, upper := uint64(0), uint64(math.MaxUint64)
	var err error
	if req.LowerBound != "" {
		if lower, err = s.parsePrimaryBound(req.KeyType, req.LowerBound, "lower_bound"); err != nil {
			return nil, false, "", err
		}
	}
	if req.UpperBound != "" {
		if upper, err = s.parsePrimaryBound(req.KeyType, req.UpperBound, "upper_bound"); err != nil {
			return nil, false, "", err
		}
	}
	if upper < lower {
		return nil, false, "", nil
	}

	lowKey := primaryKey(tab.ID(), lower)
	upKey := primaryKey(tab.ID(), upper)

	it, advance, within := boundedWalk[KeyValue, *KeyValue](s.store, keyValueByScopePrimaryIndex, lowKey, upKey, req.Reverse)

	var (
		rows  []rawRow
		more  bool
		next  string
		count uint32
	)
	limit := scanLimit(ctx, req.Limit)
	deadline, hasDeadline := ctx.Deadline()
	for within() {
		if count == limit || (hasDeadline && time.Now().After(deadline)) {
			more = true
			next = formatUint64Key(it.Value().Primary, req.EncodeType)

			break
		}
		kv := it.Value()
		rows = append(rows, rawRow{value: kv.Value, payer: kv.Payer})
		count++
		advance()
	}

	return rows, more, next, nil
}

func (s *Scanner) parsePrimaryBound(keyType, value, desc string) (uint64, error) {
	if keyType == KeyTypeName {
		return parseNameValue(value, desc)
	}

	return parseUint64Value(value, desc)
}

func (s *Scanner) scanSecondary(ctx context.Context, req Request, scope, indexTable types.Name) ([]rawRow, bool, string, error) {
	switch req.KeyType {
	case KeyTypeI64, KeyTypeName:
		lowSec, upSec := statedb.Uint64Key(0), statedb.Uint64Key(math.MaxUint64)
		if req.LowerBound != "" {
			v, err := s.parsePrimaryBound(req.KeyType, req.LowerBound, "lower_bound")
			if err != nil {
				return nil, false, "", err
			}
			lowSec = statedb.Uint64Key(v)
		}
		if req.UpperBound != "" {
			v, err := s.parsePrimaryBound(req.KeyType, req.UpperBound, "upper_bound")
			if err != nil {
				return nil, false, "", err
			}
			upSec = statedb.Uint64Key(v)
		}

		return scanIndexRows[IndexI64](s, ctx, req, scope, indexTable, lowSec, upSec, func(row *IndexI64) string {
			return formatUint64Key(row.Secondary, req.EncodeType)
		})

	case KeyTypeI128:
		lowSec := make([]byte, 16)
		upSec := bytes.Repeat([]byte{0xff}, 16)
		if req.LowerBound != "" {
			v, err := parseUint128Value(req.LowerBound, req.EncodeType)
			if err != nil {
				return nil, false, "", err
			}
			lowSec = v.BigEndian()
		}
		if req.UpperBound != "" {
			v, err := parseUint128Value(req.UpperBound, req.EncodeType)
			if err != nil {
				return nil, false, "", err
			}
			upSec = v.BigEndian()
		}

		return scanIndexRows[IndexI128](s, ctx, req, scope, indexTable, lowSec, upSec, func(row *IndexI128) string {
			return formatUint128Key(row.Secondary, req.EncodeType)
		})

	case KeyTypeI256, KeyTypeSHA256, KeyTypeRIPEMD160:
		lowSec := make([]byte, 32)
		upSec := bytes.Repeat([]byte{0xff}, 32)
		parse := func(value string) (types.Uint256, error) {
			switch req.KeyType {
			case KeyTypeSHA256:
				return parseChecksumValue(value, 32)
			case KeyTypeRIPEMD160:
				return parseChecksumValue(value, 20)
			default:
				return parseUint256Value(value, req.EncodeType)
			}
		}
		if req.LowerBound != "" {
			v, err := parse(req.LowerBound)
			if err != nil {
				return nil, false, "", err
			}
			lowSec = v.BigEndian()
		}
		if req.UpperBound != "" {
			v, err := parse(req.UpperBound)
			if err != nil {
				return nil, false, "", err
			}
			upSec = v.BigEndian()
		}

		return scanIndexRows[IndexI256](s, ctx, req, scope, indexTable, lowSec, upSec, func(row *IndexI256) string {
			return formatUint256Key(row.Secondary, req.EncodeType)
		})

	case KeyTypeFloat64:
		lowSec := float64Key(math.Inf(-1))
		upSec := float64Key(math.Inf(1))
		if req.LowerBound != "" {
			v, err := parseFloat64Value(req.LowerBound)
			if err != nil {
				return nil, false, "", err
			}
			lowSec = float64Key(v)
		}
		if req.UpperBound != "" {
			v, err := parseFloat64Value(req.UpperBound)
			if err != nil {
				return nil, false, "", err
			}
			upSec = float64Key(v)
		}

		return scanIndexRows[IndexFloat64](s, ctx, req, scope, indexTable, lowSec, upSec, func(row *IndexFloat64) string {
			return formatFloat64Key(row.Secondary)
		})

	case KeyTypeFloat128:
		lowSec := float128Key(float128FromFloat64(math.Inf(-1)))
		upSec := float128Key(float128FromFloat64(math.Inf(1)))
		if req.LowerBound != "" {
			v, err := parseFloat128Value(req.LowerBound, req.EncodeType)
			if err != nil {
				return nil, false, "", err
			}
			lowSec = float128Key(v)
		}
		if req.UpperBound != "" {
			v, err := parseFloat128Value(req.UpperBound, req.EncodeType)
			if err != nil {
				return nil, false, "", err
			}
			upSec = float128Key(v)
		}

		return scanIndexRows[IndexFloat128](s, ctx, req, scope, indexTable, lowSec, upSec, func(row *IndexFloat128) string {
			return formatFloat128Key(row.Secondary)
		})

	default:
		return nil, false, "", ierrors.Wrapf(ErrTableQuery, "unsupported secondary index type %q", req.KeyType)
	}
}

// scanIndexRows walks one secondary index family between the encoded bounds
// and resolves each hit against the primary table. Index rows whose primary
// row went missing are skipped but still count against the limit.
func scanIndexRows[U any, T indexRowPtr[U]](
	s *Scanner, ctx context.Context, req Request, scope, indexTable types.Name,
	lowSec, upSec []byte, format func(T) string,
) ([]rawRow, bool, string, error) {
	if bytes.Compare(upSec, lowSec) < 0 {
		return nil, false, "", nil
	}
	tab, ok := statedb.Find[Table](s.store, tableKey(req.Code, scope, req.Table))
	if !ok {
		return nil, false, "", nil
	}
	idxTab, ok := statedb.Find[Table](s.store, tableKey(req.Code, scope, indexTable))
	if !ok {
		return nil, false, "", nil
	}

	lowKey := indexSecondaryKey(idxTab.ID(), lowSec, 0)
	upKey := indexSecondaryKey(idxTab.ID(), upSec, math.MaxUint64)

	it, advance, within := boundedWalk[U, T](s.store, indexByTableIDSecondaryIndex, lowKey, upKey, req.Reverse)

	var (
		rows  []rawRow
		more  bool
		next  string
		count uint32
	)
	limit := scanLimit(ctx, req.Limit)
	deadline, hasDeadline := ctx.Deadline()
	for within() {
		if count == limit || (hasDeadline && time.Now().After(deadline)) {
			more = true
			next = format(it.Value())

			break
		}
		row := it.Value()
		count++
		advance()

		kv, ok := statedb.Find[KeyValue](s.store, primaryKey(tab.ID(), row.primaryID()))
		if !ok {
			continue
		}
		rows = append(rows, rawRow{value: kv.Value, payer: kv.Payer})
	}

	return rows, more, next, nil
}

// boundedWalk positions an iterator at the first row of an inclusive key
// range and returns it together with its step and continuation functions.
// Reverse walks start from the upper bound and step backwards.
func boundedWalk[U any, T statedb.ObjectPtr[U]](
	s *statedb.Store, index string, lowKey, upKey []byte, reverse bool,
) (*statedb.Iterator[U, T], func(), func() bool) {
	if reverse {
		it := statedb.UpperBound[U, T](s, index, upKey)
		if it.Valid() {
			it.Prev()
		} else {
			it = statedb.Last[U, T](s, index)
		}

		return it, it.Prev, func() bool {
			return it.Valid() && bytes.Compare(it.Key(), lowKey) >= 0
		}
	}

	it := statedb.LowerBound[U, T](s, index, lowKey)

	return it, it.Next, func() bool {
		return it.Valid() && bytes.Compare(it.Key(), upKey) <= 0
	}
}

// scanLimit applies the request default and, when the context carries a
// deadline, the hard per-call cap.
func scanLimit(ctx context.Context, requested uint32) uint32 {
	limit := requested
	if limit == 0 {
		limit = defaultScanLimit
	}
	if _, ok := ctx.Deadline(); ok && limit > MaxScanRows {
		limit = MaxScanRows
	}

	return limit
}

func (s *Scanner) decodeRows(req Request, raw []rawRow) []Row {
	rows := make([]Row, 0, len(raw))

	var (
		abi     []byte
		rowType string
	)
	if req.JSON && s.decoder != nil {
		abi = s.contractABI(req.Code)
		if abi != nil {
			resolved, err := s.decoder.TableType(abi, req.Table)
			if err != nil {
				s.logger.LogDebugf("no row type for table %s of %s: %s", req.Table, req.Code, err)
				abi = nil
			} else {
				rowType = resolved
			}
		}
	}

	for _, r := range raw {
		var data any = hex.EncodeToString(r.value)
		if abi != nil {
			if decoded, err := s.decoder.DecodeRow(abi, rowType, r.value); err == nil {
				data = decoded
			} else {
				s.logger.LogDebugf("row of %s/%s does not decode as %s: %s", req.Code, req.Table, rowType, err)
			}
		}
		row := Row{Data: data}
		if req.ShowPayer {
			row.Payer = r.payer
		}
		rows = append(rows, row)
	}

	return rows
}

func (s *Scanner) contractABI(code types.Name) []byte {
	if cached, ok := s.abiCache.Get(code); ok {
		return cached
	}
	if s.abis == nil {
		return nil
	}
	abi, err := s.abis(code)
	if err != nil || len(abi) == 0 {
		return nil
	}
	s.abiCache.Put(code, abi)

	return abi
}
