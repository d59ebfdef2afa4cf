package contracttable

import (
	"encoding/binary"
	"math"

	"github.com/iotaledger/hive.go/core/marshalutil"

	"github.com/iotaledger/chainstate/pkg/resource"
	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

const (
	TableTable        = "table_id"
	KeyValueTable     = "key_value"
	IndexI64Table     = "index_i64"
	IndexI128Table    = "index_i128"
	IndexI256Table    = "index_i256"
	IndexFloat64Table = "index_float64"
	// IndexFloat128Table stores raw binary128 secondaries, ordered by an
	// order preserving bit transform.
	IndexFloat128Table = "index_float128"

	tableByCodeScopeTableIndex = "byCodeScopeTable"

	keyValueByScopePrimaryIndex = "byScopePrimary"

	indexByTableIDPrimaryIndex   = "byTableIDPrimary"
	indexByTableIDSecondaryIndex = "byTableIDSecondary"
)

// RegisterTables declares the contract table engine tables on the store.
func RegisterTables(store *statedb.Store) error {
	for _, registration := range []struct {
		name    string
		factory func() statedb.Object
	}{
		{TableTable, func() statedb.Object { return new(Table) }},
		{KeyValueTable, func() statedb.Object { return new(KeyValue) }},
		{IndexI64Table, func() statedb.Object { return new(IndexI64) }},
		{IndexI128Table, func() statedb.Object { return new(IndexI128) }},
		{IndexI256Table, func() statedb.Object { return new(IndexI256) }},
		{IndexFloat64Table, func() statedb.Object { return new(IndexFloat64) }},
		{IndexFloat128Table, func() statedb.Object { return new(IndexFloat128) }},
	} {
		if err := store.RegisterTable(registration.name, registration.factory); err != nil {
			return err
		}
	}

	return nil
}

// Table identifies one contract table by (code, scope, name). It is created
// lazily by the first row write and removed when its row count drops back to
// zero.
type Table struct {
	id    uint64
	Code  types.Name
	Scope types.Name
	Name  types.Name
	Payer types.Name
	Count uint32
}

func (t *Table) TableName() string { return TableTable }
func (t *Table) ID() uint64        { return t.id }
func (t *Table) SetID(id uint64)   { t.id = id }

func (t *Table) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: tableByCodeScopeTableIndex, Key: tableKey(t.Code, t.Scope, t.Name)},
	}
}

func tableKey(code, scope, name types.Name) []byte {
	return statedb.CompositeKey(code.Bytes(), scope.Bytes(), name.Bytes())
}

func (t *Table) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(t.id)
	m.WriteUint64(uint64(t.Code))
	m.WriteUint64(uint64(t.Scope))
	m.WriteUint64(uint64(t.Name))
	m.WriteUint64(uint64(t.Payer))
	m.WriteUint32(t.Count)

	return m.Bytes(), nil
}

func (t *Table) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if t.id, err = m.ReadUint64(); err != nil {
		return err
	}
	if t.Code, err = types.NameFromMarshalUtil(m); err != nil {
		return err
	}
	if t.Scope, err = types.NameFromMarshalUtil(m); err != nil {
		return err
	}
	if t.Name, err = types.NameFromMarshalUtil(m); err != nil {
		return err
	}
	if t.Payer, err = types.NameFromMarshalUtil(m); err != nil {
		return err
	}

	t.Count, err = m.ReadUint32()

	return err
}

func (t *Table) Clone() statedb.Object {
	cloned := *t

	return &cloned
}

// TableBillable is the RAM cost of one table row.
func TableBillable() uint64 {
	return resource.AlignBillable(44 + 2*resource.OverheadPerRowPerIndex)
}

// KeyValue is one primary key row of a contract table.
type KeyValue struct {
	id      uint64
	TableID uint64
	Primary uint64
	Payer   types.Name
	Value   []byte
}

func (k *KeyValue) TableName() string { return KeyValueTable }
func (k *KeyValue) ID() uint64        { return k.id }
func (k *KeyValue) SetID(id uint64)   { k.id = id }

func (k *KeyValue) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: keyValueByScopePrimaryIndex, Key: primaryKey(k.TableID, k.Primary)},
	}
}

func primaryKey(tableID, primary uint64) []byte {
	return statedb.CompositeKey(statedb.Uint64Key(tableID), statedb.Uint64Key(primary))
}

func (k *KeyValue) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(k.id)
	m.WriteUint64(k.TableID)
	m.WriteUint64(k.Primary)
	m.WriteUint64(uint64(k.Payer))
	m.WriteUint32(uint32(len(k.Value)))
	m.WriteBytes(k.Value)

	return m.Bytes(), nil
}

func (k *KeyValue) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if k.id, err = m.ReadUint64(); err != nil {
		return err
	}
	if k.TableID, err = m.ReadUint64(); err != nil {
		return err
	}
	if k.Primary, err = m.ReadUint64(); err != nil {
		return err
	}
	if k.Payer, err = types.NameFromMarshalUtil(m); err != nil {
		return err
	}
	valueLen, err := m.ReadUint32()
	if err != nil {
		return err
	}

	k.Value, err = m.ReadBytes(int(valueLen))

	return err
}

func (k *KeyValue) Clone() statedb.Object {
	cloned := *k
	cloned.Value = append([]byte(nil), k.Value...)

	return &cloned
}

// KeyValueFixedBillable is the RAM cost of a primary row excluding its value
// bytes.
func KeyValueFixedBillable() uint64 {
	return resource.AlignBillable(resource.FixedOverheadSharedVector + 8 + 4 + 2*resource.OverheadPerRowPerIndex)
}

func indexRowBillable(secondarySize uint64) uint64 {
	return resource.AlignBillable(24 + 8 + secondarySize + 3*resource.OverheadPerRowPerIndex)
}

// indexRow is the shared shape of all secondary index rows, used by the
// generic cursor and scan machinery.
type indexRow interface {
	statedb.Object
	table() uint64
	primaryID() uint64
	rowPayer() types.Name
	setPayer(payer types.Name)
	secondaryKey() []byte
}

type indexRowPtr[U any] interface {
	*U
	indexRow
}

func indexPrimaryKey(tableID, primary uint64) []byte {
	return statedb.CompositeKey(statedb.Uint64Key(tableID), statedb.Uint64Key(primary))
}

func indexSecondaryKey(tableID uint64, secondary []byte, primary uint64) []byte {
	return statedb.CompositeKey(statedb.Uint64Key(tableID), secondary, statedb.Uint64Key(primary))
}

// float64Key encodes an IEEE double so that bytewise order equals numeric
// order: negative values get all bits inverted, others the sign bit set.
func float64Key(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)

	return b
}

// float128Key applies the same transform to raw binary128 bits.
func float128Key(bits types.Uint128) []byte {
	b := bits.BigEndian()
	if b[0]&0x80 != 0 {
		for i := range b {
			b[i] = ^b[i]
		}
	} else {
		b[0] |= 0x80
	}

	return b
}

// IndexI64 is a secondary index row with a uint64 key.
type IndexI64 struct {
	id        uint64
	TableID   uint64
	Primary   uint64
	Payer     types.Name
	Secondary uint64
}

func (x *IndexI64) TableName() string { return IndexI64Table }
func (x *IndexI64) ID() uint64        { return x.id }
func (x *IndexI64) SetID(id uint64)   { x.id = id }

func (x *IndexI64) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: indexByTableIDPrimaryIndex, Key: indexPrimaryKey(x.TableID, x.Primary)},
		{Index: indexByTableIDSecondaryIndex, Key: indexSecondaryKey(x.TableID, x.secondaryKey(), x.Primary)},
	}
}

func (x *IndexI64) table() uint64        { return x.TableID }
func (x *IndexI64) primaryID() uint64    { return x.Primary }
func (x *IndexI64) rowPayer() types.Name { return x.Payer }
func (x *IndexI64) setPayer(payer types.Name) { x.Payer = payer }
func (x *IndexI64) secondaryKey() []byte { return statedb.Uint64Key(x.Secondary) }

func (x *IndexI64) Bytes() ([]byte, error) {
	m := marshalutil.New()
	writeIndexRowHeader(m, x.id, x.TableID, x.Primary, x.Payer)
	m.WriteUint64(x.Secondary)

	return m.Bytes(), nil
}

func (x *IndexI64) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if err = x.readHeader(m); err != nil {
		return err
	}

	x.Secondary, err = m.ReadUint64()

	return err
}

func (x *IndexI64) readHeader(m *marshalutil.MarshalUtil) error {
	return readIndexRowHeader(m, &x.id, &x.TableID, &x.Primary, &x.Payer)
}

func (x *IndexI64) Clone() statedb.Object {
	cloned := *x

	return &cloned
}

// IndexI64Billable is the RAM cost of one i64 index row.
func IndexI64Billable() uint64 { return indexRowBillable(8) }

// IndexI128 is a secondary index row with a 128 bit key.
type IndexI128 struct {
	id        uint64
	TableID   uint64
	Primary   uint64
	Payer     types.Name
	Secondary types.Uint128
}

func (x *IndexI128) TableName() string { return IndexI128Table }
func (x *IndexI128) ID() uint64        { return x.id }
func (x *IndexI128) SetID(id uint64)   { x.id = id }

func (x *IndexI128) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: indexByTableIDPrimaryIndex, Key: indexPrimaryKey(x.TableID, x.Primary)},
		{Index: indexByTableIDSecondaryIndex, Key: indexSecondaryKey(x.TableID, x.secondaryKey(), x.Primary)},
	}
}

func (x *IndexI128) table() uint64        { return x.TableID }
func (x *IndexI128) primaryID() uint64    { return x.Primary }
func (x *IndexI128) rowPayer() types.Name { return x.Payer }
func (x *IndexI128) setPayer(payer types.Name) { x.Payer = payer }
func (x *IndexI128) secondaryKey() []byte { return x.Secondary.BigEndian() }

func (x *IndexI128) Bytes() ([]byte, error) {
	m := marshalutil.New()
	writeIndexRowHeader(m, x.id, x.TableID, x.Primary, x.Payer)
	m.WriteBytes(x.Secondary.BigEndian())

	return m.Bytes(), nil
}

func (x *IndexI128) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if err = readIndexRowHeader(m, &x.id, &x.TableID, &x.Primary, &x.Payer); err != nil {
		return err
	}
	raw, err := m.ReadBytes(16)
	if err != nil {
		return err
	}
	x.Secondary = types.Uint128FromBigEndian(raw)

	return nil
}

func (x *IndexI128) Clone() statedb.Object {
	cloned := *x

	return &cloned
}

// IndexI128Billable is the RAM cost of one i128 index row.
func IndexI128Billable() uint64 { return indexRowBillable(16) }

// IndexI256 is a secondary index row with a 256 bit key. Checksum keys
// (sha256, ripemd160) are stored in this family as well.
type IndexI256 struct {
	id        uint64
	TableID   uint64
	Primary   uint64
	Payer     types.Name
	Secondary types.Uint256
}

func (x *IndexI256) TableName() string { return IndexI256Table }
func (x *IndexI256) ID() uint64        { return x.id }
func (x *IndexI256) SetID(id uint64)   { x.id = id }

func (x *IndexI256) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: indexByTableIDPrimaryIndex, Key: indexPrimaryKey(x.TableID, x.Primary)},
		{Index: indexByTableIDSecondaryIndex, Key: indexSecondaryKey(x.TableID, x.secondaryKey(), x.Primary)},
	}
}

func (x *IndexI256) table() uint64        { return x.TableID }
func (x *IndexI256) primaryID() uint64    { return x.Primary }
func (x *IndexI256) rowPayer() types.Name { return x.Payer }
func (x *IndexI256) setPayer(payer types.Name) { x.Payer = payer }
func (x *IndexI256) secondaryKey() []byte { return x.Secondary.BigEndian() }

func (x *IndexI256) Bytes() ([]byte, error) {
	m := marshalutil.New()
	writeIndexRowHeader(m, x.id, x.TableID, x.Primary, x.Payer)
	m.WriteBytes(x.Secondary.BigEndian())

	return m.Bytes(), nil
}

func (x *IndexI256) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if err = readIndexRowHeader(m, &x.id, &x.TableID, &x.Primary, &x.Payer); err != nil {
		return err
	}
	raw, err := m.ReadBytes(32)
	if err != nil {
		return err
	}
	x.Secondary = types.Uint256FromBigEndian(raw)

	return nil
}

func (x *IndexI256) Clone() statedb.Object {
	cloned := *x

	return &cloned
}

// IndexI256Billable is the RAM cost of one i256 index row.
func IndexI256Billable() uint64 { return indexRowBillable(32) }

// IndexFloat64 is a secondary index row with an IEEE double key.
type IndexFloat64 struct {
	id        uint64
	TableID   uint64
	Primary   uint64
	Payer     types.Name
	Secondary float64
}

func (x *IndexFloat64) TableName() string { return IndexFloat64Table }
func (x *IndexFloat64) ID() uint64        { return x.id }
func (x *IndexFloat64) SetID(id uint64)   { x.id = id }

func (x *IndexFloat64) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: indexByTableIDPrimaryIndex, Key: indexPrimaryKey(x.TableID, x.Primary)},
		{Index: indexByTableIDSecondaryIndex, Key: indexSecondaryKey(x.TableID, x.secondaryKey(), x.Primary)},
	}
}

func (x *IndexFloat64) table() uint64        { return x.TableID }
func (x *IndexFloat64) primaryID() uint64    { return x.Primary }
func (x *IndexFloat64) rowPayer() types.Name { return x.Payer }
func (x *IndexFloat64) setPayer(payer types.Name) { x.Payer = payer }
func (x *IndexFloat64) secondaryKey() []byte { return float64Key(x.Secondary) }

func (x *IndexFloat64) Bytes() ([]byte, error) {
	m := marshalutil.New()
	writeIndexRowHeader(m, x.id, x.TableID, x.Primary, x.Payer)
	m.WriteUint64(math.Float64bits(x.Secondary))

	return m.Bytes(), nil
}

func (x *IndexFloat64) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if err = readIndexRowHeader(m, &x.id, &x.TableID, &x.Primary, &x.Payer); err != nil {
		return err
	}
	bits, err := m.ReadUint64()
	if err != nil {
		return err
	}
	x.Secondary = math.Float64frombits(bits)

	return nil
}

func (x *IndexFloat64) Clone() statedb.Object {
	cloned := *x

	return &cloned
}

// IndexFloat64Billable is the RAM cost of one float64 index row.
func IndexFloat64Billable() uint64 { return indexRowBillable(8) }

// IndexFloat128 is a secondary index row with a raw binary128 key. The store
// never does arithmetic on it; ordering follows the float128Key transform.
type IndexFloat128 struct {
	id        uint64
	TableID   uint64
	Primary   uint64
	Payer     types.Name
	Secondary types.Uint128
}

func (x *IndexFloat128) TableName() string { return IndexFloat128Table }
func (x *IndexFloat128) ID() uint64        { return x.id }
func (x *IndexFloat128) SetID(id uint64)   { x.id = id }

func (x *IndexFloat128) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: indexByTableIDPrimaryIndex, Key: indexPrimaryKey(x.TableID, x.Primary)},
		{Index: indexByTableIDSecondaryIndex, Key: indexSecondaryKey(x.TableID, x.secondaryKey(), x.Primary)},
	}
}

func (x *IndexFloat128) table() uint64        { return x.TableID }
func (x *IndexFloat128) primaryID() uint64    { return x.Primary }
func (x *IndexFloat128) rowPayer() types.Name { return x.Payer }
func (x *IndexFloat128) setPayer(payer types.Name) { x.Payer = payer }
func (x *IndexFloat128) secondaryKey() []byte { return float128Key(x.Secondary) }

func (x *IndexFloat128) Bytes() ([]byte, error) {
	m := marshalutil.New()
	writeIndexRowHeader(m, x.id, x.TableID, x.Primary, x.Payer)
	m.WriteBytes(x.Secondary.BigEndian())

	return m.Bytes(), nil
}

func (x *IndexFloat128) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if err = readIndexRowHeader(m, &x.id, &x.TableID, &x.Primary, &x.Payer); err != nil {
		return err
	}
	raw, err := m.ReadBytes(16)
	if err != nil {
		return err
	}
	x.Secondary = types.Uint128FromBigEndian(raw)

	return nil
}

func (x *IndexFloat128) Clone() statedb.Object {
	cloned := *x

	return &cloned
}

// IndexFloat128Billable is the RAM cost of one float128 index row.
func IndexFloat128Billable() uint64 { return indexRowBillable(16) }

func writeIndexRowHeader(m *marshalutil.MarshalUtil, id, tableID, primary uint64, payer types.Name) {
	m.WriteUint64(id)
	m.WriteUint64(tableID)
	m.WriteUint64(primary)
	m.WriteUint64(uint64(payer))
}

func readIndexRowHeader(m *marshalutil.MarshalUtil, id, tableID, primary *uint64, payer *types.Name) (err error) {
	if *id, err = m.ReadUint64(); err != nil {
		return err
	}
	if *tableID, err = m.ReadUint64(); err != nil {
		return err
	}
	if *primary, err = m.ReadUint64(); err != nil {
		return err
	}

	*payer, err = types.NameFromMarshalUtil(m)

	return err
}
