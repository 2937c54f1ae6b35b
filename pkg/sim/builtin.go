package sim

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Elementary file ids used by the guest and the console.
const (
	EFSPN    uint16 = 0x6f14 // service provider name (CPHS)
	EFVMFlag uint16 = 0x6f11 // voice mail waiting (CPHS)
	EFICCID  uint16 = 0x2fe2
	EFCFF    uint16 = 0x6f13 // call forwarding flags (CPHS)
	EFUST    uint16 = 0x6f38
	EFVMWI   uint16 = 0x6fc9
	EFCFI    uint16 = 0x6fca
	EFAD     uint16 = 0x6fad
	EFExtUST uint16 = 0x4f20
	EFInfo   uint16 = 0x6f16
	EFSPNGSM uint16 = 0x6f46
	EFSPDI   uint16 = 0x6fcd
	EFPNN    uint16 = 0x6fc5
	EFOPL    uint16 = 0x6fc6
	EFMSISDN uint16 = 0x6f40
	EFMBDN   uint16 = 0x6fc7
	EFADN    uint16 = 0x6f3a
	EFFDN    uint16 = 0x6f3b
	EFACL    uint16 = 0x6f45
	EFEHPLMN uint16 = 0x6f48
	EFPLMNwA uint16 = 0x6f50
)

type builtinRecord struct {
	n   int
	hex string
}

type builtinFile struct {
	id      uint16
	flags   Flags
	data    string // transparent files
	recLen  int    // record files when > 0
	records []builtinRecord
}

// blank is a record filled with the pad byte.
func blank(recLen int) string { return strings.Repeat("ff", recLen) }

var adnRecords = []builtinRecord{
	{1, "4d6f7a696c6c61ffffffffffffffffffffff07815155258102f1ffffffffffff"},
	{2, "800053006100df00ea9ec3ffffffffffffff07815155258102f2ffffffffffff"},
	{3, "8106e04669726520ebffffffffffffffffff07815155258102f3ffffffffffff"},
	{4, "82079e804875616e6720c3ffffffffffffff07815155258102f4ffffffffffff"},
	{255, blank(0x20)},
}

func builtinFiles(basePort, instance int) []builtinFile {
	msisdn := fmt.Sprintf("ffffffffffffffffffffffffffffffffffff0781515525%d%d%d%df%dffffffffffff",
		(basePort/1000)%10, instance+1, (basePort/10)%10, (basePort/100)%10, basePort%10)

	return []builtinFile{
		{id: EFSPN, flags: ReadOnly | NeedPIN, data: "416e64726f6964ffffffffffffffffffffffffff"},
		{id: EFVMFlag, flags: NeedPIN, data: "55"},
		{id: EFICCID, flags: ReadOnly, data: fmt.Sprintf("981014301211811570%d2", instance)},
		{id: EFCFF, flags: NeedPIN, data: "55"},
		{id: EFUST, flags: ReadOnly | NeedPIN, data: "ff30ffff3f003f0f000c0000f0ff00"},
		{id: EFVMWI, flags: NeedPIN, recLen: 4, records: []builtinRecord{
			{1, "01000000"}, {2, "ffffffff"},
		}},
		{id: EFCFI, flags: NeedPIN, recLen: 5, records: []builtinRecord{
			{1, "0000000000"}, {2, "ffffffffff"},
		}},
		{id: EFAD, flags: ReadOnly, data: "00000003"},
		{id: EFExtUST, recLen: 0x14, records: []builtinRecord{
			{1, "010808214f0200000016ffffffffffffffffffff"}, {5, blank(0x14)},
		}},
		{id: EFInfo, flags: ReadOnly | NeedPIN, data: "0233"},
		{id: EFSPNGSM, flags: ReadOnly, data: "01416e64726f6964ffffffffffffffffff"},
		{id: EFSPDI, flags: ReadOnly, data: "a30b800932643164269fffffff"},
		{id: EFPNN, flags: ReadOnly, recLen: 0x18, records: []builtinRecord{
			{1, "430685d4f29c1e03450685d4f29c1e03ffffffffffffffff"},
			{2, "430685d4f29c2e03ffffffffffffffffffffffffffffffff"},
			{3, "430685d4f29c3e03ffffffffffffffffffffffffffffffff"},
			{4, "430685d4f29c4e03ffffffffffffffffffffffffffffffff"},
			{10, blank(0x18)},
		}},
		{id: EFOPL, flags: ReadOnly, recLen: 0x18, records: []builtinRecord{
			{1, "00110f0000fffe01ffffffffffffffffffffffffffffffff"},
			{2, "00210f0001001002ffffffffffffffffffffffffffffffff"},
			{3, "00310f0011001103ffffffffffffffffffffffffffffffff"},
			{4, "0011000012001204ffffffffffffffffffffffffffffffff"},
			{10, blank(0x18)},
		}},
		{id: EFMSISDN, flags: NeedPIN, recLen: 0x20, records: []builtinRecord{
			{1, msisdn}, {4, blank(0x20)},
		}},
		{id: EFMBDN, flags: NeedPIN, recLen: 0x20, records: []builtinRecord{
			{1, "566f6963656d61696cffffffffffffffffff07915155125740f9ffffffffffff"},
			{2, blank(0x20)},
		}},
		{id: EFADN, flags: NeedPIN, recLen: 0x20, records: adnRecords},
		{id: EFFDN, flags: NeedPIN, recLen: 0x20, records: adnRecords},
		{id: EFACL, flags: ReadOnly, data: "b000fffff000"},
		{id: EFEHPLMN, flags: ReadOnly, data: "c001fffff001"},
		{id: EFPLMNwA, flags: ReadOnly, data: "b002c000ffffc001c001fffff002ff00"},
	}
}

// installBuiltinFiles populates a fresh card. The table is constant, so a
// malformed entry is a programming error.
func installBuiltinFiles(c *Card) {
	for _, bf := range builtinFiles(c.basePort, c.instance) {
		if bf.recLen == 0 {
			data, err := hex.DecodeString(bf.data)
			if err != nil {
				panic(fmt.Sprintf("sim: builtin file %04x: %v", bf.id, err))
			}
			c.Add(NewTransparent(bf.id, bf.flags, data))
			continue
		}
		f := NewLinear(bf.id, bf.flags, bf.recLen)
		for _, r := range bf.records {
			if err := f.Put(r.n, r.hex); err != nil {
				panic(fmt.Sprintf("sim: builtin file %04x record %d: %v", bf.id, r.n, err))
			}
		}
		c.Add(f)
	}
}
