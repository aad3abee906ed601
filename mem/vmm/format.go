package vmm

// format describes one ARM MMU descriptor layout: how many table levels a
// virtual address walks through before reaching a leaf, how many 32-bit
// words each descriptor occupies, and how to encode/decode a leaf or
// table-pointer descriptor. Selecting a format is the engine's one
// polymorphism point (design note: "capability set" chosen once, when New
// builds the Engine for a probed Mode), rather than branching on Mode
// throughout the map/unmap path.
type format struct {
	mode Mode

	// levelBits partitions the 20 index bits of a 32-bit virtual
	// address (bits 31:12; the low 12 bits select the byte within the
	// 4KiB leaf) across the table levels walked before reaching the
	// leaf, most-significant first.
	levelBits []int

	// entryWords is 1 for the short-descriptor format, 2 for LPAE.
	entryWords int

	encodeLeaf  func(paddr uint32, memType MemType, flags PageFlags) []uint32
	decodeLeaf  func(words []uint32) (paddr uint32, present bool, memType MemType, flags PageFlags)
	encodeTable func(tableFrame uint32) []uint32
	decodeTable func(words []uint32) (tableFrame uint32, present bool)
}

func formatFor(mode Mode) format {
	if mode.usesLongDescriptor() {
		return lpaeFormat(mode)
	}
	return shortFormat(mode)
}

// --- ARMv6/v7 short-descriptor format -------------------------------------
//
// Two levels: L1 (4096 entries, VA[31:20], "coarse table pointer" when not
// a 1MiB section), L2 (256 entries, VA[19:12], small-page descriptor).
// Bit layout grounded on the teacher's arm/mmu.go TTE_* constants,
// generalized from 1MiB sections to 4KiB small pages.

const (
	shortL1CoarseTag  uint32 = 0x1 // bits[1:0] == 0b01: coarse page table
	shortL2SmallTag   uint32 = 0x2 // bit[1] set: small page (4KiB); bit[0] is its XN bit
	shortL2XN         uint32 = 1 << 0
	shortL2Bufferable uint32 = 1 << 2
	shortL2Cacheable  uint32 = 1 << 3
	shortL2APReadOnly uint32 = 0x2 << 4 // AP[1:0] encoded pre-shifted
	shortL2APFull     uint32 = 0x3 << 4
	shortL2Shared     uint32 = 1 << 10
)

func shortFormat(mode Mode) format {
	return format{
		mode:       mode,
		levelBits:  []int{12, 8},
		entryWords: 1,
		encodeLeaf: func(paddr uint32, memType MemType, flags PageFlags) []uint32 {
			v := paddr&^(PageSize-1) | shortL2SmallTag

			switch memType {
			case Normal:
				v |= shortL2Bufferable | shortL2Cacheable
			case Device:
				v |= shortL2Bufferable
			case StronglyOrdered:
				// neither bufferable nor cacheable
			}

			if flags.has(ReadOnly) {
				v |= shortL2APReadOnly
			} else {
				v |= shortL2APFull
			}
			if flags.has(Shared) {
				v |= shortL2Shared
			}
			if !flags.has(Executable) {
				v |= shortL2XN
			}

			return []uint32{v}
		},
		decodeLeaf: func(words []uint32) (uint32, bool, MemType, PageFlags) {
			v := words[0]
			if v&shortL2SmallTag == 0 {
				return 0, false, 0, 0
			}

			paddr := v &^ (PageSize - 1)

			var memType MemType
			switch {
			case v&shortL2Cacheable != 0:
				memType = Normal
			case v&shortL2Bufferable != 0:
				memType = Device
			default:
				memType = StronglyOrdered
			}

			var flags PageFlags
			if v&shortL2XN == 0 {
				flags |= Executable
			}
			if v&(0x3<<4) == shortL2APReadOnly {
				flags |= ReadOnly
			}
			if v&shortL2Shared != 0 {
				flags |= Shared
			}

			return paddr, true, memType, flags
		},
		encodeTable: func(tableFrame uint32) []uint32 {
			return []uint32{tableFrame&^0x3ff | shortL1CoarseTag}
		},
		decodeTable: func(words []uint32) (uint32, bool) {
			v := words[0]
			if v&0x3 != shortL1CoarseTag {
				return 0, false
			}
			return v &^ 0x3ff, true
		},
	}
}

// --- ARMv7 LPAE (long-descriptor) format -----------------------------------
//
// Three levels: PGD (4 entries, VA[31:30]), PMD (512 entries, VA[29:21]),
// PTE (512 entries, VA[20:12]), 64-bit descriptors represented here as two
// little-endian 32-bit words.

const (
	lpaeValid     uint64 = 1 << 0
	lpaeTableOrPg uint64 = 1 << 1 // table pointer at non-leaf levels, page at leaf
	lpaeAttrIdx0  uint64 = 0 << 2 // AttrIndx=0 -> Normal memory (MAIR[0])
	lpaeAttrIdx1  uint64 = 1 << 2 // AttrIndx=1 -> Device memory (MAIR[1])
	lpaeAPReadOnl uint64 = 1 << 7
	lpaeShared    uint64 = 0x3 << 8 // inner+outer shareable
	lpaeAF        uint64 = 1 << 10 // access flag, always set: no access-fault handling here
	lpaeXN        uint64 = 1 << 54
)

func lpaeFormat(mode Mode) format {
	return format{
		mode:       mode,
		levelBits:  []int{2, 9, 9},
		entryWords: 2,
		encodeLeaf: func(paddr uint32, memType MemType, flags PageFlags) []uint32 {
			v := uint64(paddr&^(PageSize-1)) | lpaeValid | lpaeTableOrPg | lpaeAF

			switch memType {
			case Normal:
				v |= lpaeAttrIdx0
			case Device, StronglyOrdered:
				v |= lpaeAttrIdx1
			}

			if flags.has(ReadOnly) {
				v |= lpaeAPReadOnl
			}
			if flags.has(Shared) {
				v |= lpaeShared
			}
			if !flags.has(Executable) {
				v |= lpaeXN
			}

			return splitWord64(v)
		},
		decodeLeaf: func(words []uint32) (uint32, bool, MemType, PageFlags) {
			v := joinWord64(words)
			if v&lpaeValid == 0 || v&lpaeTableOrPg == 0 {
				return 0, false, 0, 0
			}

			paddr := uint32(v &^ (uint64(PageSize) - 1))

			var memType MemType
			if v&lpaeAttrIdx1 != 0 {
				memType = Device
			} else {
				memType = Normal
			}

			var flags PageFlags
			if v&lpaeXN == 0 {
				flags |= Executable
			}
			if v&lpaeAPReadOnl != 0 {
				flags |= ReadOnly
			}
			if v&lpaeShared != 0 {
				flags |= Shared
			}

			return paddr, true, memType, flags
		},
		encodeTable: func(tableFrame uint32) []uint32 {
			v := uint64(tableFrame&^0xfff) | lpaeValid | lpaeTableOrPg
			return splitWord64(v)
		},
		decodeTable: func(words []uint32) (uint32, bool) {
			v := joinWord64(words)
			if v&lpaeValid == 0 || v&lpaeTableOrPg == 0 {
				return 0, false
			}
			return uint32(v &^ 0xfff), true
		},
	}
}

func splitWord64(v uint64) []uint32 {
	return []uint32{uint32(v), uint32(v >> 32)}
}

func joinWord64(words []uint32) uint64 {
	return uint64(words[0]) | uint64(words[1])<<32
}
