package vmm

// Mode identifies the ARM MMU descriptor format the page-table engine was
// probed into. Modeled as a tagged variant, per the design note on
// polymorphism over MMU mode; New turns it once into a format (the
// encode/decode closures in format.go) rather than re-dispatching on Mode
// on every call.
type Mode int

const (
	// ModeV6Short is the ARMv6 short-descriptor format: no access-flag
	// or PXN bit support.
	ModeV6Short Mode = iota
	// ModeV7Short is ARMv7 short-descriptor with the remap/access-flag
	// extension.
	ModeV7Short
	// ModeV7ShortPXN is ARMv7 short-descriptor with the
	// privileged-execute-never extension.
	ModeV7ShortPXN
	// ModeV7LPAE is ARMv7 long-descriptor (Large Physical Address
	// Extension): 64-bit entries, three levels, ttbr0_size = ttbr1_size
	// = 1.
	ModeV7LPAE
)

func (m Mode) String() string {
	switch m {
	case ModeV6Short:
		return "v6-short"
	case ModeV7Short:
		return "v7-short"
	case ModeV7ShortPXN:
		return "v7-short-pxn"
	case ModeV7LPAE:
		return "v7-lpae"
	default:
		return "unknown"
	}
}

// ID_MMFR0 VMSA support field values (ARM Architecture Reference Manual,
// table B4-13), used by ProbeMode to recognize the supported format.
const (
	mmfr0VMSAMask          = 0xf
	mmfr0VMSAv6            = 0x2
	mmfr0VMSAv7            = 0x3
	mmfr0VMSAv7PXN         = 0x4
	mmfr0VMSAv7LPAEOrLater = 0x5
)

// ProbeMode maps a raw ID_MMFR0 value to a recognised Mode. ok is false if
// the field names a VMSA variant this engine does not implement, which the
// caller must treat as fatal (UnsupportedMode).
func ProbeMode(mmfr0 uint32) (mode Mode, ok bool) {
	switch mmfr0 & mmfr0VMSAMask {
	case mmfr0VMSAv6:
		return ModeV6Short, true
	case mmfr0VMSAv7:
		return ModeV7Short, true
	case mmfr0VMSAv7PXN:
		return ModeV7ShortPXN, true
	case mmfr0VMSAv7LPAEOrLater:
		return ModeV7LPAE, true
	default:
		return 0, false
	}
}

// usesLongDescriptor reports whether mode uses the 64-bit LPAE entry
// format (three levels) as opposed to the 32-bit short-descriptor format
// (two levels).
func (m Mode) usesLongDescriptor() bool {
	return m == ModeV7LPAE
}
