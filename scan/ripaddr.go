package scan

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// ResolveRIPRelative decodes the single instruction at the start of
// code (already read from the target at loadAddr) and, if it addresses
// memory relative to RIP (a `lea reg, [rip+disp]` or `mov reg,
// [rip+disp]`, the pattern Mono's mono_get_root_domain trampoline
// opens with), returns the absolute address that RIP-relative operand
// points at.
//
// This decodes exactly one instruction — it is not a disassembler for
// arbitrary control flow, only a way to resolve one static global
// pointer out of a known function prologue.
func ResolveRIPRelative(code []byte, loadAddr uint64) (uint64, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return 0, fmt.Errorf("scan: decode instruction: %w", err)
	}

	for _, arg := range inst.Args {
		mem, ok := arg.(x86asm.Mem)
		if !ok {
			continue
		}
		if mem.Base != x86asm.RIP {
			continue
		}
		nextInsn := loadAddr + uint64(inst.Len)
		return uint64(int64(nextInsn) + mem.Disp), nil
	}
	return 0, fmt.Errorf("scan: instruction %v has no RIP-relative operand", inst)
}
