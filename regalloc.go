package titocc

// regalloc is a simple tree-walk register allocator over a free-list
// of R1-R5 (R0 is scratch/zero, R6/R7 are reserved by frame.go as FP
// and SP). It is correctness-only, not performance-tuned, per
// spec.md §4.5: when the free list is exhausted it spills the
// least-recently-used live register to a dedicated scratch slot in
// the current frame and reloads on next use, which is enough to
// evaluate right-leaning expression chains of depth >= 8 without
// corrupting a live value.
type regalloc struct {
	free   []Register // available registers, most-recently-freed last
	lru    []Register // in-use registers ordered oldest-first (LRU at front)
	spills []spillRecord
	frame  *Frame
	cg     *codegen
}

var allocatable = []Register{R1, R2, R3, R4, R5}

func newRegalloc(frame *Frame, cg *codegen) *regalloc {
	ra := &regalloc{frame: frame, cg: cg}
	ra.free = append(ra.free, allocatable...)
	return ra
}

// alloc returns a register for a new live value, spilling the LRU
// in-use register to a scratch frame slot first if none are free.
func (ra *regalloc) alloc(span Span) Register {
	if len(ra.free) == 0 {
		ra.spillOne(span)
	}
	r := ra.free[len(ra.free)-1]
	ra.free = ra.free[:len(ra.free)-1]
	ra.lru = append(ra.lru, r)
	return r
}

// free releases r back to the free list; if r was spilled earlier in
// its lifetime the caller is responsible for having reloaded it
// before relying on its value (touch() does this).
func (ra *regalloc) release(r Register) {
	for i, x := range ra.lru {
		if x == r {
			ra.lru = append(ra.lru[:i], ra.lru[i+1:]...)
			break
		}
	}
	ra.free = append(ra.free, r)
}

// touch marks r as most-recently-used, keeping the LRU order honest
// when a register already held by some live value is read again.
func (ra *regalloc) touch(r Register) {
	for i, x := range ra.lru {
		if x == r {
			ra.lru = append(ra.lru[:i], ra.lru[i+1:]...)
			ra.lru = append(ra.lru, r)
			return
		}
	}
}

// spillOne evicts the least-recently-used in-use register to a
// scratch slot in the current frame, emitting the STORE and recording
// where it went so a later reload can find it. This is a CodegenError
// (an allocator internal inconsistency) if there is nothing to spill,
// since the allocator should never be asked for a register with
// nothing live and nothing free.
func (ra *regalloc) spillOne(span Span) {
	if len(ra.lru) == 0 {
		ra.cg.sink.Report(CodegenError, span, "register allocator exhausted with nothing to spill")
		ra.free = append(ra.free, allocatable[0])
		return
	}
	victim := ra.lru[0]
	ra.lru = ra.lru[1:]
	slot := ra.frame.reserveScratch(ra.spillSlotFor(victim))
	ra.cg.emit(IOp{Op: "STORE", Dest: victim, Src: FPOperand(slot), sl: span})
	ra.spills = append(ra.spills, spillRecord{reg: victim, slot: slot})
	ra.free = append(ra.free, victim)
}

// reload restores a previously spilled register's value in place,
// returning the scratch slot to circulation. spillSlotFor/spills give
// each register a stable scratch slot for the lifetime of one
// function body, which keeps the bookkeeping here to a short linear
// scan rather than a general free-slot allocator.
type spillRecord struct {
	reg  Register
	slot int32
}

func (ra *regalloc) spillSlotFor(r Register) int {
	return int(r) - int(R1)
}

func (ra *regalloc) reload(r Register, span Span) {
	for i, s := range ra.spills {
		if s.reg == r {
			ra.cg.emit(IOp{Op: "LOAD", Dest: r, Src: FPOperand(s.slot), sl: span})
			ra.spills = append(ra.spills[:i], ra.spills[i+1:]...)
			return
		}
	}
}

// saveLiveAcrossCall spills every register currently holding a live
// value to its dedicated scratch slot before a CALL/indirect call: the
// callee starts its own regalloc fresh over R1-R5 (genFunc) and is
// free to clobber all of them, but this allocator only ever spills on
// its own exhaustion, never around a call boundary on its own.
// restoreLiveAfterCall reloads them once the callee returns. Reuses
// the same per-register scratch slot spillOne/reload use, since a
// register is never both exhaustion-spilled and call-live at once.
func (ra *regalloc) saveLiveAcrossCall(span Span) []Register {
	live := append([]Register(nil), ra.lru...)
	for _, r := range live {
		slot := ra.frame.reserveScratch(ra.spillSlotFor(r))
		ra.cg.emit(IOp{Op: "STORE", Dest: r, Src: FPOperand(slot), sl: span})
	}
	return live
}

func (ra *regalloc) restoreLiveAfterCall(live []Register, span Span) {
	for _, r := range live {
		slot := ra.frame.reserveScratch(ra.spillSlotFor(r))
		ra.cg.emit(IOp{Op: "LOAD", Dest: r, Src: FPOperand(slot), sl: span})
	}
}
