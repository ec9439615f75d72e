package titocc

// Frame computes the stack-frame layout for one function, per
// spec.md §4.5: a saved-return-address slot, a saved-frame-pointer
// slot, slots for every local (including arrays, sized in words),
// and scratch space the register allocator can spill into. Parameters
// sit at positive FP offsets (pushed by the caller before CALL),
// locals at negative offsets.
type Frame struct {
	// locals maps each local Symbol to the FP-relative word offset of
	// its lowest word (negative).
	locals map[*Symbol]int32

	nextLocalOffset int32 // next negative slot to hand out, in words
	scratchBase     int32 // first scratch slot offset, set once locals are finalized
	scratchInit     bool
	scratchUsed     int32 // highest scratch slot index handed out, plus one
}

func newFrame() *Frame {
	return &Frame{locals: map[*Symbol]int32{}, nextLocalOffset: -1}
}

// assignParams lays out a function's parameters at ascending positive
// FP offsets starting at +2 (slot 0 is the saved return address, slot
// 1 the saved caller FP, both written by the CALL/prologue sequence).
func (f *Frame) assignParams(params []*Symbol) {
	off := int32(2)
	for _, p := range params {
		if p.Name == "" {
			off++
			continue
		}
		p.Loc = SymbolLoc{IsOffset: true, Offset: int(off)}
		off++
	}
}

// allocLocal reserves space for a local object of the given word size
// (>=1) and returns its negative FP-relative offset (the offset of
// its *first* word; multi-word objects occupy consecutive more-
// negative words).
func (f *Frame) allocLocal(words int32) int32 {
	if words < 1 {
		words = 1
	}
	base := f.nextLocalOffset - (words - 1)
	off := f.nextLocalOffset
	f.nextLocalOffset = base - 1
	return off
}

// declareLocal allocates and assigns frame storage to a local Symbol.
func (f *Frame) declareLocal(sym *Symbol) {
	words := int32(sym.Type.Size() / WordSize)
	off := f.allocLocal(words)
	// allocLocal returns the highest (least negative) word of the
	// object; the object's base for indexing purposes is its lowest
	// address, i.e. the one we actually want to expose.
	base := off - (words - 1)
	sym.Loc = SymbolLoc{IsOffset: true, Offset: int(base)}
	f.locals[sym] = base
}

// reserveScratch finalizes the scratch region once every local has
// been declared, returning the word offset of the n-th scratch slot
// (0-based) for the register allocator's spill code.
func (f *Frame) reserveScratch(n int) int32 {
	if !f.scratchInit {
		f.scratchBase = f.nextLocalOffset
		f.scratchInit = true
	}
	if int32(n) >= f.scratchUsed {
		f.scratchUsed = int32(n) + 1
	}
	return f.scratchBase - int32(n)
}

// TotalWords returns the number of words of local+scratch storage the
// prologue must reserve, not counting the two fixed header slots.
// Scratch space is sized to scratchUsed (the highest slot index
// reserveScratch actually handed out), not a fixed slot count,
// since every register R1-R5 can need a slot of its own when a call
// site spills all of them at once (regalloc.go's saveLiveAcrossCall).
func (f *Frame) TotalWords() int32 {
	localWords := -f.nextLocalOffset - 1
	return localWords + f.scratchUsed
}
