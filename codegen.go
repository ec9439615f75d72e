package titocc

import "fmt"

// codegen lowers a TypedUnit into a flat Instruction stream. Control
// flow and calls are emitted against symbolic Label references; no
// address is ever computed or patched here, since program.go writes
// every label as assembly text and leaves address resolution to the
// assembler.
type codegen struct {
	sink *diagnosticSink
	cfg  *Config

	instrs []Instruction // code section, in emission order
	data   []Instruction // data/bss section

	funcLabels   map[*Symbol]*Label
	globalLabels map[*Symbol]*Label
	stringLabels map[string]*Label

	breakTargets    []*Label
	continueTargets []*Label

	// funcEndLabel is where every return in the function currently
	// being generated branches to, so each exit path shares one
	// epilogue instead of duplicating the restore sequence.
	funcEndLabel *Label

	intrinsics map[string]*Symbol

	frame *Frame
	ra    *regalloc
}

func newCodegen(sink *diagnosticSink, cfg *Config) *codegen {
	return &codegen{
		sink:         sink,
		cfg:          cfg,
		funcLabels:   map[*Symbol]*Label{},
		globalLabels: map[*Symbol]*Label{},
		stringLabels: map[string]*Label{},
		intrinsics:   map[string]*Symbol{},
	}
}

func (cg *codegen) emit(i Instruction) { cg.instrs = append(cg.instrs, i) }

func (cg *codegen) emitData(i Instruction) { cg.data = append(cg.data, i) }

// Generate lowers a fully type-checked unit into a Program, emitting
// data/bss storage for every retained global and one code block per
// function body.
func Generate(sink *diagnosticSink, cfg *Config, tu *TypedUnit) *Program {
	cg := newCodegen(sink, cfg)
	registerIntrinsics(cg, tu)

	for _, sym := range tu.Globals {
		if sym.Type.IsFunction() {
			cg.funcLabel(sym)
			continue
		}
		cg.genGlobalStorage(sym)
	}
	for _, fn := range tu.Funcs {
		cg.genFunc(fn)
	}

	if sink.HasErrors() {
		return &Program{}
	}
	return &Program{Code: cg.instrs, Data: cg.data, EntryFunc: "main"}
}

func (cg *codegen) funcLabel(sym *Symbol) *Label {
	if l, ok := cg.funcLabels[sym]; ok {
		return l
	}
	l := &Label{Name: mangleName(sym.Name)}
	cg.funcLabels[sym] = l
	sym.Loc = SymbolLoc{IsLabel: true, Label: l.Name}
	return l
}

func (cg *codegen) globalLabel(sym *Symbol) *Label {
	if l, ok := cg.globalLabels[sym]; ok {
		return l
	}
	name := mangleName(sym.Name)
	if sym.IsStaticLocal {
		name = sym.Loc.Label
	}
	l := &Label{Name: name}
	cg.globalLabels[sym] = l
	sym.Loc = SymbolLoc{IsLabel: true, Label: l.Name}
	return l
}

// mangleName guarantees generated labels never collide with the
// target's reserved register/device names (spec.md §4.2): every user
// identifier gets the `_u_` prefix, which none of those names carries.
func mangleName(name string) string { return "_u_" + name }

// genGlobalStorage emits a file-scope object's data/bss entry: a
// constant-initialized DC for a literal initializer, or DS
// zero-reserved words otherwise (covers tentative definitions and
// zero-initialized statics alike, per spec.md §4.5).
func (cg *codegen) genGlobalStorage(sym *Symbol) {
	label := cg.globalLabel(sym)
	words := sym.Type.Size() / WordSize
	if words < 1 {
		words = 1
	}
	if sym.Init != nil {
		if lit, ok := constantValue(sym.Init); ok {
			cg.emitData(IDataWord{L: label, Value: lit, sl: sym.DeclSpan})
			return
		}
	}
	cg.emitData(IReserve{L: label, Words: words, sl: sym.DeclSpan})
}

// constantValue evaluates a (possibly converted) integer-literal
// initializer expression to its constant value; anything else is not
// a constant expression this simplified front end folds.
func constantValue(e Expr) (int32, bool) {
	switch n := e.(type) {
	case *IntLitExpr:
		return int32(n.Value), true
	case *CharLitExpr:
		return n.Value, true
	case *ConvExpr:
		return constantValue(n.Expr)
	default:
		return 0, false
	}
}

// genFunc lowers one function body: lays out its frame, walks its
// statements, and brackets the whole thing with prologue/epilogue
// pseudo-ops that program.go expands into real save/restore code.
func (cg *codegen) genFunc(tf *TypedFunc) {
	label := cg.funcLabel(tf.Sym)
	cg.emit(ILabelDef{L: label, sl: tf.Body.Span()})

	frame := newFrame()
	frame.assignParams(tf.Params)
	cg.frame = frame
	cg.ra = newRegalloc(frame, cg)

	prologueIdx := len(cg.instrs)
	cg.emit(IFramePrologue{Func: label, sl: tf.Body.Span()})

	endLabel := NewLabel("end_" + label.Name)
	prevEnd := cg.funcEndLabel
	cg.funcEndLabel = endLabel

	for i := range tf.Body.Items {
		item := &tf.Body.Items[i]
		if item.Decl != nil {
			cg.declareLocalsFrame(item.Decl)
			cg.genLocalInit(item.Decl)
			continue
		}
		cg.genStmt(item.Stmt)
	}

	// Every local and every spill slot has been declared by this point
	// (the statement walk above runs the whole body, including any
	// call-site register spills), so the frame's final word count is
	// already settled for both the epilogue below and the prologue
	// patched in afterward.
	frameWords := int(frame.TotalWords())

	cg.emit(ILabelDef{L: endLabel, sl: tf.Body.Span()})
	cg.emit(IFrameEpilogue{FrameWords: frameWords, sl: tf.Body.Span()})
	cg.emit(IReturn{sl: tf.Body.Span()})

	cg.instrs[prologueIdx] = IFramePrologue{Func: label, FrameWords: frameWords, sl: tf.Body.Span()}

	cg.funcEndLabel = prevEnd
}

// declareLocalsFrame assigns frame storage to every declarator in a
// block-scope Declaration (skipping externs/statics, which live in
// the data section instead of the frame).
func (cg *codegen) declareLocalsFrame(d *Declaration) {
	for _, item := range d.Items {
		sym := declSymbols[item]
		if sym == nil || sym.Type.IsFunction() {
			continue
		}
		if d.Storage == SCStatic || d.Storage == SCExtern {
			if d.Storage == SCStatic {
				cg.genGlobalStorage(sym)
			}
			continue
		}
		cg.frame.declareLocal(sym)
	}
}

// declSymbols is a side table from InitDeclarator to the Symbol sema
// created for it, populated by sema.declareAtBlockScope. Kept here (rather
// than in sema.go) since only codegen needs to walk it, and ast.go's
// InitDeclarator stays free of semantic-analysis state.
var declSymbols = map[*InitDeclarator]*Symbol{}

func (cg *codegen) genLocalInit(d *Declaration) {
	for _, item := range d.Items {
		sym := declSymbols[item]
		if sym == nil || item.Init == nil || d.Storage == SCStatic || d.Storage == SCExtern {
			continue
		}
		r := cg.genValue(sym.Init)
		cg.storeToSymbol(sym, r, item.Span)
		cg.ra.release(r)
	}
}

func (cg *codegen) storeToSymbol(sym *Symbol, r Register, span Span) {
	if sym.Loc.IsOffset {
		cg.emit(IOp{Op: "STORE", Dest: r, Src: FPOperand(int32(sym.Loc.Offset)), sl: span})
		return
	}
	cg.emit(IOp{Op: "STORE", Dest: r, Src: MemOperand(&Label{Name: sym.Loc.Label}, 0), sl: span})
}

// ---- statements ----

func (cg *codegen) genStmt(s Stmt) {
	switch n := s.(type) {
	case *BlockStmt:
		for i := range n.Items {
			item := &n.Items[i]
			if item.Decl != nil {
				cg.declareLocalsFrame(item.Decl)
				cg.genLocalInit(item.Decl)
				continue
			}
			cg.genStmt(item.Stmt)
		}
	case *ExprStmt:
		if n.Expr != nil {
			r := cg.genValue(n.Expr)
			cg.ra.release(r)
		}
	case *IfStmt:
		elseLabel := NewLabel("else")
		doneLabel := NewLabel("endif")
		cg.genBranchIfFalse(n.Cond, elseLabel)
		cg.genStmt(n.Then)
		if n.Else != nil {
			cg.emit(IJump{Target: doneLabel, sl: n.Span()})
		}
		cg.emit(ILabelDef{L: elseLabel, sl: n.Span()})
		if n.Else != nil {
			cg.genStmt(n.Else)
			cg.emit(ILabelDef{L: doneLabel, sl: n.Span()})
		}
	case *WhileStmt:
		top := NewLabel("while")
		done := NewLabel("endwhile")
		cg.pushLoop(done, top)
		cg.emit(ILabelDef{L: top, sl: n.Span()})
		cg.genBranchIfFalse(n.Cond, done)
		cg.genStmt(n.Body)
		cg.emit(IJump{Target: top, sl: n.Span()})
		cg.emit(ILabelDef{L: done, sl: n.Span()})
		cg.popLoop()
	case *DoWhileStmt:
		top := NewLabel("do")
		contLabel := NewLabel("docont")
		done := NewLabel("enddo")
		cg.pushLoop(done, contLabel)
		cg.emit(ILabelDef{L: top, sl: n.Span()})
		cg.genStmt(n.Body)
		cg.emit(ILabelDef{L: contLabel, sl: n.Span()})
		cg.genBranchIfTrue(n.Cond, top)
		cg.emit(ILabelDef{L: done, sl: n.Span()})
		cg.popLoop()
	case *ForStmt:
		top := NewLabel("for")
		contLabel := NewLabel("forcont")
		done := NewLabel("endfor")
		if n.Decl != nil {
			cg.declareLocalsFrame(n.Decl)
			cg.genLocalInit(n.Decl)
		} else if n.Init != nil {
			cg.genStmt(n.Init)
		}
		cg.pushLoop(done, contLabel)
		cg.emit(ILabelDef{L: top, sl: n.Span()})
		if n.Cond != nil {
			cg.genBranchIfFalse(n.Cond, done)
		}
		cg.genStmt(n.Body)
		cg.emit(ILabelDef{L: contLabel, sl: n.Span()})
		if n.Post != nil {
			r := cg.genValue(n.Post)
			cg.ra.release(r)
		}
		cg.emit(IJump{Target: top, sl: n.Span()})
		cg.emit(ILabelDef{L: done, sl: n.Span()})
		cg.popLoop()
	case *BreakStmt:
		if len(cg.breakTargets) == 0 {
			cg.sink.Report(CodegenError, n.Span(), "break outside of a loop")
			return
		}
		cg.emit(IJump{Target: cg.breakTargets[len(cg.breakTargets)-1], sl: n.Span()})
	case *ContinueStmt:
		if len(cg.continueTargets) == 0 {
			cg.sink.Report(CodegenError, n.Span(), "continue outside of a loop")
			return
		}
		cg.emit(IJump{Target: cg.continueTargets[len(cg.continueTargets)-1], sl: n.Span()})
	case *ReturnStmt:
		if n.Value != nil {
			r := cg.genValue(n.Value)
			if r != R1 {
				cg.emit(IOp{Op: "LOAD", Dest: R1, Src: RegOperand(r), sl: n.Span()})
				cg.ra.release(r)
			}
		}
		cg.emit(IJump{Target: cg.funcEndLabel, sl: n.Span()})
	}
}

func (cg *codegen) pushLoop(breakL, contL *Label) {
	cg.breakTargets = append(cg.breakTargets, breakL)
	cg.continueTargets = append(cg.continueTargets, contL)
}

func (cg *codegen) popLoop() {
	cg.breakTargets = cg.breakTargets[:len(cg.breakTargets)-1]
	cg.continueTargets = cg.continueTargets[:len(cg.continueTargets)-1]
}

// ---- condition branches ----

var condJump = map[string]string{
	"==": "EQU", "!=": "NEQU", "<": "LES", "<=": "LEQ", ">": "GRE", ">=": "GEQ",
}
var invertedCondJump = map[string]string{
	"==": "NEQU", "!=": "EQU", "<": "GEQ", "<=": "GRE", ">": "LEQ", ">=": "LES",
}

// genBranchIfFalse evaluates cond and branches to target if it is
// zero, short-circuiting && and || without materializing an
// intermediate 0/1 value when the condition is a direct comparison or
// logical combination (spec.md §4.5's "&&, ||: branch-based lowering").
func (cg *codegen) genBranchIfFalse(cond Expr, target *Label) {
	if bin, ok := unwrapConv(cond).(*BinaryExpr); ok {
		switch bin.Op {
		case "&&":
			cg.genBranchIfFalse(bin.Lhs, target)
			cg.genBranchIfFalse(bin.Rhs, target)
			return
		case "||":
			next := NewLabel("or_rhs")
			cg.genBranchIfTrue(bin.Lhs, skipTarget(next))
			cg.emit(ILabelDef{L: next, sl: cond.Span()})
			cg.genBranchIfFalse(bin.Rhs, target)
			return
		}
		if j, ok := condJump[bin.Op]; ok && isUnsignedCompare(bin) {
			cg.genUnsignedCompareBranch(bin, invertJump(j), target)
			return
		}
		if j, ok := condJump[bin.Op]; ok {
			lr, rr := cg.genBinaryOperands(bin)
			cg.emit(IOp{Op: "COMP", Dest: lr, Src: RegOperand(rr), sl: cond.Span()})
			cg.ra.release(rr)
			cg.ra.release(lr)
			cg.emit(IJump{Cond: invertJump(j), Target: target, sl: cond.Span()})
			return
		}
	}
	r := cg.genValue(cond)
	cg.emit(IOp{Op: "COMP", Dest: r, Src: ImmOperand(0), sl: cond.Span()})
	cg.ra.release(r)
	cg.emit(IJump{Cond: "EQU", Target: target, sl: cond.Span()})
}

func (cg *codegen) genBranchIfTrue(cond Expr, target *Label) {
	if bin, ok := unwrapConv(cond).(*BinaryExpr); ok {
		switch bin.Op {
		case "||":
			cg.genBranchIfTrue(bin.Lhs, target)
			cg.genBranchIfTrue(bin.Rhs, target)
			return
		case "&&":
			next := NewLabel("and_rhs")
			cg.genBranchIfFalse(bin.Lhs, skipTarget(next))
			cg.emit(ILabelDef{L: next, sl: cond.Span()})
			cg.genBranchIfTrue(bin.Rhs, target)
			return
		}
		if j, ok := condJump[bin.Op]; ok && isUnsignedCompare(bin) {
			cg.genUnsignedCompareBranch(bin, j, target)
			return
		}
		if j, ok := condJump[bin.Op]; ok {
			lr, rr := cg.genBinaryOperands(bin)
			cg.emit(IOp{Op: "COMP", Dest: lr, Src: RegOperand(rr), sl: cond.Span()})
			cg.ra.release(rr)
			cg.ra.release(lr)
			cg.emit(IJump{Cond: j, Target: target, sl: cond.Span()})
			return
		}
	}
	r := cg.genValue(cond)
	cg.emit(IOp{Op: "COMP", Dest: r, Src: ImmOperand(0), sl: cond.Span()})
	cg.ra.release(r)
	cg.emit(IJump{Cond: "NEQU", Target: target, sl: cond.Span()})
}

// skipTarget returns a label usable as a "fall through to here"
// marker for the nested branch helpers above; they always define it
// immediately afterward.
func skipTarget(l *Label) *Label { return l }

func invertJump(j string) string {
	switch j {
	case "EQU":
		return "NEQU"
	case "NEQU":
		return "EQU"
	case "LES":
		return "GEQ"
	case "LEQ":
		return "GRE"
	case "GRE":
		return "LEQ"
	case "GEQ":
		return "LES"
	}
	return j
}

func unwrapConv(e Expr) Expr {
	for {
		c, ok := e.(*ConvExpr)
		if !ok {
			return e
		}
		e = c.Expr
	}
}

func isUnsignedCompare(bin *BinaryExpr) bool {
	lt, rt := ExprType(bin.Lhs), ExprType(bin.Rhs)
	return (lt != nil && lt.IsUnsigned()) || (rt != nil && rt.IsUnsigned())
}

// genUnsignedCompareBranch lowers an unsigned relational comparison
// by flipping the sign bit of both operands (xor 0x80000000) before a
// signed COMP, per spec.md §4.5: this maps the unsigned ordering onto
// the signed one without a native unsigned-compare instruction.
func (cg *codegen) genUnsignedCompareBranch(bin *BinaryExpr, jump string, target *Label) {
	lr, rr := cg.genBinaryOperands(bin)
	cg.emit(IOp{Op: "XOR", Dest: lr, Src: ImmOperand(int32(-2147483648)), sl: bin.Span()})
	cg.emit(IOp{Op: "XOR", Dest: rr, Src: ImmOperand(int32(-2147483648)), sl: bin.Span()})
	cg.emit(IOp{Op: "COMP", Dest: lr, Src: RegOperand(rr), sl: bin.Span()})
	cg.ra.release(rr)
	cg.ra.release(lr)
	cg.emit(IJump{Cond: jump, Target: target, sl: bin.Span()})
}

func (cg *codegen) genBinaryOperands(bin *BinaryExpr) (Register, Register) {
	lr := cg.genValue(bin.Lhs)
	rr := cg.genValue(bin.Rhs)
	return lr, rr
}

// ---- expressions ----

// genValue evaluates e into a freshly allocated register holding its
// r-value. Callers are responsible for releasing the returned
// register once done with it.
func (cg *codegen) genValue(e Expr) Register {
	switch n := e.(type) {
	case *IdentExpr:
		sym := SymbolOf(n)
		r := cg.ra.alloc(n.Span())
		if sym.Loc.IsOffset {
			cg.emit(IOp{Op: "LOAD", Dest: r, Src: FPOperand(int32(sym.Loc.Offset)), sl: n.Span()})
		} else {
			cg.emit(IOp{Op: "LOAD", Dest: r, Src: MemOperand(&Label{Name: sym.Loc.Label}, 0), sl: n.Span()})
		}
		return r

	case *IntLitExpr:
		r := cg.ra.alloc(n.Span())
		cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(int32(n.Value)), sl: n.Span()})
		return r

	case *CharLitExpr:
		r := cg.ra.alloc(n.Span())
		cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(n.Value), sl: n.Span()})
		return r

	case *StringLitExpr:
		l := cg.stringLabel(n.Value)
		r := cg.ra.alloc(n.Span())
		cg.emit(IOp{Op: "LEA", Dest: r, Src: LabelOperand(l), sl: n.Span()})
		return r

	case *ConvExpr:
		return cg.genConv(n)

	case *BinaryExpr:
		return cg.genBinary(n)

	case *UnaryExpr:
		return cg.genUnary(n)

	case *IncDecExpr:
		return cg.genIncDec(n)

	case *AssignExpr:
		return cg.genAssign(n)

	case *CondExpr:
		return cg.genCond(n)

	case *CommaExpr:
		r := cg.genValue(n.Lhs)
		cg.ra.release(r)
		return cg.genValue(n.Rhs)

	case *IndexExpr:
		addr := cg.genAddr(n)
		cg.emit(IOp{Op: "LOAD", Dest: addr, Src: memAt(addr), sl: n.Span()})
		return addr

	case *CallExpr:
		return cg.genCall(n)

	case *SizeofTypeExpr:
		r := cg.ra.alloc(n.Span())
		cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(int32(n.Type.Size())), sl: n.Span()})
		return r
	}
	cg.sink.Report(CodegenError, e.Span(), "internal error: unhandled expression kind")
	return cg.ra.alloc(e.Span())
}

// memAt builds an operand meaning "the word addressed by the value
// already sitting in r" - used for the load half of every pointer
// dereference and array-index access, where the address has already
// been computed into a register by genAddr.
func memAt(r Register) Operand { return Operand{Kind: OpReg, Reg: r} }

func (cg *codegen) genConv(n *ConvExpr) Register {
	switch n.Kind {
	case ConvIntToUint, ConvUintToInt:
		// Two's-complement bit pattern is identical; nothing to emit.
		return cg.genValue(n.Expr)
	case ConvArrayDecay, ConvFuncDecay:
		return cg.genAddr(n.Expr)
	}
	return cg.genValue(n.Expr)
}

func (cg *codegen) genUnary(n *UnaryExpr) Register {
	switch n.Op {
	case "&":
		return cg.genAddr(n.Operand)
	case "*":
		addr := cg.genValue(n.Operand)
		cg.emit(IOp{Op: "LOAD", Dest: addr, Src: memAt(addr), sl: n.Span()})
		return addr
	case "sizeof":
		t := ExprType(n.Operand)
		r := cg.ra.alloc(n.Span())
		cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(int32(t.Size())), sl: n.Span()})
		return r
	case "!":
		r := cg.genValue(n.Operand)
		cg.emit(IOp{Op: "COMP", Dest: r, Src: ImmOperand(0), sl: n.Span()})
		cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(0), sl: n.Span()})
		trueLbl := NewLabel("not_true")
		doneLbl := NewLabel("not_done")
		cg.emit(IJump{Cond: "EQU", Target: trueLbl, sl: n.Span()})
		cg.emit(IJump{Target: doneLbl, sl: n.Span()})
		cg.emit(ILabelDef{L: trueLbl, sl: n.Span()})
		cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(1), sl: n.Span()})
		cg.emit(ILabelDef{L: doneLbl, sl: n.Span()})
		return r
	case "-":
		r := cg.genValue(n.Operand)
		neg := cg.ra.alloc(n.Span())
		cg.emit(IOp{Op: "LOAD", Dest: neg, Src: ImmOperand(0), sl: n.Span()})
		cg.emit(IOp{Op: "SUB", Dest: neg, Src: RegOperand(r), sl: n.Span()})
		cg.ra.release(r)
		return neg
	case "~":
		r := cg.genValue(n.Operand)
		cg.emit(IOp{Op: "XOR", Dest: r, Src: ImmOperand(-1), sl: n.Span()})
		return r
	default: // unary +
		return cg.genValue(n.Operand)
	}
}

func (cg *codegen) genBinary(n *BinaryExpr) Register {
	switch n.Op {
	case "&&":
		return cg.genLogical(n, true)
	case "||":
		return cg.genLogical(n, false)
	}

	if j, ok := condJump[n.Op]; ok {
		r := cg.ra.alloc(n.Span())
		trueLbl := NewLabel("cmp_true")
		doneLbl := NewLabel("cmp_done")
		if isUnsignedCompare(n) {
			cg.genUnsignedCompareBranch(n, j, trueLbl)
		} else {
			lr, rr := cg.genBinaryOperands(n)
			cg.emit(IOp{Op: "COMP", Dest: lr, Src: RegOperand(rr), sl: n.Span()})
			cg.ra.release(rr)
			cg.ra.release(lr)
			cg.emit(IJump{Cond: j, Target: trueLbl, sl: n.Span()})
		}
		cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(0), sl: n.Span()})
		cg.emit(IJump{Target: doneLbl, sl: n.Span()})
		cg.emit(ILabelDef{L: trueLbl, sl: n.Span()})
		cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(1), sl: n.Span()})
		cg.emit(ILabelDef{L: doneLbl, sl: n.Span()})
		return r
	}

	ty := ExprType(n)
	lty, rty := ExprType(n.Lhs), ExprType(n.Rhs)
	ptrArith := (lty != nil && lty.IsPointer()) || (rty != nil && rty.IsPointer())
	if ptrArith {
		return cg.genPointerArith(n)
	}

	unsigned := ty != nil && ty.IsUnsigned()
	if unsigned && (n.Op == "/" || n.Op == "%") {
		return cg.genUnsignedDivMod(n)
	}

	lr, rr := cg.genBinaryOperands(n)
	op := map[string]string{
		"+": "ADD", "-": "SUB", "*": "MUL", "/": "DIV", "%": "MOD",
		"&": "AND", "|": "OR", "^": "XOR",
	}[n.Op]
	if n.Op == "<<" {
		op = "SHL"
	} else if n.Op == ">>" {
		if unsigned {
			op = "SHR" // logical shift, per spec.md §4.5
		} else {
			op = "SHRA" // arithmetic shift
		}
	}
	cg.emit(IOp{Op: op, Dest: lr, Src: RegOperand(rr), sl: n.Span()})
	cg.ra.release(rr)
	return lr
}

// genUnsignedDivMod lowers unsigned / and % to calls to the __udiv /
// __umod runtime intrinsics (intrinsics.go), since the hardware
// divide instruction is signed (spec.md §4.5).
func (cg *codegen) genUnsignedDivMod(n *BinaryExpr) Register {
	name := "__udiv"
	if n.Op == "%" {
		name = "__umod"
	}
	return cg.genIntrinsicCall(name, []Expr{n.Lhs, n.Rhs}, n.Span())
}

func (cg *codegen) genIntrinsicCall(name string, args []Expr, span Span) Register {
	sym := cg.intrinsics[name]
	call := &CallExpr{exprBase{span}, nil, args}
	return cg.genCallTo(sym, call)
}

// genPointerArith lowers `p + n`, `p - n`, and `p - q` by scaling the
// integer operand by the pointee's element size (spec.md §4.4).
func (cg *codegen) genPointerArith(n *BinaryExpr) Register {
	lty, rty := ExprType(n.Lhs), ExprType(n.Rhs)
	if n.Op == "-" && lty.IsPointer() && rty.IsPointer() {
		lr, rr := cg.genBinaryOperands(n)
		cg.emit(IOp{Op: "SUB", Dest: lr, Src: RegOperand(rr), sl: n.Span()})
		cg.ra.release(rr)
		elemSize := lty.Elem.Size()
		if elemSize > 1 {
			cg.emit(IOp{Op: "DIV", Dest: lr, Src: ImmOperand(int32(elemSize)), sl: n.Span()})
		}
		return lr
	}

	ptrExpr, intExpr, ptrTy := n.Lhs, n.Rhs, lty
	if !lty.IsPointer() {
		ptrExpr, intExpr, ptrTy = n.Rhs, n.Lhs, rty
	}
	pr := cg.genValue(ptrExpr)
	ir := cg.genValue(intExpr)
	elemSize := ptrTy.Elem.Size()
	if elemSize > 1 {
		cg.emit(IOp{Op: "MUL", Dest: ir, Src: ImmOperand(int32(elemSize)), sl: n.Span()})
	}
	if n.Op == "-" {
		cg.emit(IOp{Op: "SUB", Dest: pr, Src: RegOperand(ir), sl: n.Span()})
	} else {
		cg.emit(IOp{Op: "ADD", Dest: pr, Src: RegOperand(ir), sl: n.Span()})
	}
	cg.ra.release(ir)
	return pr
}

// genLogical lowers && / || outside of a condition context (e.g.
// `x = a && b;`), materializing the 0/1 result via the same
// branch-based short-circuit as genBranchIf{True,False}.
func (cg *codegen) genLogical(n *BinaryExpr, isAnd bool) Register {
	r := cg.ra.alloc(n.Span())
	falseLbl := NewLabel("logic_false")
	doneLbl := NewLabel("logic_done")
	if isAnd {
		cg.genBranchIfFalse(n.Lhs, falseLbl)
		cg.genBranchIfFalse(n.Rhs, falseLbl)
	} else {
		trueLbl := NewLabel("logic_true")
		cg.genBranchIfTrue(n.Lhs, trueLbl)
		cg.genBranchIfTrue(n.Rhs, trueLbl)
		cg.emit(IJump{Target: falseLbl, sl: n.Span()})
		cg.emit(ILabelDef{L: trueLbl, sl: n.Span()})
	}
	cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(1), sl: n.Span()})
	cg.emit(IJump{Target: doneLbl, sl: n.Span()})
	cg.emit(ILabelDef{L: falseLbl, sl: n.Span()})
	cg.emit(IOp{Op: "LOAD", Dest: r, Src: ImmOperand(0), sl: n.Span()})
	cg.emit(ILabelDef{L: doneLbl, sl: n.Span()})
	return r
}

// genAddr evaluates e's address into a freshly allocated register.
func (cg *codegen) genAddr(e Expr) Register {
	switch n := e.(type) {
	case *IdentExpr:
		sym := SymbolOf(n)
		r := cg.ra.alloc(n.Span())
		if sym.Loc.IsOffset {
			cg.emit(IOp{Op: "LEA", Dest: r, Src: FPOperand(int32(sym.Loc.Offset)), sl: n.Span()})
		} else {
			cg.emit(IOp{Op: "LEA", Dest: r, Src: LabelOperand(&Label{Name: sym.Loc.Label}), sl: n.Span()})
		}
		return r
	case *IndexExpr:
		base := cg.genValue(n.Base) // already decayed to pointer by typecheck
		idx := cg.genValue(n.Index)
		elemSize := ExprType(n).Size()
		if elemSize > 1 {
			cg.emit(IOp{Op: "MUL", Dest: idx, Src: ImmOperand(int32(elemSize)), sl: n.Span()})
		}
		cg.emit(IOp{Op: "ADD", Dest: base, Src: RegOperand(idx), sl: n.Span()})
		cg.ra.release(idx)
		return base
	case *UnaryExpr:
		if n.Op == "*" {
			return cg.genValue(n.Operand)
		}
	case *ConvExpr:
		return cg.genAddr(n.Expr)
	}
	cg.sink.Report(CodegenError, e.Span(), "internal error: address requested of a non-lvalue")
	return cg.ra.alloc(e.Span())
}

func (cg *codegen) genIncDec(n *IncDecExpr) Register {
	addr := cg.genAddr(n.Operand)
	ty := ExprType(n.Operand)
	step := int32(1)
	if ty.IsPointer() {
		step = int32(ty.Elem.Size())
	}
	old := cg.ra.alloc(n.Span())
	cg.emit(IOp{Op: "LOAD", Dest: old, Src: memAt(addr), sl: n.Span()})
	updated := cg.ra.alloc(n.Span())
	cg.emit(IOp{Op: "LOAD", Dest: updated, Src: RegOperand(old), sl: n.Span()})
	if n.Op == "++" {
		cg.emit(IOp{Op: "ADD", Dest: updated, Src: ImmOperand(step), sl: n.Span()})
	} else {
		cg.emit(IOp{Op: "SUB", Dest: updated, Src: ImmOperand(step), sl: n.Span()})
	}
	cg.emit(IOp{Op: "STORE", Dest: updated, Src: memAt(addr), sl: n.Span()})
	cg.ra.release(addr)
	if n.Postfix {
		cg.ra.release(updated)
		return old
	}
	cg.ra.release(old)
	return updated
}

func (cg *codegen) genAssign(n *AssignExpr) Register {
	addr := cg.genAddr(n.Lhs)
	if n.Op == "=" {
		val := cg.genValue(n.Rhs)
		cg.emit(IOp{Op: "STORE", Dest: val, Src: memAt(addr), sl: n.Span()})
		cg.ra.release(addr)
		return val
	}

	// Compound assignment (`a op= b`): load the current value, re-derive
	// the base operator from n.Op and apply it, then store back through
	// the same address - a single evaluation of the lvalue, as
	// typecheck.go's checkAssign comment requires. n.Rhs is already the
	// converted right operand typecheck left in place for this.
	lty := ExprType(n.Lhs)
	old := cg.ra.alloc(n.Span())
	cg.emit(IOp{Op: "LOAD", Dest: old, Src: memAt(addr), sl: n.Span()})
	result := cg.genCompoundOp(n.Op[:len(n.Op)-1], old, lty, n.Rhs, n.Span())
	cg.emit(IOp{Op: "STORE", Dest: result, Src: memAt(addr), sl: n.Span()})
	cg.ra.release(addr)
	return result
}

// genCompoundOp computes `lhsVal op rhs`, mirroring genBinary's
// pointer-arithmetic and unsigned div/mod lowering but starting from
// an already-loaded lhs register instead of re-evaluating n.Lhs.
func (cg *codegen) genCompoundOp(op string, lhsVal Register, lty *Type, rhs Expr, span Span) Register {
	if lty.IsPointer() {
		rr := cg.genValue(rhs)
		elemSize := lty.Elem.Size()
		if elemSize > 1 {
			cg.emit(IOp{Op: "MUL", Dest: rr, Src: ImmOperand(int32(elemSize)), sl: span})
		}
		if op == "-" {
			cg.emit(IOp{Op: "SUB", Dest: lhsVal, Src: RegOperand(rr), sl: span})
		} else {
			cg.emit(IOp{Op: "ADD", Dest: lhsVal, Src: RegOperand(rr), sl: span})
		}
		cg.ra.release(rr)
		return lhsVal
	}

	unsigned := lty.IsUnsigned()
	if unsigned && (op == "/" || op == "%") {
		rr := cg.genValue(rhs)
		name := "__udiv"
		if op == "%" {
			name = "__umod"
		}
		return cg.genIntrinsicCallRegs(name, []Register{lhsVal, rr}, span)
	}

	rr := cg.genValue(rhs)
	opName := map[string]string{
		"+": "ADD", "-": "SUB", "*": "MUL", "/": "DIV", "%": "MOD",
		"&": "AND", "|": "OR", "^": "XOR",
	}[op]
	if op == "<<" {
		opName = "SHL"
	} else if op == ">>" {
		if unsigned {
			opName = "SHR"
		} else {
			opName = "SHRA"
		}
	}
	cg.emit(IOp{Op: opName, Dest: lhsVal, Src: RegOperand(rr), sl: span})
	cg.ra.release(rr)
	return lhsVal
}

func (cg *codegen) genCond(n *CondExpr) Register {
	elseLbl := NewLabel("cond_else")
	doneLbl := NewLabel("cond_done")
	cg.genBranchIfFalse(n.Cond, elseLbl)
	r := cg.ra.alloc(n.Span())
	thenVal := cg.genValue(n.Then)
	cg.emit(IOp{Op: "LOAD", Dest: r, Src: RegOperand(thenVal), sl: n.Span()})
	cg.ra.release(thenVal)
	cg.emit(IJump{Target: doneLbl, sl: n.Span()})
	cg.emit(ILabelDef{L: elseLbl, sl: n.Span()})
	elseVal := cg.genValue(n.Else)
	cg.emit(IOp{Op: "LOAD", Dest: r, Src: RegOperand(elseVal), sl: n.Span()})
	cg.ra.release(elseVal)
	cg.emit(ILabelDef{L: doneLbl, sl: n.Span()})
	return r
}

func (cg *codegen) genCall(n *CallExpr) Register {
	switch callee := unwrapConv(n.Callee).(type) {
	case *IdentExpr:
		sym := SymbolOf(callee)
		if sym != nil && sym.Type.IsFunction() {
			return cg.genDirectCall(sym, n)
		}
	}
	return cg.genIndirectCall(n)
}

func (cg *codegen) genDirectCall(sym *Symbol, n *CallExpr) Register {
	return cg.genCallTo(sym, n)
}

// genCallTo pushes every argument left to right (spec.md §4.5), spills
// every register still holding a live caller value to its dedicated
// scratch slot (genFunc starts the callee's own regalloc fresh over
// R1-R5, so nothing survives a CALL on its own), emits a direct CALL
// to sym's function label, tears down the argument space, and returns
// a register holding the value CALL leaves in R1 - captured before the
// saved registers are reloaded, since R1 itself may be one of them.
func (cg *codegen) genCallTo(sym *Symbol, n *CallExpr) Register {
	for _, arg := range n.Args {
		ar := cg.genValue(arg)
		cg.emit(IOp{Op: "PUSH", Dest: R7, Src: RegOperand(ar), sl: n.Span()})
		cg.ra.release(ar)
	}
	live := cg.ra.saveLiveAcrossCall(n.Span())
	cg.emit(ICall{Target: cg.funcLabel(sym), sl: n.Span()})
	if len(n.Args) > 0 {
		cg.emit(IOp{Op: "POP", Dest: R7, Src: ImmOperand(int32(len(n.Args))), sl: n.Span()})
	}
	r := cg.ra.alloc(n.Span())
	cg.emit(IOp{Op: "LOAD", Dest: r, Src: RegOperand(R1), sl: n.Span()})
	cg.ra.restoreLiveAfterCall(live, n.Span())
	return r
}

// genIntrinsicCallRegs is genCallTo's register-valued counterpart,
// used by compound-assignment lowering (genCompoundOp) where the
// operands are already sitting in registers rather than expressions to
// re-evaluate.
func (cg *codegen) genIntrinsicCallRegs(name string, args []Register, span Span) Register {
	sym := cg.intrinsics[name]
	for _, ar := range args {
		cg.emit(IOp{Op: "PUSH", Dest: R7, Src: RegOperand(ar), sl: span})
		cg.ra.release(ar)
	}
	live := cg.ra.saveLiveAcrossCall(span)
	cg.emit(ICall{Target: cg.funcLabel(sym), sl: span})
	if len(args) > 0 {
		cg.emit(IOp{Op: "POP", Dest: R7, Src: ImmOperand(int32(len(args))), sl: span})
	}
	r := cg.ra.alloc(span)
	cg.emit(IOp{Op: "LOAD", Dest: r, Src: RegOperand(R1), sl: span})
	cg.ra.restoreLiveAfterCall(live, span)
	return r
}

// genIndirectCall computes the callee's address into a register and
// calls through it, for a call via a function pointer expression. The
// target register is released before the caller-save pass below so it
// isn't needlessly spilled and reloaded - its value only needs to
// survive up to the IIndirectCall instruction itself, not past it.
func (cg *codegen) genIndirectCall(n *CallExpr) Register {
	target := cg.genValue(n.Callee)
	for _, arg := range n.Args {
		ar := cg.genValue(arg)
		cg.emit(IOp{Op: "PUSH", Dest: R7, Src: RegOperand(ar), sl: n.Span()})
		cg.ra.release(ar)
	}
	cg.ra.release(target)
	live := cg.ra.saveLiveAcrossCall(n.Span())
	cg.emit(IIndirectCall{Target: target, sl: n.Span()})
	if len(n.Args) > 0 {
		cg.emit(IOp{Op: "POP", Dest: R7, Src: ImmOperand(int32(len(n.Args))), sl: n.Span()})
	}
	r := cg.ra.alloc(n.Span())
	cg.emit(IOp{Op: "LOAD", Dest: r, Src: RegOperand(R1), sl: n.Span()})
	cg.ra.restoreLiveAfterCall(live, n.Span())
	return r
}

// stringLabel returns the (deduplicated) data-section label for a
// string literal's bytes, emitting its IBytes entry the first time a
// given byte sequence is seen (spec.md §4.5: "String literal: emit
// once in a read-only data section").
func (cg *codegen) stringLabel(bytes []byte) *Label {
	key := string(bytes)
	if l, ok := cg.stringLabels[key]; ok {
		return l
	}
	l := NewLabel(fmt.Sprintf("str%d", len(cg.stringLabels)))
	cg.stringLabels[key] = l
	cg.emitData(IBytes{L: l, Values: bytes})
	return l
}
