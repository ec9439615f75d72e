package titocc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Program is the finished output of the compiler: a code section and
// a data section of Instructions, ready to be rendered as assembly
// text or (for test tooling and the optional `--emit-binary` driver
// flag) encoded into a compact binary form.
type Program struct {
	Code      []Instruction
	Data      []Instruction
	EntryFunc string
}

// WriteAssembly renders the program as TTK-91-style assembly text:
// one line per instruction, labels as bare symbolic names (address
// resolution and any real linking is the downstream assembler's job,
// per spec.md's non-goals - this text only has to be *semantically*
// a TTK-91 program, not byte-for-byte what a reference assembler
// would produce). Styled after the teacher's string-builder emission
// in its Go backend generator: a bytes.Buffer fed line by line.
func (p *Program) WriteAssembly() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "; generated assembly\n")
	fmt.Fprintf(&buf, "\tJUMP\tMAIN\n")
	for _, ins := range p.Code {
		writeInstrLine(&buf, ins)
	}
	fmt.Fprintf(&buf, "\nDATA\n")
	for _, ins := range p.Data {
		writeInstrLine(&buf, ins)
	}
	fmt.Fprintf(&buf, "\nSVC\tSP, HALT\n")
	return buf.String()
}

func writeInstrLine(buf *bytes.Buffer, ins Instruction) {
	switch n := ins.(type) {
	case ILabelDef:
		fmt.Fprintf(buf, "%s\tNOP\n", n.L.Text())
	case IComment:
		fmt.Fprintf(buf, "; %s\n", n.Text)
	case IFramePrologue:
		writeFramePrologue(buf, n)
	case IFrameEpilogue:
		writeFrameEpilogue(buf, n)
	case IOp:
		fmt.Fprintf(buf, "\t%s\t%s, %s\n", n.Op, n.Dest, operandText(n.Src))
	case IJump:
		fmt.Fprintf(buf, "\t%s\t%s\n", n.Name(), n.Target.Text())
	case ICall:
		fmt.Fprintf(buf, "\tCALL\tSP, %s\n", n.Target.Text())
	case IIndirectCall:
		fmt.Fprintf(buf, "\tCALL\tSP, @%s\n", n.Target)
	case IReturn:
		fmt.Fprintf(buf, "\tEXIT\tSP, 0\n")
	case IHalt:
		fmt.Fprintf(buf, "\tSVC\tSP, HALT\n")
	case IDataWord:
		fmt.Fprintf(buf, "%s\tDC\t%d\n", n.L.Text(), n.Value)
	case IReserve:
		fmt.Fprintf(buf, "%s\tDS\t%d\n", n.L.Text(), n.Words)
	case IBytes:
		fmt.Fprintf(buf, "%s\tDC\t%q\n", n.L.Text(), string(n.Values))
	}
}

// writeFramePrologue expands a function's frame-setup marker into the
// concrete instruction sequence frame.go's layout commits to: CALL has
// already left the return address at FP+0 by the time this runs, so
// establishing FP from the current SP and then pushing the caller's
// old FP gives slot 1 (FP+1) to the saved FP, matching
// Frame.assignParams's params-start-at-+2 offset. FrameWords of
// local+scratch storage are reserved by bumping SP past them.
func writeFramePrologue(buf *bytes.Buffer, n IFramePrologue) {
	fmt.Fprintf(buf, "\tLOAD\tR0, FP\n")
	fmt.Fprintf(buf, "\tLOAD\tFP, SP\n")
	fmt.Fprintf(buf, "\tPUSH\tSP, R0\n")
	if n.FrameWords > 0 {
		fmt.Fprintf(buf, "\tADD\tSP, =%d\n", n.FrameWords)
	}
}

// writeFrameEpilogue reverses writeFramePrologue: deallocate locals and
// scratch, pop the saved FP back off the stack, and restore it, ready
// for the IReturn instruction that follows to pop the return address
// and jump.
func writeFrameEpilogue(buf *bytes.Buffer, n IFrameEpilogue) {
	if n.FrameWords > 0 {
		fmt.Fprintf(buf, "\tSUB\tSP, =%d\n", n.FrameWords)
	}
	fmt.Fprintf(buf, "\tPOP\tSP, R0\n")
	fmt.Fprintf(buf, "\tLOAD\tFP, R0\n")
}

func operandText(o Operand) string {
	switch o.Kind {
	case OpImm:
		return fmt.Sprintf("=%d", o.Imm)
	case OpReg:
		return o.Reg.String()
	case OpMem:
		return fmt.Sprintf("%s", o.Label.Text())
	case OpFPRel:
		return fmt.Sprintf("%d(FP)", o.Offset)
	case OpLabel:
		return fmt.Sprintf("=%s", o.Label.Text())
	}
	return "?"
}

// ---- binary encoding ----
//
// Grounded on the teacher's own wire format (vm.go's Bytecode type,
// which length-prefixes a sequence of opcode records via
// encoding/binary): EncodeBinary/DecodeBinaryProgram give this
// compiler an equivalent round-trippable dump of its instruction
// stream for tooling that wants a program without re-parsing
// assembly text. It is not the target machine's real load format
// (out of scope per spec.md's non-goals on assembler/linker
// emission); it exists purely so the compiler can serialize and
// reload its own IR.

const binaryMagic uint32 = 0x54434331 // "TCC1"

// EncodeBinary serializes a Program's code and data sections into a
// compact, versioned binary blob.
func (p *Program) EncodeBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, binaryMagic); err != nil {
		return nil, err
	}
	if err := encodeSection(&buf, p.Code); err != nil {
		return nil, err
	}
	if err := encodeSection(&buf, p.Data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeSection(buf *bytes.Buffer, instrs []Instruction) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(instrs))); err != nil {
		return err
	}
	for _, ins := range instrs {
		text := encodeInstrText(ins)
		if err := binary.Write(buf, binary.BigEndian, uint32(len(text))); err != nil {
			return err
		}
		buf.WriteString(text)
	}
	return nil
}

// encodeInstrText serializes one instruction to its assembly-text
// line, reusing writeInstrLine as the single source of truth for an
// instruction's textual shape instead of a second bespoke encoder.
func encodeInstrText(ins Instruction) string {
	var buf bytes.Buffer
	writeInstrLine(&buf, ins)
	return buf.String()
}

// DecodeBinaryProgram parses a blob produced by EncodeBinary back
// into a Program whose Code/Data are opaque IComment lines (the
// decoded form is for round-trip verification and tooling that only
// needs the textual listing, not a second live Instruction for
// codegen to act on).
func DecodeBinaryProgram(blob []byte) (*Program, error) {
	r := bytes.NewReader(blob)
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, err
	}
	if magic != binaryMagic {
		return nil, fmt.Errorf("titocc: not a recognized program blob")
	}
	code, err := decodeSection(r)
	if err != nil {
		return nil, err
	}
	data, err := decodeSection(r)
	if err != nil {
		return nil, err
	}
	return &Program{Code: code, Data: data}, nil
}

func decodeSection(r *bytes.Reader) ([]Instruction, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	out := make([]Instruction, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		text := make([]byte, n)
		if _, err := r.Read(text); err != nil {
			return nil, err
		}
		out = append(out, IComment{Text: string(text)})
	}
	return out, nil
}
