package amdgpu

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"tlog.app/go/errors"
)

// Relocatable ELF64 layout constants.
const (
	ehdrSize = 64
	shdrSize = 64
	symSize  = 24

	elfTypeRel   = 1
	elfMachine   = 224 // EM_AMDGPU
	elfOSABIHSA  = 64  // ELFOSABI_AMDGPU_HSA
	elfABIVerHSA = 2

	shtProgbits = 1
	shtSymtab   = 2
	shtStrtab   = 3

	shfAlloc     = 0x2
	shfExecinstr = 0x4
)

// e_flags mach codes for the supported devices.
var machFlags = map[string]uint32{
	"gfx900": 0x2c,
	"gfx906": 0x2f,
	"gfx908": 0x30,
	"gfx90a": 0x3f,
	"gfx940": 0x40,
}

// Fixed instruction word table. One word per lowered line keyed by
// mnemonic; enough for a structurally valid relocatable, full encoding
// belongs to a real assembler.
var encoding = map[string]uint32{
	"s_endpgm":     0xbf810000,
	"s_mov_b32":    0xbe800380,
	"v_mov_b32":    0x7e000280,
	"s_add_i32":    0x81000000,
	"s_load_dword": 0xc0000000,
	"s_waitcnt":    0xbf8c0000,
	"s_setpc_b64":  0xbe802000,
	"s_nop":        0xbf800000,
}

type elfSym struct {
	name string
	off  int
	size int
}

func encodeFunc(lines []string) []byte {
	var text []byte

	for _, l := range lines {
		mn, _, _ := strings.Cut(l, " ")
		if strings.HasPrefix(mn, ";") {
			continue
		}

		w, ok := encoding[mn]
		if !ok {
			w = encoding["s_nop"]
		}

		text = binary.LittleEndian.AppendUint32(text, w)
	}

	return text
}

// writeELF assembles the lowered module into an ET_REL object: null,
// .text, .symtab, .strtab and .shstrtab sections plus one global FUNC
// symbol per kernel.
func writeELF(w io.Writer, proc string, code []funcCode) error {
	var text []byte
	var syms []elfSym

	for _, f := range code {
		body := encodeFunc(f.lines)

		syms = append(syms, elfSym{name: f.name, off: len(text), size: len(body)})
		text = append(text, body...)
	}

	strtab := []byte{0}
	nameOff := make([]uint32, len(syms))

	for i, s := range syms {
		nameOff[i] = uint32(len(strtab))
		strtab = append(strtab, s.name...)
		strtab = append(strtab, 0)
	}

	shstrtab := []byte("\x00.text\x00.symtab\x00.strtab\x00.shstrtab\x00")

	textOff := ehdrSize
	symtabOff := align8(textOff + len(text))
	symtabSize := (1 + len(syms)) * symSize
	strtabOff := symtabOff + symtabSize
	shstrtabOff := strtabOff + len(strtab)
	shOff := align8(shstrtabOff + len(shstrtab))

	var b bytes.Buffer

	// ehdr
	b.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, elfOSABIHSA, elfABIVerHSA, 0, 0, 0, 0, 0, 0, 0})
	u16(&b, elfTypeRel)
	u16(&b, elfMachine)
	u32(&b, 1)               // version
	u64(&b, 0)               // entry
	u64(&b, 0)               // phoff
	u64(&b, uint64(shOff))   // shoff
	u32(&b, machFlags[proc]) // flags
	u16(&b, ehdrSize)
	u16(&b, 0) // phentsize
	u16(&b, 0) // phnum
	u16(&b, shdrSize)
	u16(&b, 5) // shnum
	u16(&b, 4) // shstrndx

	b.Write(text)
	pad(&b, symtabOff)

	// null symbol
	b.Write(make([]byte, symSize))

	for i, s := range syms {
		u32(&b, nameOff[i])
		b.WriteByte(0x12) // GLOBAL | FUNC
		b.WriteByte(0)
		u16(&b, 1) // .text
		u64(&b, uint64(s.off))
		u64(&b, uint64(s.size))
	}

	b.Write(strtab)
	b.Write(shstrtab)
	pad(&b, shOff)

	shdr(&b, 0, 0, 0, 0, 0, 0, 0, 0, 0)                                              // null
	shdr(&b, 1, shtProgbits, shfAlloc|shfExecinstr, textOff, len(text), 0, 0, 4, 0)  // .text
	shdr(&b, 7, shtSymtab, 0, symtabOff, symtabSize, 3, 1, 8, symSize)               // .symtab
	shdr(&b, 15, shtStrtab, 0, strtabOff, len(strtab), 0, 0, 1, 0)                   // .strtab
	shdr(&b, 23, shtStrtab, 0, shstrtabOff, len(shstrtab), 0, 0, 1, 0)               // .shstrtab

	_, err := w.Write(b.Bytes())
	if err != nil {
		return errors.Wrap(err, "write object")
	}

	return nil
}

func shdr(b *bytes.Buffer, name uint32, typ, flags, off, size, link, info, align, entsize int) {
	u32(b, name)
	u32(b, uint32(typ))
	u64(b, uint64(flags))
	u64(b, 0) // addr
	u64(b, uint64(off))
	u64(b, uint64(size))
	u32(b, uint32(link))
	u32(b, uint32(info))
	u64(b, uint64(align))
	u64(b, uint64(entsize))
}

func u16(b *bytes.Buffer, v uint16) { _ = binary.Write(b, binary.LittleEndian, v) }
func u32(b *bytes.Buffer, v uint32) { _ = binary.Write(b, binary.LittleEndian, v) }
func u64(b *bytes.Buffer, v uint64) { _ = binary.Write(b, binary.LittleEndian, v) }

func pad(b *bytes.Buffer, off int) {
	for b.Len() < off {
		b.WriteByte(0)
	}
}

func align8(x int) int {
	return (x + 7) &^ 7
}
