package binfmt

import (
	"encoding/binary"
	"fmt"
)

// reader walks a byte slice front-to-back, failing fast on a short read
// rather than panicking: a malformed binary is a decode error, not an
// internal invariant violation.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("binfmt: unexpected end of input at offset %d, need %d more bytes", r.pos, n)
	}
	return nil
}

func (r *reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) str(n int) (string, error) {
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses data into a *Binary, resolving every string-pool index
// into its string. Type-table references (a function's signature, a
// callable's return and parameter types) stay as type-table indices.
func Decode(data []byte) (*Binary, error) {
	r := &reader{buf: data}

	magic, err := r.bytes(len(Magic))
	if err != nil {
		return nil, fmt.Errorf("binfmt: %w", err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("binfmt: bad magic %q", magic)
	}

	flags, err := r.byte()
	if err != nil {
		return nil, err
	}
	b := &Binary{IsLibrary: flags&FlagIsLibrary != 0, index: map[string]uint32{"": 0}, blobLen: 4}

	if !b.IsLibrary {
		ep, err := r.u32()
		if err != nil {
			return nil, err
		}
		b.Entrypoint = ep
	}

	stringsLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	blobStart := r.pos
	blobEnd := r.pos + int(stringsLen)
	if err := r.need(int(stringsLen)); err != nil {
		return nil, err
	}
	sentinel, err := r.u32()
	if err != nil {
		return nil, err
	}
	if sentinel != 0 {
		return nil, fmt.Errorf("binfmt: string pool missing the leading length-zero sentinel")
	}
	// String ids are byte offsets of each entry's length prefix within the
	// blob; offset 0 is the sentinel, the empty string.
	pool := map[uint32]string{0: ""}
	for r.pos < blobEnd {
		off := uint32(r.pos - blobStart)
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		s, err := r.str(int(n))
		if err != nil {
			return nil, err
		}
		pool[off] = s
		b.strings = append(b.strings, s)
		if _, dup := b.index[s]; !dup {
			b.index[s] = off
		}
	}
	b.blobLen = uint32(blobEnd - blobStart)
	r.pos = blobEnd

	resolveStr := func(i uint32) (string, error) {
		s, ok := pool[i]
		if !ok {
			return "", fmt.Errorf("binfmt: string id %d does not address a pool entry", i)
		}
		return s, nil
	}

	typesCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	b.Types = make([]TypeEntry, 0, typesCount)
	for i := uint16(0); i < typesCount; i++ {
		tagByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		t := TypeEntry{Tag: TypeTag(tagByte)}
		if t.Tag == TypePrimitive || t.Tag == TypeComposed {
			nameIdx, err := r.u32()
			if err != nil {
				return nil, err
			}
			t.Name, err = resolveStr(nameIdx)
			if err != nil {
				return nil, err
			}
			hasCallableByte, err := r.byte()
			if err != nil {
				return nil, err
			}
			if hasCallableByte != 0 {
				ret, err := r.u16()
				if err != nil {
					return nil, err
				}
				paramCount, err := r.u16()
				if err != nil {
					return nil, err
				}
				params := make([]uint16, paramCount)
				for p := range params {
					params[p], err = r.u16()
					if err != nil {
						return nil, err
					}
				}
				t.Callable = &CallableSig{ReturnType: ret, Params: params}
			}
		}
		b.Types = append(b.Types, t)
	}

	fnCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	b.Functions = make([]FunctionEntry, 0, fnCount)
	for i := uint16(0); i < fnCount; i++ {
		nameIdx, err := r.u32()
		if err != nil {
			return nil, err
		}
		scopeIdx, err := r.u32()
		if err != nil {
			return nil, err
		}
		sig, err := r.u16()
		if err != nil {
			return nil, err
		}
		addr, err := r.u32()
		if err != nil {
			return nil, err
		}
		name, err := resolveStr(nameIdx)
		if err != nil {
			return nil, err
		}
		scope, err := resolveStr(scopeIdx)
		if err != nil {
			return nil, err
		}
		b.Functions = append(b.Functions, FunctionEntry{Name: name, Scope: scope, Signature: sig, Address: addr})
	}

	codeLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}
	b.Code = append([]byte{}, code...)

	smCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	b.SourceMap = make([]SourceMapEntry, 0, smCount)
	for i := uint16(0); i < smCount; i++ {
		fileLen, err := r.u16()
		if err != nil {
			return nil, err
		}
		file, err := r.str(int(fileLen))
		if err != nil {
			return nil, err
		}
		var sm SourceMapEntry
		sm.File = file
		if sm.SeekStart, err = r.u32(); err != nil {
			return nil, err
		}
		if sm.SeekEnd, err = r.u32(); err != nil {
			return nil, err
		}
		if sm.LineStart, err = r.u16(); err != nil {
			return nil, err
		}
		if sm.LineEnd, err = r.u16(); err != nil {
			return nil, err
		}
		if sm.ColStart, err = r.u16(); err != nil {
			return nil, err
		}
		if sm.ColEnd, err = r.u16(); err != nil {
			return nil, err
		}
		if sm.CodeOffset, err = r.u32(); err != nil {
			return nil, err
		}
		if sm.CodeLength, err = r.u32(); err != nil {
			return nil, err
		}
		b.SourceMap = append(b.SourceMap, sm)
	}

	return b, nil
}
