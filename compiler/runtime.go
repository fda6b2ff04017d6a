package compiler

import "github.com/anistark/waspy/wasmmod"

// runtimeHelpers lazily synthesizes a small fixed WASM function body the
// rest of the emitter can `call` into — string concatenation and
// int/float→str conversion have no host dependency, and use a
// constant decimal-digit loop, so they are emitted once as ordinary
// module-local functions rather than imported.
type runtimeHelpers struct {
	c       *Compiler
	indices map[string]uint32
}

func newRuntimeHelpers(c *Compiler) *runtimeHelpers {
	return &runtimeHelpers{c: c, indices: make(map[string]uint32)}
}

func (r *runtimeHelpers) intToStr() uint32 {
	return r.once("$int_to_str", func() (wasmmod.FuncSig, []wasmmod.ValType, []byte) {
		// params: n i32. results: (offset i32, length i32).
		// locals beyond param 0: negative(1) buf(2) pos(3) digit(4)
		sig := wasmmod.FuncSig{
			Params:  []wasmmod.ValType{wasmmod.ValI32},
			Results: []wasmmod.ValType{wasmmod.ValI32, wasmmod.ValI32},
		}
		locals := []wasmmod.ValType{wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32}
		const n, negative, buf, pos, digit = 0, 1, 2, 3, 4

		var b []byte
		// buf = heap_alloc(11)
		b = append(b, r.c.builder.Layout().HeapAllocInstructions(0, 11)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(buf)...)
		// pos = buf + 11
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(buf)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(11)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		// negative = n < 0
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
		b = append(b, wasmmod.OpI32LtS)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(negative)...)
		// if negative: n = 0 - n
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(negative)...)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpEnd)
		// loop: while n != 0 { pos--; buf[pos]=(n%10)+'0'; n/=10 } -- special-case n==0 -> emit single '0'
		// block $done / loop $top
		b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
		// if n == 0: br 1 (exit loop) only on first entry handled by the pre-check below
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpI32Eqz)
		b = append(b, wasmmod.OpBrIf)
		b = append(b, wasmmod.EncodeU32(1)...)
		// digit = n % 10
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(10)...)
		b = append(b, wasmmod.OpI32RemS)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(digit)...)
		// pos -= 1
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		// buf[pos] = digit + '0'
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(digit)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(48)...) // '0'
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpI32Store8)
		b = append(b, wasmmod.EncodeU32(0)...) // align
		b = append(b, wasmmod.EncodeU32(0)...) // offset
		// n /= 10
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(10)...)
		b = append(b, wasmmod.OpI32DivS)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(n)...)
		// br 0 (continue loop)
		b = append(b, wasmmod.OpBr)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpEnd) // end loop
		b = append(b, wasmmod.OpEnd) // end block
		// if pos == buf+11 (nothing written, original n was 0): write a '0'
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(buf)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(11)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpI32Eq)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(48)...)
		b = append(b, wasmmod.OpI32Store8)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpEnd)
		// if negative: pos--; buf[pos] = '-'
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(negative)...)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(45)...) // '-'
		b = append(b, wasmmod.OpI32Store8)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpEnd)
		// return (pos, (buf+11) - pos)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(buf)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(11)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Sub)

		return sig, locals, b
	})
}

// strConcat synthesizes `$str_concat(a_off,a_len,b_off,b_len) -> (off,
// len)`: bump allocate sum-of-lengths, copy both ranges, leave
// (offset, length).
func (r *runtimeHelpers) strConcat() uint32 {
	return r.once("$str_concat", func() (wasmmod.FuncSig, []wasmmod.ValType, []byte) {
		sig := wasmmod.FuncSig{
			Params:  []wasmmod.ValType{wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32},
			Results: []wasmmod.ValType{wasmmod.ValI32, wasmmod.ValI32},
		}
		const aOff, aLen, bOff, bLen = 0, 1, 2, 3
		const dst, sumLen, i = 4, 5, 6
		locals := []wasmmod.ValType{wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32}

		var b []byte
		// sumLen = aLen + bLen
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(aLen)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(bLen)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(sumLen)...)
		// dst = heap_alloc(sumLen) -- bump by a dynamic amount: global.get; global.get; local.get sumLen; add; global.set
		b = append(b, wasmmod.OpGlobalGet)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpGlobalGet)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(sumLen)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpGlobalSet)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(dst)...)
		// i = 0; while i < aLen { dst[i] = a[i]; i++ }
		b = append(b, r.byteCopyLoop(dst, aOff, aLen, i)...)
		// i = 0; while i < bLen { dst[aLen+i] = b[i]; i++ }
		var b2 []byte
		b2 = append(b2, wasmmod.OpI32Const)
		b2 = append(b2, wasmmod.EncodeS32(0)...)
		b2 = append(b2, wasmmod.OpLocalSet)
		b2 = append(b2, wasmmod.EncodeU32(i)...)
		b2 = append(b2, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
		b2 = append(b2, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
		b2 = append(b2, wasmmod.OpLocalGet)
		b2 = append(b2, wasmmod.EncodeU32(i)...)
		b2 = append(b2, wasmmod.OpLocalGet)
		b2 = append(b2, wasmmod.EncodeU32(bLen)...)
		b2 = append(b2, wasmmod.OpI32GeS)
		b2 = append(b2, wasmmod.OpBrIf)
		b2 = append(b2, wasmmod.EncodeU32(1)...)
		// dst[aLen+i] = loadByte(bOff+i)
		b2 = append(b2, wasmmod.OpLocalGet)
		b2 = append(b2, wasmmod.EncodeU32(dst)...)
		b2 = append(b2, wasmmod.OpLocalGet)
		b2 = append(b2, wasmmod.EncodeU32(aLen)...)
		b2 = append(b2, wasmmod.OpI32Add)
		b2 = append(b2, wasmmod.OpLocalGet)
		b2 = append(b2, wasmmod.EncodeU32(i)...)
		b2 = append(b2, wasmmod.OpI32Add)
		b2 = append(b2, wasmmod.OpLocalGet)
		b2 = append(b2, wasmmod.EncodeU32(bOff)...)
		b2 = append(b2, wasmmod.OpLocalGet)
		b2 = append(b2, wasmmod.EncodeU32(i)...)
		b2 = append(b2, wasmmod.OpI32Add)
		b2 = append(b2, wasmmod.OpI32Load8U)
		b2 = append(b2, wasmmod.EncodeU32(0)...)
		b2 = append(b2, wasmmod.EncodeU32(0)...)
		b2 = append(b2, wasmmod.OpI32Store8)
		b2 = append(b2, wasmmod.EncodeU32(0)...)
		b2 = append(b2, wasmmod.EncodeU32(0)...)
		b2 = append(b2, wasmmod.OpLocalGet)
		b2 = append(b2, wasmmod.EncodeU32(i)...)
		b2 = append(b2, wasmmod.OpI32Const)
		b2 = append(b2, wasmmod.EncodeS32(1)...)
		b2 = append(b2, wasmmod.OpI32Add)
		b2 = append(b2, wasmmod.OpLocalSet)
		b2 = append(b2, wasmmod.EncodeU32(i)...)
		b2 = append(b2, wasmmod.OpBr)
		b2 = append(b2, wasmmod.EncodeU32(0)...)
		b2 = append(b2, wasmmod.OpEnd)
		b2 = append(b2, wasmmod.OpEnd)
		b = append(b, b2...)
		// return (dst, sumLen)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(dst)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(sumLen)...)
		return sig, locals, b
	})
}

// byteCopyLoop emits `for i in 0..srcLen: dst[i] = mem[srcOff+i]`.
func (r *runtimeHelpers) byteCopyLoop(dst, srcOff, srcLen, i uint32) []byte {
	var b []byte
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(srcLen)...)
	b = append(b, wasmmod.OpI32GeS)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(1)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(dst)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(srcOff)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Load8U)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpI32Store8)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpEnd)
	b = append(b, wasmmod.OpEnd)
	return b
}

// strEq synthesizes `$str_eq(a_off,a_len,b_off,b_len) -> i32`: compare
// length then byte ranges, inline.
func (r *runtimeHelpers) strEq() uint32 {
	return r.once("$str_eq", func() (wasmmod.FuncSig, []wasmmod.ValType, []byte) {
		sig := wasmmod.FuncSig{
			Params:  []wasmmod.ValType{wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32},
			Results: []wasmmod.ValType{wasmmod.ValI32},
		}
		const aOff, aLen, bOff, bLen = 0, 1, 2, 3
		const i = 4
		locals := []wasmmod.ValType{wasmmod.ValI32}

		var b []byte
		// if aLen != bLen: return 0
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(aLen)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(bLen)...)
		b = append(b, wasmmod.OpI32Ne)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
		b = append(b, wasmmod.OpReturn)
		b = append(b, wasmmod.OpEnd)
		// i = 0; loop: if i>=aLen: return 1; if mem[a+i]!=mem[b+i]: return 0; i++
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(i)...)
		b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(i)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(aLen)...)
		b = append(b, wasmmod.OpI32GeS)
		b = append(b, wasmmod.OpBrIf)
		b = append(b, wasmmod.EncodeU32(1)...)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(aOff)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(i)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpI32Load8U)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(bOff)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(i)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpI32Load8U)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpI32Ne)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
		b = append(b, wasmmod.OpReturn)
		b = append(b, wasmmod.OpEnd)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(i)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(i)...)
		b = append(b, wasmmod.OpBr)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpEnd)
		b = append(b, wasmmod.OpEnd)

		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		return sig, locals, b
	})
}

// floatToStr synthesizes `$float_to_str(n) -> (offset, length)`: fixed
// six-digit decimal fraction, rounded, no trailing-zero trimming,
// extending the int→str decimal-digit loop to floats the same way.
func (r *runtimeHelpers) floatToStr() uint32 {
	return r.once("$float_to_str", func() (wasmmod.FuncSig, []wasmmod.ValType, []byte) {
		sig := wasmmod.FuncSig{
			Params:  []wasmmod.ValType{wasmmod.ValF64},
			Results: []wasmmod.ValType{wasmmod.ValI32, wasmmod.ValI32},
		}
		locals := []wasmmod.ValType{
			wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValI32, wasmmod.ValF64,
		}
		const n, negative, ip, fp, buf, pos, frac = 0, 1, 2, 3, 4, 5, 6

		var b []byte
		b = append(b, r.c.builder.Layout().HeapAllocInstructions(0, 24)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(buf)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(buf)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(24)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpF64Const)
		b = append(b, wasmmod.EncodeF64(0)...)
		b = append(b, wasmmod.OpF64Lt)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(negative)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(negative)...)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpF64Neg)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpEnd)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpI32TruncF64S)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(n)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpF64ConvertI32S)
		b = append(b, wasmmod.OpF64Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(frac)...)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(frac)...)
		b = append(b, wasmmod.OpF64Const)
		b = append(b, wasmmod.EncodeF64(1000000)...)
		b = append(b, wasmmod.OpF64Mul)
		b = append(b, wasmmod.OpF64Const)
		b = append(b, wasmmod.EncodeF64(0.5)...)
		b = append(b, wasmmod.OpF64Add)
		b = append(b, wasmmod.OpI32TruncF64S)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(fp)...)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(fp)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1000000)...)
		b = append(b, wasmmod.OpI32GeS)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(fp)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1000000)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(fp)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpEnd)

		// Six fractional digits, zero-padded, written backward.
		for k := 0; k < 6; k++ {
			b = append(b, wasmmod.OpLocalGet)
			b = append(b, wasmmod.EncodeU32(pos)...)
			b = append(b, wasmmod.OpI32Const)
			b = append(b, wasmmod.EncodeS32(1)...)
			b = append(b, wasmmod.OpI32Sub)
			b = append(b, wasmmod.OpLocalSet)
			b = append(b, wasmmod.EncodeU32(pos)...)
			b = append(b, wasmmod.OpLocalGet)
			b = append(b, wasmmod.EncodeU32(pos)...)
			b = append(b, wasmmod.OpLocalGet)
			b = append(b, wasmmod.EncodeU32(fp)...)
			b = append(b, wasmmod.OpI32Const)
			b = append(b, wasmmod.EncodeS32(10)...)
			b = append(b, wasmmod.OpI32RemS)
			b = append(b, wasmmod.OpI32Const)
			b = append(b, wasmmod.EncodeS32(48)...)
			b = append(b, wasmmod.OpI32Add)
			b = append(b, wasmmod.OpI32Store8)
			b = append(b, wasmmod.EncodeU32(0)...)
			b = append(b, wasmmod.EncodeU32(0)...)
			b = append(b, wasmmod.OpLocalGet)
			b = append(b, wasmmod.EncodeU32(fp)...)
			b = append(b, wasmmod.OpI32Const)
			b = append(b, wasmmod.EncodeS32(10)...)
			b = append(b, wasmmod.OpI32DivS)
			b = append(b, wasmmod.OpLocalSet)
			b = append(b, wasmmod.EncodeU32(fp)...)
		}

		// Decimal point.
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(46)...) // '.'
		b = append(b, wasmmod.OpI32Store8)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)

		// Integer part, special-cased at zero.
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpI32Eqz)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(48)...)
		b = append(b, wasmmod.OpI32Store8)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpElse)
		b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpI32Eqz)
		b = append(b, wasmmod.OpBrIf)
		b = append(b, wasmmod.EncodeU32(1)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(10)...)
		b = append(b, wasmmod.OpI32RemS)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(48)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpI32Store8)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(10)...)
		b = append(b, wasmmod.OpI32DivS)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(ip)...)
		b = append(b, wasmmod.OpBr)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpEnd)
		b = append(b, wasmmod.OpEnd)
		b = append(b, wasmmod.OpEnd)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(negative)...)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Sub)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(45)...) // '-'
		b = append(b, wasmmod.OpI32Store8)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpEnd)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(buf)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(24)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(pos)...)
		b = append(b, wasmmod.OpI32Sub)

		return sig, locals, b
	})
}

func (r *runtimeHelpers) once(name string, build func() (wasmmod.FuncSig, []wasmmod.ValType, []byte)) uint32 {
	if idx, ok := r.indices[name]; ok {
		return idx
	}
	sig, locals, body := build()
	typeIdx := r.c.builder.InternSig(sig)
	idx := r.c.builder.AddFunction(name, typeIdx, locals, body)
	r.indices[name] = idx
	return idx
}
