package compiler

import (
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/token"
	"github.com/anistark/waspy/types"
	"github.com/anistark/waspy/wasmmod"
)

// emitFString folds an f-string's parts through repeated $str_concat
// calls, converting each expression part to str via asStrBytes.
func (c *Compiler) emitFString(fc *funcContext, e ir.FString) ([]byte, types.Type, error) {
	if len(e.Parts) == 0 {
		off, err := c.builder.Layout().InternString("")
		if err != nil {
			return nil, nil, err
		}
		var b []byte
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(int32(off))...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
		return b, types.Str, nil
	}

	accOff := fc.newScratchLocal(types.KindI32)
	accLen := fc.newScratchLocal(types.KindI32)
	first, err := c.emitFStringPart(fc, e.Parts[0])
	if err != nil {
		return nil, nil, err
	}

	var b []byte
	b = append(b, first...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(accLen)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(accOff)...)

	for _, part := range e.Parts[1:] {
		pb, err := c.emitFStringPart(fc, part)
		if err != nil {
			return nil, nil, err
		}
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(accOff)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(accLen)...)
		b = append(b, pb...)
		b = append(b, wasmmod.OpCall)
		b = append(b, wasmmod.EncodeU32(c.rt.strConcat())...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(accLen)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(accOff)...)
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(accOff)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(accLen)...)
	return b, types.Str, nil
}

func (c *Compiler) emitFStringPart(fc *funcContext, p ir.FStringPart) ([]byte, error) {
	if p.Expr == nil {
		off, err := c.builder.Layout().InternString(p.Literal)
		if err != nil {
			return nil, err
		}
		var b []byte
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(int32(off))...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(int32(len(p.Literal)))...)
		return b, nil
	}
	eb, et, err := c.emitExpr(fc, p.Expr)
	if err != nil {
		return nil, err
	}
	return c.asStrBytes(fc, eb, et, p.Expr.Pos())
}

// emitFormatPercent supports `%`-formatting only when the format
// string is a compile-time literal: a dynamic format string can't be
// parsed at emit time, since this compiler does no runtime string
// parsing.
func (c *Compiler) emitFormatPercent(fc *funcContext, e ir.FormatPercent) ([]byte, types.Type, error) {
	lit, ok := e.Format.(ir.StrConst)
	if !ok {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "percent-format-with-dynamic-format-string")
	}
	literals, argCount, err := splitPercentFormat(lit.Value, e.P)
	if err != nil {
		return nil, nil, err
	}
	if argCount != len(e.Args) {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "percent-format-arg-count-mismatch")
	}

	internLit := func(s string) ([]byte, error) {
		off, err := c.builder.Layout().InternString(s)
		if err != nil {
			return nil, err
		}
		var lb []byte
		lb = append(lb, wasmmod.OpI32Const)
		lb = append(lb, wasmmod.EncodeS32(int32(off))...)
		lb = append(lb, wasmmod.OpI32Const)
		lb = append(lb, wasmmod.EncodeS32(int32(len(s)))...)
		return lb, nil
	}

	accOff := fc.newScratchLocal(types.KindI32)
	accLen := fc.newScratchLocal(types.KindI32)
	first, err := internLit(literals[0])
	if err != nil {
		return nil, nil, err
	}

	var b []byte
	b = append(b, first...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(accLen)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(accOff)...)

	appendChunk := func(chunk []byte) {
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(accOff)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(accLen)...)
		b = append(b, chunk...)
		b = append(b, wasmmod.OpCall)
		b = append(b, wasmmod.EncodeU32(c.rt.strConcat())...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(accLen)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(accOff)...)
	}

	for i, arg := range e.Args {
		ab, at, err := c.emitExpr(fc, arg)
		if err != nil {
			return nil, nil, err
		}
		sb, err := c.asStrBytes(fc, ab, at, arg.Pos())
		if err != nil {
			return nil, nil, err
		}
		appendChunk(sb)

		lb, err := internLit(literals[i+1])
		if err != nil {
			return nil, nil, err
		}
		appendChunk(lb)
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(accOff)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(accLen)...)
	return b, types.Str, nil
}

// splitPercentFormat splits a %-format literal into len(specs)+1
// literal segments interleaved around each conversion spec. Only
// %d, %s, %f, and the %% escape are recognized.
func splitPercentFormat(fmtStr string, pos token.Position) ([]string, int, error) {
	var literals []string
	var cur []byte
	argCount := 0
	for i := 0; i < len(fmtStr); i++ {
		ch := fmtStr[i]
		if ch == '%' {
			if i+1 >= len(fmtStr) {
				return nil, 0, errs.NewUnsupportedConstruct(pos, "percent-format-trailing-percent")
			}
			spec := fmtStr[i+1]
			if spec == '%' {
				cur = append(cur, '%')
				i++
				continue
			}
			switch spec {
			case 'd', 's', 'f':
				literals = append(literals, string(cur))
				cur = nil
				argCount++
				i++
				continue
			default:
				return nil, 0, errs.NewUnsupportedConstruct(pos, "percent-format-spec-"+string(spec))
			}
		}
		cur = append(cur, ch)
	}
	literals = append(literals, string(cur))
	return literals, argCount, nil
}
