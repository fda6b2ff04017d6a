package wasmmod

// ValType is a WASM value type byte, as written in type and local
// sections. Constants and names follow nikandfor-wasm's module.go.
type ValType byte

const (
	ValI32    ValType = 0x7F
	ValI64    ValType = 0x7E
	ValF32    ValType = 0x7D
	ValF64    ValType = 0x7C
	FuncTypeHeader byte = 0x60
	BlockTypeVoid  byte = 0x40
)

// SectionID orders the module's top-level sections.
type SectionID byte

const (
	SecCustom    SectionID = 0
	SecType      SectionID = 1
	SecImport    SectionID = 2
	SecFunction  SectionID = 3
	SecTable     SectionID = 4
	SecMemory    SectionID = 5
	SecGlobal    SectionID = 6
	SecExport    SectionID = 7
	SecStart     SectionID = 8
	SecElement   SectionID = 9
	SecCode      SectionID = 10
	SecData      SectionID = 11
)

// ExternalKind tags an export or import by the kind of thing it names.
type ExternalKind byte

const (
	KindFunc   ExternalKind = 0x00
	KindTable  ExternalKind = 0x01
	KindMemory ExternalKind = 0x02
	KindGlobal ExternalKind = 0x03
)

// Instruction opcodes, limited to the subset this compiler ever emits.
// Byte values are the standard WASM 1.0 encoding.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10

	OpDrop   byte = 0x1A
	OpSelect byte = 0x1B

	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpLocalTee  byte = 0x22
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24

	OpI32Load  byte = 0x28
	OpI64Load  byte = 0x29
	OpF64Load  byte = 0x2B
	OpI32Load8U byte = 0x2D
	OpI32Store  byte = 0x36
	OpI64Store  byte = 0x37
	OpF64Store  byte = 0x39
	OpI32Store8 byte = 0x3A

	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF64Const byte = 0x44

	OpI32Eqz byte = 0x45
	OpI32Eq  byte = 0x46
	OpI32Ne  byte = 0x47
	OpI32LtS byte = 0x48
	OpI32GtS byte = 0x4A
	OpI32LeS byte = 0x4C
	OpI32GeS byte = 0x4E

	OpF64Eq byte = 0x61
	OpF64Ne byte = 0x62
	OpF64Lt byte = 0x63
	OpF64Gt byte = 0x64
	OpF64Le byte = 0x65
	OpF64Ge byte = 0x66

	OpI32Add  byte = 0x6A
	OpI32Sub  byte = 0x6B
	OpI32Mul  byte = 0x6C
	OpI32DivS byte = 0x6D
	OpI32RemS byte = 0x6F
	OpI32And  byte = 0x71
	OpI32Or   byte = 0x72
	OpI32Xor  byte = 0x73

	OpF64Neg byte = 0x9A
	OpF64Add byte = 0xA0
	OpF64Sub byte = 0xA1
	OpF64Mul byte = 0xA2
	OpF64Div byte = 0xA3

	OpI32TruncF64S      byte = 0xAA
	OpI64ExtendI32S     byte = 0xAC
	OpF64ConvertI32S    byte = 0xB7
)
