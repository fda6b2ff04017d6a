// This file gives every node kind the package declares a JSON wire
// form, so cmd/waspy can accept a program as a JSON document instead
// of source text. Each node serializes as an envelope
// {"kind": "<TypeName>", ...its own fields...}; decoding dispatches on
// "kind" the same way a discriminated union would in any language
// without native sum types.
package ast

import (
	"encoding/json"
	"fmt"

	"github.com/anistark/waspy/token"
)

// ---- Program (top-level entry point) ----

func (p *Program) MarshalJSON() ([]byte, error) {
	stmts, err := marshalStmtList(p.Stmts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Stmts []json.RawMessage `json:"stmts"`
	}{Stmts: stmts})
}

func (p *Program) UnmarshalJSON(data []byte) error {
	var wire struct {
		Stmts []json.RawMessage `json:"stmts"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	stmts, err := unmarshalStmtList(wire.Stmts)
	if err != nil {
		return err
	}
	p.Stmts = stmts
	return nil
}

// ---- generic envelope helpers ----

type envelope struct {
	Kind string `json:"kind"`
}

func marshalNode(kind string, fields map[string]any) ([]byte, error) {
	out := map[string]any{"kind": kind}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

func marshalStmtList(stmts []Stmt) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(stmts))
	for i, s := range stmts {
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func marshalExprList(exprs []Expr) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(exprs))
	for i, e := range exprs {
		if e == nil {
			out[i] = json.RawMessage("null")
			continue
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func unmarshalStmtList(raws []json.RawMessage) ([]Stmt, error) {
	out := make([]Stmt, len(raws))
	for i, r := range raws {
		s, err := DecodeStmt(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func unmarshalExprList(raws []json.RawMessage) ([]Expr, error) {
	out := make([]Expr, len(raws))
	for i, r := range raws {
		if len(r) == 0 || string(r) == "null" {
			continue
		}
		e, err := DecodeExpr(r)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// decodeOptExpr decodes raw into an Expr, or returns nil for an absent
// or null field (every *Stmt/*Expr field this package marks optional
// in its doc comments — e.g. ReturnStmt.Value; optional blocks such as
// IfStmt.Else go through decodeOptBlock).
func decodeOptExpr(raw json.RawMessage) (Expr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return DecodeExpr(raw)
}

func decodeOptBlock(raw json.RawMessage) (*BlockStmt, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	s, err := DecodeStmt(raw)
	if err != nil {
		return nil, err
	}
	b, ok := s.(*BlockStmt)
	if !ok {
		return nil, fmt.Errorf("ast: expected block, got %T", s)
	}
	return b, nil
}

// DecodeStmt dispatches a JSON-encoded node envelope to the concrete
// Stmt type its "kind" field names.
func DecodeStmt(raw json.RawMessage) (Stmt, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case "BlockStmt":
		var w struct {
			Stmts []json.RawMessage `json:"stmts"`
			P     token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		stmts, err := unmarshalStmtList(w.Stmts)
		if err != nil {
			return nil, err
		}
		return &BlockStmt{Stmts: stmts, P: w.P}, nil

	case "FunctionDef":
		var w struct {
			Name       string            `json:"name"`
			Params     []wireParam       `json:"params"`
			ReturnType *TypeAnnotation   `json:"return_type"`
			Body       json.RawMessage   `json:"body"`
			Decorators []*wireDecorator  `json:"decorators"`
			P          token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		body, err := decodeOptBlock(w.Body)
		if err != nil {
			return nil, err
		}
		params, err := decodeParams(w.Params)
		if err != nil {
			return nil, err
		}
		decorators, err := decodeDecorators(w.Decorators)
		if err != nil {
			return nil, err
		}
		return &FunctionDef{Name: w.Name, Params: params, ReturnType: w.ReturnType, Body: body, Decorators: decorators, P: w.P}, nil

	case "ClassDef":
		var w struct {
			Name string          `json:"name"`
			Body json.RawMessage `json:"body"`
			P    token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		body, err := decodeOptBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &ClassDef{Name: w.Name, Body: body, P: w.P}, nil

	case "IfStmt":
		var w struct {
			Cond json.RawMessage `json:"cond"`
			Then json.RawMessage `json:"then"`
			Else json.RawMessage `json:"else"`
			P    token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		cond, err := DecodeExpr(w.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeOptBlock(w.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeOptBlock(w.Else)
		if err != nil {
			return nil, err
		}
		return &IfStmt{Cond: cond, Then: then, Else: els, P: w.P}, nil

	case "WhileStmt":
		var w struct {
			Cond json.RawMessage `json:"cond"`
			Body json.RawMessage `json:"body"`
			P    token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		cond, err := DecodeExpr(w.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeOptBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Cond: cond, Body: body, P: w.P}, nil

	case "ForStmt":
		var w struct {
			Var      string          `json:"var"`
			Iterable json.RawMessage `json:"iterable"`
			Body     json.RawMessage `json:"body"`
			P        token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		it, err := DecodeExpr(w.Iterable)
		if err != nil {
			return nil, err
		}
		body, err := decodeOptBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &ForStmt{Var: w.Var, Iterable: it, Body: body, P: w.P}, nil

	case "TryStmt":
		var w struct {
			Body     json.RawMessage   `json:"body"`
			Handlers []json.RawMessage `json:"handlers"`
			Finally  json.RawMessage   `json:"finally"`
			P        token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		body, err := decodeOptBlock(w.Body)
		if err != nil {
			return nil, err
		}
		finally, err := decodeOptBlock(w.Finally)
		if err != nil {
			return nil, err
		}
		handlers := make([]*ExceptHandler, len(w.Handlers))
		for i, hraw := range w.Handlers {
			h, err := decodeExceptHandler(hraw)
			if err != nil {
				return nil, err
			}
			handlers[i] = h
		}
		return &TryStmt{Body: body, Handlers: handlers, Finally: finally, P: w.P}, nil

	case "WithStmt":
		var w struct {
			ContextExpr json.RawMessage `json:"context_expr"`
			AsVar       string          `json:"as_var"`
			Body        json.RawMessage `json:"body"`
			P           token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		ctx, err := DecodeExpr(w.ContextExpr)
		if err != nil {
			return nil, err
		}
		body, err := decodeOptBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &WithStmt{ContextExpr: ctx, AsVar: w.AsVar, Body: body, P: w.P}, nil

	case "RaiseStmt":
		var w struct {
			Exc json.RawMessage `json:"exc"`
			P   token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		exc, err := decodeOptExpr(w.Exc)
		if err != nil {
			return nil, err
		}
		return &RaiseStmt{Exc: exc, P: w.P}, nil

	case "ReturnStmt":
		var w struct {
			Value json.RawMessage `json:"value"`
			P     token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		val, err := decodeOptExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: val, P: w.P}, nil

	case "AssignStmt":
		var w struct {
			Target json.RawMessage `json:"target"`
			Value  json.RawMessage `json:"value"`
			P      token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		target, err := DecodeExpr(w.Target)
		if err != nil {
			return nil, err
		}
		value, err := DecodeExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Target: target, Value: value, P: w.P}, nil

	case "AugAssignStmt":
		var w struct {
			Target json.RawMessage `json:"target"`
			Op     string          `json:"op"`
			Value  json.RawMessage `json:"value"`
			P      token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		target, err := DecodeExpr(w.Target)
		if err != nil {
			return nil, err
		}
		value, err := DecodeExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &AugAssignStmt{Target: target, Op: w.Op, Value: value, P: w.P}, nil

	case "ExprStmt":
		var w struct {
			Value json.RawMessage `json:"value"`
			P     token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		value, err := DecodeExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Value: value, P: w.P}, nil

	case "ImportStmt":
		var w struct {
			Name  string         `json:"name"`
			Alias string         `json:"alias"`
			P     token.Position `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &ImportStmt{Name: w.Name, Alias: w.Alias, P: w.P}, nil

	case "BreakStmt":
		var w struct{ P token.Position `json:"pos"` }
		_ = json.Unmarshal(raw, &w)
		return &BreakStmt{P: w.P}, nil

	case "ContinueStmt":
		var w struct{ P token.Position `json:"pos"` }
		_ = json.Unmarshal(raw, &w)
		return &ContinueStmt{P: w.P}, nil

	case "PassStmt":
		var w struct{ P token.Position `json:"pos"` }
		_ = json.Unmarshal(raw, &w)
		return &PassStmt{P: w.P}, nil

	default:
		return nil, fmt.Errorf("ast: unknown statement kind %q", env.Kind)
	}
}

// DecodeExpr dispatches a JSON-encoded node envelope to the concrete
// Expr type its "kind" field names.
func DecodeExpr(raw json.RawMessage) (Expr, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case "Identifier":
		var w struct {
			Name string         `json:"name"`
			P    token.Position `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &Identifier{Name: w.Name, P: w.P}, nil

	case "IntLiteral":
		var w struct {
			Value int64          `json:"value"`
			P     token.Position `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &IntLiteral{Value: w.Value, P: w.P}, nil

	case "FloatLiteral":
		var w struct {
			Value float64        `json:"value"`
			P     token.Position `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &FloatLiteral{Value: w.Value, P: w.P}, nil

	case "BoolLiteral":
		var w struct {
			Value bool           `json:"value"`
			P     token.Position `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &BoolLiteral{Value: w.Value, P: w.P}, nil

	case "StrLiteral":
		var w struct {
			Value string         `json:"value"`
			P     token.Position `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &StrLiteral{Value: w.Value, P: w.P}, nil

	case "BytesLiteral":
		var w struct {
			Value []byte         `json:"value"`
			P     token.Position `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &BytesLiteral{Value: w.Value, P: w.P}, nil

	case "NoneLiteral":
		var w struct{ P token.Position `json:"pos"` }
		_ = json.Unmarshal(raw, &w)
		return &NoneLiteral{P: w.P}, nil

	case "BinaryExpr":
		var w struct {
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
			P     token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		l, err := DecodeExpr(w.Left)
		if err != nil {
			return nil, err
		}
		r, err := DecodeExpr(w.Right)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: w.Op, Left: l, Right: r, P: w.P}, nil

	case "UnaryExpr":
		var w struct {
			Op      string          `json:"op"`
			Operand json.RawMessage `json:"operand"`
			P       token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		operand, err := DecodeExpr(w.Operand)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: w.Op, Operand: operand, P: w.P}, nil

	case "BoolOpExpr":
		var w struct {
			Op       string            `json:"op"`
			Operands []json.RawMessage `json:"operands"`
			P        token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		operands, err := unmarshalExprList(w.Operands)
		if err != nil {
			return nil, err
		}
		return &BoolOpExpr{Op: w.Op, Operands: operands, P: w.P}, nil

	case "CompareExpr":
		var w struct {
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
			P     token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		l, err := DecodeExpr(w.Left)
		if err != nil {
			return nil, err
		}
		r, err := DecodeExpr(w.Right)
		if err != nil {
			return nil, err
		}
		return &CompareExpr{Op: w.Op, Left: l, Right: r, P: w.P}, nil

	case "CallExpr":
		var w struct {
			Callee json.RawMessage   `json:"callee"`
			Args   []json.RawMessage `json:"args"`
			P      token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		callee, err := DecodeExpr(w.Callee)
		if err != nil {
			return nil, err
		}
		args, err := unmarshalExprList(w.Args)
		if err != nil {
			return nil, err
		}
		return &CallExpr{Callee: callee, Args: args, P: w.P}, nil

	case "AttributeExpr":
		var w struct {
			Receiver json.RawMessage `json:"receiver"`
			Name     string          `json:"name"`
			P        token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		receiver, err := DecodeExpr(w.Receiver)
		if err != nil {
			return nil, err
		}
		return &AttributeExpr{Receiver: receiver, Name: w.Name, P: w.P}, nil

	case "IndexExpr":
		var w struct {
			Container json.RawMessage `json:"container"`
			Index     json.RawMessage `json:"index"`
			P         token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		container, err := DecodeExpr(w.Container)
		if err != nil {
			return nil, err
		}
		index, err := DecodeExpr(w.Index)
		if err != nil {
			return nil, err
		}
		return &IndexExpr{Container: container, Index: index, P: w.P}, nil

	case "SliceExpr":
		var w struct {
			Container json.RawMessage `json:"container"`
			Start     json.RawMessage `json:"start"`
			Stop      json.RawMessage `json:"stop"`
			Step      json.RawMessage `json:"step"`
			P         token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		container, err := DecodeExpr(w.Container)
		if err != nil {
			return nil, err
		}
		start, err := decodeOptExpr(w.Start)
		if err != nil {
			return nil, err
		}
		stop, err := decodeOptExpr(w.Stop)
		if err != nil {
			return nil, err
		}
		step, err := decodeOptExpr(w.Step)
		if err != nil {
			return nil, err
		}
		return &SliceExpr{Container: container, Start: start, Stop: stop, Step: step, P: w.P}, nil

	case "ListLiteral":
		var w struct {
			Elements []json.RawMessage `json:"elements"`
			P        token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		elems, err := unmarshalExprList(w.Elements)
		if err != nil {
			return nil, err
		}
		return &ListLiteral{Elements: elems, P: w.P}, nil

	case "DictLiteral":
		var w struct {
			Keys   []json.RawMessage `json:"keys"`
			Values []json.RawMessage `json:"values"`
			P      token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		keys, err := unmarshalExprList(w.Keys)
		if err != nil {
			return nil, err
		}
		values, err := unmarshalExprList(w.Values)
		if err != nil {
			return nil, err
		}
		return &DictLiteral{Keys: keys, Values: values, P: w.P}, nil

	case "TupleLiteral":
		var w struct {
			Elements []json.RawMessage `json:"elements"`
			P        token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		elems, err := unmarshalExprList(w.Elements)
		if err != nil {
			return nil, err
		}
		return &TupleLiteral{Elements: elems, P: w.P}, nil

	case "FStringExpr":
		var w struct {
			Parts []wireFStringPart `json:"parts"`
			P     token.Position   `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		parts := make([]FStringPart, len(w.Parts))
		for i, p := range w.Parts {
			if p.Literal != "" || len(p.Expr) == 0 {
				parts[i] = FStringPart{Literal: p.Literal}
				continue
			}
			e, err := DecodeExpr(p.Expr)
			if err != nil {
				return nil, err
			}
			parts[i] = FStringPart{Expr: e}
		}
		return &FStringExpr{Parts: parts, P: w.P}, nil

	case "FormatPercentExpr":
		var w struct {
			Format json.RawMessage   `json:"format"`
			Args   []json.RawMessage `json:"args"`
			P      token.Position    `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		format, err := DecodeExpr(w.Format)
		if err != nil {
			return nil, err
		}
		args, err := unmarshalExprList(w.Args)
		if err != nil {
			return nil, err
		}
		return &FormatPercentExpr{Format: format, Args: args, P: w.P}, nil

	case "LambdaExpr":
		var w struct {
			Params []wireParam     `json:"params"`
			Body   json.RawMessage `json:"body"`
			P      token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		params, err := decodeParams(w.Params)
		if err != nil {
			return nil, err
		}
		body, err := DecodeExpr(w.Body)
		if err != nil {
			return nil, err
		}
		return &LambdaExpr{Params: params, Body: body, P: w.P}, nil

	case "ListCompExpr":
		var w struct {
			Element  json.RawMessage `json:"element"`
			VarName  string          `json:"var_name"`
			Iterable json.RawMessage `json:"iterable"`
			Cond     json.RawMessage `json:"cond"`
			P        token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		element, err := DecodeExpr(w.Element)
		if err != nil {
			return nil, err
		}
		iterable, err := DecodeExpr(w.Iterable)
		if err != nil {
			return nil, err
		}
		cond, err := decodeOptExpr(w.Cond)
		if err != nil {
			return nil, err
		}
		return &ListCompExpr{Element: element, VarName: w.VarName, Iterable: iterable, Cond: cond, P: w.P}, nil

	case "YieldExpr":
		var w struct {
			Value json.RawMessage `json:"value"`
			P     token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		value, err := decodeOptExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &YieldExpr{Value: value, P: w.P}, nil

	case "AwaitExpr":
		var w struct {
			Value json.RawMessage `json:"value"`
			P     token.Position  `json:"pos"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		value, err := DecodeExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &AwaitExpr{Value: value, P: w.P}, nil

	default:
		return nil, fmt.Errorf("ast: unknown expression kind %q", env.Kind)
	}
}

// ---- shared wire shapes for composite, non-interface sub-structures ----

type wireParam struct {
	Name       string          `json:"name"`
	Annotation *TypeAnnotation `json:"annotation"`
}

func decodeParams(ws []wireParam) ([]Param, error) {
	out := make([]Param, len(ws))
	for i, w := range ws {
		out[i] = Param{Name: w.Name, Annotation: w.Annotation}
	}
	return out, nil
}

type wireDecorator struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args"`
	P    token.Position    `json:"pos"`
}

func decodeDecorators(ws []*wireDecorator) ([]*Decorator, error) {
	out := make([]*Decorator, len(ws))
	for i, w := range ws {
		args, err := unmarshalExprList(w.Args)
		if err != nil {
			return nil, err
		}
		out[i] = &Decorator{Name: w.Name, Args: args, P: w.P}
	}
	return out, nil
}

type wireFStringPart struct {
	Literal string          `json:"literal"`
	Expr    json.RawMessage `json:"expr"`
}

// marshalParams/marshalDecorators/marshalFStringParts/marshalExceptHandlers
// build the same lowercase-tagged wire shapes decodeParams/decodeDecorators/
// DecodeExpr's "FStringExpr" case/decodeExceptHandler read back — Param,
// Decorator, ExceptHandler and FStringPart carry no json tags of their
// own, so marshaling them directly (letting encoding/json fall back to
// their Go field names) would round-trip to different keys than the
// decode side expects.

func marshalParams(params []Param) []wireParam {
	out := make([]wireParam, len(params))
	for i, p := range params {
		out[i] = wireParam{Name: p.Name, Annotation: p.Annotation}
	}
	return out
}

func marshalDecorators(ds []*Decorator) ([]wireDecorator, error) {
	out := make([]wireDecorator, len(ds))
	for i, d := range ds {
		args, err := marshalExprList(d.Args)
		if err != nil {
			return nil, err
		}
		out[i] = wireDecorator{Name: d.Name, Args: args, P: d.P}
	}
	return out, nil
}

func marshalFStringParts(parts []FStringPart) ([]wireFStringPart, error) {
	out := make([]wireFStringPart, len(parts))
	for i, p := range parts {
		if p.Expr == nil {
			out[i] = wireFStringPart{Literal: p.Literal}
			continue
		}
		raw, err := json.Marshal(p.Expr)
		if err != nil {
			return nil, err
		}
		out[i] = wireFStringPart{Expr: raw}
	}
	return out, nil
}

func marshalExceptHandlers(hs []*ExceptHandler) []map[string]any {
	out := make([]map[string]any, len(hs))
	for i, h := range hs {
		out[i] = map[string]any{
			"type_name": h.TypeName,
			"var_name":  h.VarName,
			"body":      h.Body,
			"pos":       h.P,
		}
	}
	return out
}

func decodeExceptHandler(raw json.RawMessage) (*ExceptHandler, error) {
	var w struct {
		TypeName string          `json:"type_name"`
		VarName  string          `json:"var_name"`
		Body     json.RawMessage `json:"body"`
		P        token.Position  `json:"pos"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	body, err := decodeOptBlock(w.Body)
	if err != nil {
		return nil, err
	}
	return &ExceptHandler{TypeName: w.TypeName, VarName: w.VarName, Body: body, P: w.P}, nil
}

// ---- MarshalJSON per concrete node, mirroring the DecodeStmt/
// DecodeExpr field names above exactly ----

func (b *BlockStmt) MarshalJSON() ([]byte, error) {
	stmts, err := marshalStmtList(b.Stmts)
	if err != nil {
		return nil, err
	}
	return marshalNode("BlockStmt", map[string]any{"stmts": stmts, "pos": b.P})
}

func (f *FunctionDef) MarshalJSON() ([]byte, error) {
	decorators, err := marshalDecorators(f.Decorators)
	if err != nil {
		return nil, err
	}
	return marshalNode("FunctionDef", map[string]any{
		"name": f.Name, "params": marshalParams(f.Params), "return_type": f.ReturnType,
		"body": f.Body, "decorators": decorators, "pos": f.P,
	})
}

func (c *ClassDef) MarshalJSON() ([]byte, error) {
	return marshalNode("ClassDef", map[string]any{"name": c.Name, "body": c.Body, "pos": c.P})
}

func (s *IfStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("IfStmt", map[string]any{"cond": s.Cond, "then": s.Then, "else": s.Else, "pos": s.P})
}

func (s *WhileStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("WhileStmt", map[string]any{"cond": s.Cond, "body": s.Body, "pos": s.P})
}

func (s *ForStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("ForStmt", map[string]any{"var": s.Var, "iterable": s.Iterable, "body": s.Body, "pos": s.P})
}

func (s *TryStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("TryStmt", map[string]any{
		"body": s.Body, "handlers": marshalExceptHandlers(s.Handlers), "finally": s.Finally, "pos": s.P,
	})
}

func (s *WithStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("WithStmt", map[string]any{"context_expr": s.ContextExpr, "as_var": s.AsVar, "body": s.Body, "pos": s.P})
}

func (s *RaiseStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("RaiseStmt", map[string]any{"exc": s.Exc, "pos": s.P})
}

func (s *ReturnStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("ReturnStmt", map[string]any{"value": s.Value, "pos": s.P})
}

func (s *AssignStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("AssignStmt", map[string]any{"target": s.Target, "value": s.Value, "pos": s.P})
}

func (s *AugAssignStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("AugAssignStmt", map[string]any{"target": s.Target, "op": s.Op, "value": s.Value, "pos": s.P})
}

func (s *ExprStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("ExprStmt", map[string]any{"value": s.Value, "pos": s.P})
}

func (s *ImportStmt) MarshalJSON() ([]byte, error) {
	return marshalNode("ImportStmt", map[string]any{"name": s.Name, "alias": s.Alias, "pos": s.P})
}

func (s *BreakStmt) MarshalJSON() ([]byte, error)    { return marshalNode("BreakStmt", map[string]any{"pos": s.P}) }
func (s *ContinueStmt) MarshalJSON() ([]byte, error) { return marshalNode("ContinueStmt", map[string]any{"pos": s.P}) }
func (s *PassStmt) MarshalJSON() ([]byte, error)     { return marshalNode("PassStmt", map[string]any{"pos": s.P}) }

func (e *Identifier) MarshalJSON() ([]byte, error) {
	return marshalNode("Identifier", map[string]any{"name": e.Name, "pos": e.P})
}
func (e *IntLiteral) MarshalJSON() ([]byte, error) {
	return marshalNode("IntLiteral", map[string]any{"value": e.Value, "pos": e.P})
}
func (e *FloatLiteral) MarshalJSON() ([]byte, error) {
	return marshalNode("FloatLiteral", map[string]any{"value": e.Value, "pos": e.P})
}
func (e *BoolLiteral) MarshalJSON() ([]byte, error) {
	return marshalNode("BoolLiteral", map[string]any{"value": e.Value, "pos": e.P})
}
func (e *StrLiteral) MarshalJSON() ([]byte, error) {
	return marshalNode("StrLiteral", map[string]any{"value": e.Value, "pos": e.P})
}
func (e *BytesLiteral) MarshalJSON() ([]byte, error) {
	return marshalNode("BytesLiteral", map[string]any{"value": e.Value, "pos": e.P})
}
func (e *NoneLiteral) MarshalJSON() ([]byte, error) {
	return marshalNode("NoneLiteral", map[string]any{"pos": e.P})
}

func (e *BinaryExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("BinaryExpr", map[string]any{"op": e.Op, "left": e.Left, "right": e.Right, "pos": e.P})
}
func (e *UnaryExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("UnaryExpr", map[string]any{"op": e.Op, "operand": e.Operand, "pos": e.P})
}
func (e *BoolOpExpr) MarshalJSON() ([]byte, error) {
	operands, err := marshalExprList(e.Operands)
	if err != nil {
		return nil, err
	}
	return marshalNode("BoolOpExpr", map[string]any{"op": e.Op, "operands": operands, "pos": e.P})
}
func (e *CompareExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("CompareExpr", map[string]any{"op": e.Op, "left": e.Left, "right": e.Right, "pos": e.P})
}
func (e *CallExpr) MarshalJSON() ([]byte, error) {
	args, err := marshalExprList(e.Args)
	if err != nil {
		return nil, err
	}
	return marshalNode("CallExpr", map[string]any{"callee": e.Callee, "args": args, "pos": e.P})
}
func (e *AttributeExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("AttributeExpr", map[string]any{"receiver": e.Receiver, "name": e.Name, "pos": e.P})
}
func (e *IndexExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("IndexExpr", map[string]any{"container": e.Container, "index": e.Index, "pos": e.P})
}
func (e *SliceExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("SliceExpr", map[string]any{
		"container": e.Container, "start": e.Start, "stop": e.Stop, "step": e.Step, "pos": e.P,
	})
}
func (e *ListLiteral) MarshalJSON() ([]byte, error) {
	elems, err := marshalExprList(e.Elements)
	if err != nil {
		return nil, err
	}
	return marshalNode("ListLiteral", map[string]any{"elements": elems, "pos": e.P})
}
func (e *DictLiteral) MarshalJSON() ([]byte, error) {
	keys, err := marshalExprList(e.Keys)
	if err != nil {
		return nil, err
	}
	values, err := marshalExprList(e.Values)
	if err != nil {
		return nil, err
	}
	return marshalNode("DictLiteral", map[string]any{"keys": keys, "values": values, "pos": e.P})
}
func (e *TupleLiteral) MarshalJSON() ([]byte, error) {
	elems, err := marshalExprList(e.Elements)
	if err != nil {
		return nil, err
	}
	return marshalNode("TupleLiteral", map[string]any{"elements": elems, "pos": e.P})
}
func (e *FStringExpr) MarshalJSON() ([]byte, error) {
	parts, err := marshalFStringParts(e.Parts)
	if err != nil {
		return nil, err
	}
	return marshalNode("FStringExpr", map[string]any{"parts": parts, "pos": e.P})
}
func (e *FormatPercentExpr) MarshalJSON() ([]byte, error) {
	args, err := marshalExprList(e.Args)
	if err != nil {
		return nil, err
	}
	return marshalNode("FormatPercentExpr", map[string]any{"format": e.Format, "args": args, "pos": e.P})
}
func (e *LambdaExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("LambdaExpr", map[string]any{"params": marshalParams(e.Params), "body": e.Body, "pos": e.P})
}
func (e *ListCompExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("ListCompExpr", map[string]any{
		"element": e.Element, "var_name": e.VarName, "iterable": e.Iterable, "cond": e.Cond, "pos": e.P,
	})
}
func (e *YieldExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("YieldExpr", map[string]any{"value": e.Value, "pos": e.P})
}
func (e *AwaitExpr) MarshalJSON() ([]byte, error) {
	return marshalNode("AwaitExpr", map[string]any{"value": e.Value, "pos": e.P})
}
