package earthengine

import (
	"encoding/json"
	"sort"
	"strconv"
)

type nodeKind int

const (
	kindConstant nodeKind = iota
	kindInvocation
	kindArray
	kindDictionary
	kindFunctionDefinition
	kindArgumentReference
)

// Node is a vertex of a lazily evaluated computation graph. Nodes are
// immutable; every operation returns a new node referencing its inputs.
type Node struct {
	kind     nodeKind
	constant any
	function string
	args     map[string]*Node
	items    []*Node
	argNames []string
	body     *Node
	argRef   string
}

// Constant wraps a JSON-encodable literal.
func Constant(v any) *Node {
	return &Node{kind: kindConstant, constant: v}
}

// Invoke calls a named server-side algorithm. Nil arguments are dropped so
// optional parameters can be passed unconditionally.
func Invoke(function string, args map[string]*Node) *Node {
	clean := make(map[string]*Node, len(args))
	for name, arg := range args {
		if arg != nil {
			clean[name] = arg
		}
	}
	return &Node{kind: kindInvocation, function: function, args: clean}
}

// ArrayOf builds a list value from nodes.
func ArrayOf(items ...*Node) *Node {
	return &Node{kind: kindArray, items: items}
}

// DictionaryOf builds a dictionary value from nodes.
func DictionaryOf(entries map[string]*Node) *Node {
	return &Node{kind: kindDictionary, args: entries}
}

// ArgumentRef references a parameter of an enclosing function definition.
func ArgumentRef(name string) *Node {
	return &Node{kind: kindArgumentReference, argRef: name}
}

// FunctionDef defines an anonymous server-side function, used for mapping
// over collections.
func FunctionDef(argNames []string, body *Node) *Node {
	return &Node{kind: kindFunctionDefinition, argNames: argNames, body: body}
}

// FunctionName returns the invoked algorithm name, or "" for non-invocations.
func (n *Node) FunctionName() string {
	if n == nil || n.kind != kindInvocation {
		return ""
	}
	return n.function
}

// Expression is the wire form of a computation graph: a flat table of values
// with the result identified by key.
type Expression struct {
	Result string                `json:"result"`
	Values map[string]*ValueNode `json:"values"`
}

// ValueNode is one entry of an Expression. Exactly one field is set.
type ValueNode struct {
	ConstantValue           *ConstantValue      `json:"constantValue,omitempty"`
	ValueReference          string              `json:"valueReference,omitempty"`
	ArrayValue              *ArrayValue         `json:"arrayValue,omitempty"`
	DictionaryValue         *DictionaryValue    `json:"dictionaryValue,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
	FunctionDefinitionValue *FunctionDefinition `json:"functionDefinitionValue,omitempty"`
	ArgumentReference       string              `json:"argumentReference,omitempty"`
}

// ConstantValue holds a literal so that zero values (0, false, null) survive
// omitempty on the enclosing ValueNode.
type ConstantValue struct {
	Value any
}

// MarshalJSON encodes the wrapped literal.
func (c ConstantValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value)
}

// UnmarshalJSON decodes the wrapped literal.
func (c *ConstantValue) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.Value)
}

// ArrayValue is a list of values.
type ArrayValue struct {
	Values []*ValueNode `json:"values"`
}

// DictionaryValue is a map of values.
type DictionaryValue struct {
	Values map[string]*ValueNode `json:"values"`
}

// FunctionInvocation calls a named algorithm with named arguments.
type FunctionInvocation struct {
	FunctionName string                `json:"functionName"`
	Arguments    map[string]*ValueNode `json:"arguments"`
}

// FunctionDefinition declares an anonymous function whose body is a key in
// the enclosing Expression's value table.
type FunctionDefinition struct {
	ArgumentNames []string `json:"argumentNames"`
	Body          string   `json:"body"`
}

// Serialize flattens a graph into an Expression. Identical sub-graphs are
// emitted once, so a graph that reuses an intermediate image does not ship it
// twice.
func Serialize(root *Node) *Expression {
	s := &serializer{
		values: make(map[string]*ValueNode),
		byKey:  make(map[string]string),
	}

	ref := s.encode(root)
	result := ref.ValueReference
	if result == "" {
		result = s.intern(ref)
	}

	return &Expression{
		Result: result,
		Values: s.values,
	}
}

type serializer struct {
	values map[string]*ValueNode
	byKey  map[string]string
}

// encode returns either an inline value (constants, argument references) or a
// reference to an interned table entry.
func (s *serializer) encode(n *Node) *ValueNode {
	if n == nil {
		return &ValueNode{ConstantValue: &ConstantValue{Value: nil}}
	}

	switch n.kind {
	case kindConstant:
		return &ValueNode{ConstantValue: &ConstantValue{Value: n.constant}}

	case kindArgumentReference:
		return &ValueNode{ArgumentReference: n.argRef}

	case kindArray:
		values := make([]*ValueNode, len(n.items))
		for i, item := range n.items {
			values[i] = s.encode(item)
		}
		return s.reference(&ValueNode{ArrayValue: &ArrayValue{Values: values}})

	case kindDictionary:
		return s.reference(&ValueNode{DictionaryValue: &DictionaryValue{Values: s.encodeArgs(n.args)}})

	case kindFunctionDefinition:
		body := s.encode(n.body)
		bodyRef := body.ValueReference
		if bodyRef == "" {
			bodyRef = s.intern(body)
		}
		return &ValueNode{FunctionDefinitionValue: &FunctionDefinition{
			ArgumentNames: n.argNames,
			Body:          bodyRef,
		}}

	default:
		return s.reference(&ValueNode{FunctionInvocationValue: &FunctionInvocation{
			FunctionName: n.function,
			Arguments:    s.encodeArgs(n.args),
		}})
	}
}

func (s *serializer) encodeArgs(args map[string]*Node) map[string]*ValueNode {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]*ValueNode, len(args))
	for _, name := range names {
		out[name] = s.encode(args[name])
	}
	return out
}

func (s *serializer) reference(v *ValueNode) *ValueNode {
	return &ValueNode{ValueReference: s.intern(v)}
}

func (s *serializer) intern(v *ValueNode) string {
	key, err := json.Marshal(v)
	if err != nil {
		// Unencodable constants still get their own slot; the API rejects them.
		key = []byte(strconv.Itoa(len(s.values)) + ":unencodable")
	}
	if id, ok := s.byKey[string(key)]; ok {
		return id
	}

	id := strconv.Itoa(len(s.values))
	s.values[id] = v
	s.byKey[string(key)] = id
	return id
}

// Lookup resolves a value reference inside the expression, returning v itself
// when it is not a reference.
func (e *Expression) Lookup(v *ValueNode) *ValueNode {
	for v != nil && v.ValueReference != "" {
		v = e.Values[v.ValueReference]
	}
	return v
}

// Root returns the result value of the expression.
func (e *Expression) Root() *ValueNode {
	return e.Values[e.Result]
}

// FunctionNames returns every algorithm invoked anywhere in the expression,
// sorted and de-duplicated.
func (e *Expression) FunctionNames() []string {
	seen := make(map[string]bool)
	for _, v := range e.Values {
		if v.FunctionInvocationValue != nil {
			seen[v.FunctionInvocationValue.FunctionName] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invocations returns all invocations of the named algorithm.
func (e *Expression) Invocations(function string) []*FunctionInvocation {
	var out []*FunctionInvocation
	keys := make([]string, 0, len(e.Values))
	for key := range e.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := e.Values[key]
		if v.FunctionInvocationValue != nil && v.FunctionInvocationValue.FunctionName == function {
			out = append(out, v.FunctionInvocationValue)
		}
	}
	return out
}
