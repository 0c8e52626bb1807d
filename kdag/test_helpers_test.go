package kdag

import (
	"reflect"
)

// mockBuilder implements RuntimeBuilder for testing
type mockBuilder struct {
	kind NodeType
}

func (m *mockBuilder) BuilderKind() NodeType {
	return m.kind
}

var (
	stringType = reflect.TypeFor[string]()
	intType    = reflect.TypeFor[int]()
)

func registerTestSource(b *Builder, name string) error {
	return b.AddSourceNode(name, stringType, &mockBuilder{kind: NodeTypeSource})
}

func registerTestOperator(b *Builder, name string, parents ...string) error {
	return b.AddOperatorNode(OperatorSpec{
		Name:       name,
		Parents:    parents,
		InputType:  stringType,
		OutputType: stringType,
		Builder:    &mockBuilder{kind: NodeTypeOperator},
	})
}

func registerTestSink(b *Builder, name, parent string) error {
	return b.AddSinkNode(name, parent, stringType, &mockBuilder{kind: NodeTypeSink})
}
