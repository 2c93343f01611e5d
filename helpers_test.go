package callident_test

import (
	"testing"

	"github.com/maxgio92/callident"
)

// fixture is a module declaring the usual marker symbols plus an ordinary
// helper.
type fixture struct {
	m      *callident.Module
	fn     *callident.Function
	call   *callident.Symbol
	newPC  *callident.Symbol
	exitTB *callident.Symbol
	helper *callident.Symbol
}

func newFixture() *fixture {
	m := callident.NewModule()
	return &fixture{
		m:      m,
		fn:     m.NewFunction("root"),
		call:   m.Declare("function_call", callident.MarkerFunctionCall),
		newPC:  m.Declare("newpc", callident.MarkerNewPC),
		exitTB: m.Declare("exitTB", callident.MarkerExitTB),
		helper: m.Declare("helper_raise", callident.MarkerNone),
	}
}

// markCall appends a function call marker to b.
func (f *fixture) markCall(b, callee, next *callident.BasicBlock, ret uint64) *callident.Instruction {
	return b.Mark(f.call,
		callident.BlockAddress{Block: callee},
		callident.BlockAddress{Block: next},
		callident.Const{Value: ret})
}

// markNewPC appends a newpc marker for the instruction at addr to b.
func (f *fixture) markNewPC(b *callident.BasicBlock, addr uint64) *callident.Instruction {
	return b.Mark(f.newPC, callident.Const{Value: addr}, callident.Const{Value: 1})
}

func run(t *testing.T, m *callident.Module, opts ...callident.Option) *callident.Pass {
	t.Helper()
	p := callident.NewPass(opts...)
	if err := p.Run(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected a panic", name)
		}
	}()
	fn()
}

// starts returns the start addresses of bs.
func starts(bs []*callident.BasicBlock) []callident.MetaAddress {
	var result []callident.MetaAddress
	for _, b := range bs {
		result = append(result, b.Start)
	}
	return result
}

// edgeStrings renders edges for comparison.
func edgeStrings(edges []callident.Edge) []string {
	var result []string
	for _, e := range edges {
		result = append(result, e.String())
	}
	return result
}
