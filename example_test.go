package callident_test

import (
	"fmt"

	"github.com/maxgio92/callident"
)

func ExamplePass() {
	m := callident.NewModule()
	functionCall := m.Declare("function_call", callident.MarkerFunctionCall)
	fn := m.NewFunction("root")

	caller := fn.NewBlock(0x1000)
	callee := fn.NewBlock(0x2000)
	next := fn.NewBlock(0x1005)

	caller.Mark(functionCall,
		callident.BlockAddress{Block: callee},
		callident.BlockAddress{Block: next},
		callident.Const{Value: 0x1005})
	caller.Branch(callee)
	callee.Return(next)
	next.Return()

	p := callident.NewPass()
	if err := p.Run(m); err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(p.IsCallBlock(caller), p.GetFallthroughOf(caller))
	fmt.Println(p.FallthroughAddresses())
	for _, e := range p.CFG().Edges() {
		fmt.Println(e)
	}
	// Output:
	// true bb.0x1005
	// [0x1005]
	// bb.0x1000 -> bb.0x2000 [call]
	// bb.0x1000 -> bb.0x1005 [fallthrough]
	// bb.0x2000 -> bb.0x1005 [return]
}
