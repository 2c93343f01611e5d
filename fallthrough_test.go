package callident_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/maxgio92/callident"
)

func TestFallthroughIndex(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		x := callident.NewFallthroughIndex(concurrent)

		for _, addr := range []callident.MetaAddress{0x30, 0x10, 0x20, 0x10} {
			x.Register(addr)
		}

		if got := x.Len(); got != 3 {
			t.Errorf("concurrent=%v: expected 3 addresses, got %d", concurrent, got)
		}
		if diff := cmp.Diff([]callident.MetaAddress{0x10, 0x20, 0x30}, x.Addresses()); diff != "" {
			t.Errorf("concurrent=%v: unexpected addresses (-want +got):\n%s", concurrent, diff)
		}
		if !x.Contains(0x20) || x.Contains(0x21) {
			t.Errorf("concurrent=%v: unexpected membership", concurrent)
		}
	}
}

func TestFallthroughIndex_Blocks(t *testing.T) {
	f := newFixture()
	hit := f.fn.NewBlock(0x10)
	miss := f.fn.NewBlock(0x20)
	ret := hit.Return()
	miss.Return()

	x := callident.NewFallthroughIndex(false)
	x.Register(0x10)

	if !x.ContainsBlock(hit) || !x.ContainsTerminator(ret) {
		t.Errorf("expected %s to be indexed", hit)
	}
	if x.ContainsBlock(miss) {
		t.Errorf("expected %s not to be indexed", miss)
	}
}

func TestFallthroughIndex_ConcurrentRegister(t *testing.T) {
	x := callident.NewFallthroughIndex(true)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				// Every worker registers the same even addresses and its own
				// odd ones.
				x.Register(callident.MetaAddress(2 * i))
				x.Register(callident.MetaAddress(1000*w + 2*i + 1))
			}
		}()
	}
	wg.Wait()

	if got, want := x.Len(), 100+8*100; got != want {
		t.Errorf("expected %d addresses, got %d", want, got)
	}
}
