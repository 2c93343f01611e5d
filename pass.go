package callident

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maxgio92/callident/internal/logfields"
)

// Option configures a Pass.
type Option func(*Pass)

// WithParallelism sets how many functions are classified concurrently.
// Values lower than 1 are treated as 1.
func WithParallelism(n int) Option {
	return func(p *Pass) {
		p.parallelism = max(n, 1)
	}
}

// WithLogger replaces the package logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pass) {
		p.log = l
	}
}

// Pass identifies function calls in a lifted module and builds its filtered
// CFG. The results of the last successful Run stay valid until the next Run.
type Pass struct {
	parallelism int
	log         logrus.FieldLogger

	recognizer   recognizer
	fallthroughs *FallthroughIndex
	cfg          *FilteredCFG
}

// NewPass returns a pass that has not run yet.
func NewPass(opts ...Option) *Pass {
	p := &Pass{
		parallelism: 1,
		log:         log,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.reset()
	return p
}

func (p *Pass) reset() {
	p.recognizer = recognizer{}
	p.fallthroughs = NewFallthroughIndex(false)
	p.cfg = nil
}

// Run discards the results of any previous run and analyzes m. When an
// error is returned no partial result is kept.
func (p *Pass) Run(m *Module) error {
	p.reset()

	functionCall, err := m.FunctionCallSymbol()
	if err != nil {
		return fmt.Errorf("failed to identify function calls: %w", err)
	}

	rec := recognizer{functionCall: functionCall}
	index := NewFallthroughIndex(p.parallelism > 1)
	frags := make([]*fragment, len(m.Functions))

	var workers errgroup.Group
	workers.SetLimit(p.parallelism)
	for i, fn := range m.Functions {
		i, fn := i, fn
		workers.Go(func() error {
			frag, err := rec.buildFilteredCFG(fn, index)
			if err != nil {
				return err
			}
			frags[i] = frag

			p.log.WithFields(logrus.Fields{
				logfields.Function: fn.Name,
				logfields.Blocks:   len(fn.Blocks),
				logfields.Calls:    len(frag.calls),
			}).Debug("Built filtered CFG")
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return fmt.Errorf("failed to identify function calls: %w", err)
	}

	cfg := newFilteredCFG()
	for _, frag := range frags {
		cfg.merge(frag)
	}

	p.recognizer = rec
	p.fallthroughs = index
	p.cfg = cfg

	p.log.WithFields(logrus.Fields{
		logfields.Functions:    len(m.Functions),
		logfields.Calls:        len(cfg.CallSites()),
		logfields.Fallthroughs: index.Len(),
		logfields.Workers:      p.parallelism,
	}).Debug("Function call identification completed")

	return nil
}

// GetCall returns the function call marker of terminator t, or nil when t
// is not call-like. It panics if t is not a terminator.
func (p *Pass) GetCall(t *Instruction) *Instruction {
	return p.recognizer.getCall(t)
}

// GetCallOf returns the function call marker of the terminator of b.
func (p *Pass) GetCallOf(b *BasicBlock) *Instruction {
	return p.GetCall(b.Terminator())
}

// IsCall reports whether terminator t is a function call.
func (p *Pass) IsCall(t *Instruction) bool {
	return p.GetCall(t) != nil
}

// IsCallBlock reports whether b ends with a function call.
func (p *Pass) IsCallBlock(b *BasicBlock) bool {
	return p.IsCall(b.Terminator())
}

// GetFallthrough returns the block execution resumes at after the call
// ending with t returns. It panics if t is not call-like; check IsCall
// first.
func (p *Pass) GetFallthrough(t *Instruction) *BasicBlock {
	return p.recognizer.fallthroughOf(t)
}

// GetFallthroughOf is GetFallthrough for the terminator of b.
func (p *Pass) GetFallthroughOf(b *BasicBlock) *BasicBlock {
	return p.GetFallthrough(b.Terminator())
}

// IsFallthrough reports whether addr is the return site of some call.
func (p *Pass) IsFallthrough(addr MetaAddress) bool {
	return p.fallthroughs.Contains(addr)
}

// IsFallthroughBlock reports whether b starts at a return site.
func (p *Pass) IsFallthroughBlock(b *BasicBlock) bool {
	return p.fallthroughs.ContainsBlock(b)
}

// IsFallthroughTerminator reports whether the block ending with t starts at
// a return site.
func (p *Pass) IsFallthroughTerminator(t *Instruction) bool {
	return p.fallthroughs.ContainsTerminator(t)
}

// FallthroughAddresses returns every return site found by the last run, in
// ascending order.
func (p *Pass) FallthroughAddresses() []MetaAddress {
	return p.fallthroughs.Addresses()
}

// FindPostDominatedCall returns the function call marker b is reached from
// along a chain of single predecessors, b included. It returns nil as soon
// as a block without a marker has zero or several predecessors.
func (p *Pass) FindPostDominatedCall(b *BasicBlock) *Instruction {
	return p.recognizer.findPostDominatedCall(b)
}

// CFG returns the filtered CFG of the last successful run, or nil.
func (p *Pass) CFG() *FilteredCFG {
	return p.cfg
}
