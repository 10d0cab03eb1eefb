package compiler

// ---------------------------------------------------------------------------
// Region and ownership analysis
// ---------------------------------------------------------------------------

// checkRegions assigns a region to every binding and enforces the ownership
// rules: no use after @free, no double @free, and no unsynchronized mutation
// of captured bindings inside parallel constructs. Regions are numbered in
// the order their blocks are entered, which makes the assignment a pure
// function of the AST.
func (c *Checker) checkRegions() {
	for _, def := range c.Funcs() {
		if def.Decl.Body == nil {
			continue
		}
		w := &regionWalker{c: c, freed: make(map[*Symbol]Span)}
		for i := range def.Decl.Params {
			if sym := c.Defs[&def.Decl.Params[i]]; sym != nil {
				sym.Region = 0
			}
		}
		w.block(def.Decl.Body)
	}
}

type regionWalker struct {
	c     *Checker
	next  int // next region id; the function body is region 0
	freed map[*Symbol]Span

	// parallelAt is the region id current when the innermost parallel
	// construct was entered, or -1 outside one.
	parallelAt int
	inParallel bool
}

func (w *regionWalker) block(b *BlockExpr) {
	region := w.next
	w.next++
	for _, s := range b.Stmts {
		w.stmt(s, region)
	}
	if b.Tail != nil {
		w.expr(b.Tail)
	}
}

func (w *regionWalker) stmt(s Stmt, region int) {
	switch n := s.(type) {
	case *LetStmt:
		w.expr(n.Value)
		if sym := w.c.Defs[n]; sym != nil {
			sym.Region = region
		}

	case *AssignStmt:
		w.expr(n.Value)
		w.expr(n.Target)
		w.checkAssignTarget(n)

	case *ExprStmt:
		w.expr(n.Expr)

	case *ForStmt:
		w.expr(n.Iter)
		if sym := w.c.Defs[n]; sym != nil {
			sym.Region = w.next
		}
		if hasAttr(n.Attrs, AttrParallel) {
			w.enterParallel(func() { w.block(n.Body) })
		} else {
			w.block(n.Body)
		}

	case *WhileStmt:
		w.expr(n.Cond)
		w.block(n.Body)

	case *LoopStmt:
		w.block(n.Body)

	case *ReturnStmt:
		if n.Value != nil {
			w.expr(n.Value)
		}

	case *FreeStmt:
		sym := w.c.Defs[n]
		if sym == nil {
			return
		}
		if prev, done := w.freed[sym]; done {
			w.c.diags.Addf(CategoryOwnership, CodeDoubleFree, n.SpanVal,
				"%s was already freed at %d:%d", sym.Name, prev.Start.Line, prev.Start.Column)
			return
		}
		w.freed[sym] = n.SpanVal
	}
}

func (w *regionWalker) enterParallel(body func()) {
	prevIn, prevAt := w.inParallel, w.parallelAt
	w.inParallel = true
	w.parallelAt = w.next
	body()
	w.inParallel, w.parallelAt = prevIn, prevAt
}

// checkAssignTarget rejects writes to bindings captured from outside a
// parallel construct unless the binding is @atomic, or the write goes
// through an element or field of a @pinned binding.
func (w *regionWalker) checkAssignTarget(n *AssignStmt) {
	if !w.inParallel {
		return
	}
	sym := rootSymbol(w.c, n.Target)
	if sym == nil || sym.Kind != SymVar {
		return
	}
	// Bindings created inside the parallel body are worker-local.
	if sym.Region >= w.parallelAt {
		return
	}
	if hasAttr(sym.Attrs, AttrAtomic) {
		return
	}
	// Pinned storage outlives every scope in the dispatch, so workers may
	// fill disjoint parts of it. Rebinding the name itself stays rejected.
	if _, direct := n.Target.(*Ident); !direct && hasAttr(sym.Attrs, AttrPinned) {
		return
	}
	w.c.diags.Addf(CategoryOwnership, CodeSharedMutable, n.SpanVal,
		"%s is shared across parallel iterations; mark it @atomic or make it loop-local", sym.Name)
}

// rootSymbol finds the binding behind an lvalue chain.
func rootSymbol(c *Checker, e Expr) *Symbol {
	for {
		switch n := e.(type) {
		case *Ident:
			return c.Uses[n]
		case *Index:
			e = n.Target
		case *Field:
			e = n.Target
		default:
			return nil
		}
	}
}

func (w *regionWalker) expr(e Expr) {
	switch n := e.(type) {
	case *Ident:
		sym := w.c.Uses[n]
		if sym == nil {
			return
		}
		if span, done := w.freed[sym]; done {
			w.c.diags.Addf(CategoryOwnership, CodeUseAfterRegionEnd, n.SpanVal,
				"%s was freed at %d:%d and cannot be used", sym.Name, span.Start.Line, span.Start.Column)
		}

	case *StringLit:
		for _, part := range n.Parts {
			if part.Expr != nil {
				w.expr(part.Expr)
			}
		}

	case *ArrayLit:
		for _, el := range n.Elements {
			w.expr(el)
		}

	case *Unary:
		w.expr(n.Operand)

	case *Binary:
		w.expr(n.Left)
		w.expr(n.Right)

	case *Call:
		w.call(n)

	case *Index:
		w.expr(n.Target)
		w.expr(n.Idx)

	case *Field:
		w.expr(n.Target)

	case *StructLit:
		for _, f := range n.Fields {
			w.expr(f.Value)
		}

	case *Closure:
		for i := range n.Params {
			if sym := w.c.Defs[&n.Params[i]]; sym != nil {
				sym.Region = w.next
			}
		}
		if b, ok := n.Body.(*BlockExpr); ok {
			w.block(b)
		} else {
			w.next++
			w.expr(n.Body)
		}

	case *If:
		w.expr(n.Cond)
		w.block(n.Then)
		switch el := n.Else.(type) {
		case *BlockExpr:
			w.block(el)
		case Expr:
			if el != nil {
				w.expr(el)
			}
		}

	case *Match:
		w.expr(n.Subject)
		for i := range n.Arms {
			w.expr(n.Arms[i].Body)
		}

	case *BlockExpr:
		w.block(n)
	}
}

// call walks a call, entering a parallel context for closures handed to
// parallel.for/map/reduce.
func (w *regionWalker) call(n *Call) {
	if field, ok := n.Callee.(*Field); ok {
		if id, isIdent := field.Target.(*Ident); isIdent {
			if sym := w.c.Uses[id]; sym != nil && sym.Kind == SymBuiltin && id.Name == "parallel" {
				for i, a := range n.Args {
					if _, isClosure := a.(*Closure); isClosure && i == len(n.Args)-1 {
						w.enterParallel(func() { w.expr(a) })
					} else {
						w.expr(a)
					}
				}
				return
			}
		}
		w.expr(field.Target)
	} else {
		w.expr(n.Callee)
	}
	for _, a := range n.Args {
		w.expr(a)
	}
}
