package dsl

// PropertyElement returns the last non-removed property called name whose
// kind is one of kinds (any kind when none are given). Local variables are
// not properties. Returns nil when absent or of another kind.
func (e *Element) PropertyElement(name string, kinds ...Kind) *Element {
	for i := len(e.children) - 1; i >= 0; i-- {
		c := e.children[i]
		if c.Name != name || c.Variable || c.state == StateToBeRemoved {
			continue
		}
		if len(kinds) == 0 {
			return c
		}
		for _, k := range kinds {
			if c.Kind == k {
				return c
			}
		}
		return nil
	}
	return nil
}

// PropertyElements returns every non-removed property called name, in
// order.
func (e *Element) PropertyElements(name string) []*Element {
	var out []*Element
	for _, c := range e.children {
		if c.Name == name && !c.Variable && c.state != StateToBeRemoved {
			out = append(out, c)
		}
	}
	return out
}

// Block returns the last block called name, or nil.
func (e *Element) Block(name string) *Element {
	return e.PropertyElement(name, KindBlock)
}

// Blocks returns every block called name, in order.
func (e *Element) Blocks(name string) []*Element {
	var out []*Element
	for _, c := range e.PropertyElements(name) {
		if c.Kind == KindBlock {
			out = append(out, c)
		}
	}
	return out
}

// Properties returns the named, non-variable children in order. Opaque
// statements are skipped.
func (e *Element) Properties() []*Element {
	var out []*Element
	for _, c := range e.children {
		if c.Name == "" || c.Variable || c.state == StateToBeRemoved {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Variables returns the def/val/var locals declared directly in e.
func (e *Element) Variables() []*Element {
	var out []*Element
	for _, c := range e.children {
		if c.Variable && c.state != StateToBeRemoved {
			out = append(out, c)
		}
	}
	return out
}

// Entry returns the last map entry or named argument called name.
func (e *Element) Entry(name string) *Element {
	for i := len(e.children) - 1; i >= 0; i-- {
		c := e.children[i]
		if c.Name == name && c.Syntax == SyntaxEntry && c.state != StateToBeRemoved {
			return c
		}
	}
	return nil
}

// Arguments returns the positional arguments of a call or the items of a
// list.
func (e *Element) Arguments() []*Element {
	var out []*Element
	for _, c := range e.Children() {
		if c.Syntax != SyntaxEntry {
			out = append(out, c)
		}
	}
	return out
}

// ChainValue returns the command-chain continuation called name, e.g.
// "version" for `id 'x' version '1'`.
func (e *Element) ChainValue(name string) *Element {
	for i := len(e.Chain) - 1; i >= 0; i-- {
		if c := e.Chain[i]; c.Name == name && c.state != StateToBeRemoved {
			return c
		}
	}
	return nil
}

// SingleValue returns the literal carried by e: e itself for a literal, or
// the sole argument of `name(value)` and `name = call(value)`. Returns nil
// for anything else.
func (e *Element) SingleValue() *Element {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindLiteral:
		if e.Value.Type == ValueNone {
			return nil
		}
		return e
	case KindMethodCall:
		args := e.Children()
		if len(args) == 1 && args[0].Kind == KindLiteral && args[0].Syntax != SyntaxEntry {
			return args[0]
		}
	}
	return nil
}

// CallName returns the callee of a call value: "project" for
// `project(':a')`, for `implementation project(':a')` and for the named
// wrapper `dir = project(':a')`.
func (e *Element) CallName() string {
	if e == nil || e.Kind != KindMethodCall {
		return ""
	}
	if e.Syntax != SyntaxArgument {
		if args := e.Children(); len(args) == 1 && args[0].Kind == KindMethodCall {
			return args[0].CallName()
		}
		if e.Syntax != SyntaxCall {
			return ""
		}
	}
	return e.Name
}

// Walk visits e and its descendants depth first. Return false to skip a
// subtree.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children() {
		c.Walk(fn)
	}
}
