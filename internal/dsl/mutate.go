package dsl

// SetNewElement appends child to e as a pending addition.
func (e *Element) SetNewElement(child *Element) *Element {
	e.mustBeWritable()
	return e.insertNew(child, len(e.children))
}

// AddNewElementAt inserts child before the index-th visible child of e.
func (e *Element) AddNewElementAt(index int, child *Element) *Element {
	e.mustBeWritable()
	visible := 0
	raw := len(e.children)
	for i, c := range e.children {
		if c.state == StateToBeRemoved {
			continue
		}
		if visible == index {
			raw = i
			break
		}
		visible++
	}
	return e.insertNew(child, raw)
}

func (e *Element) insertNew(child *Element, index int) *Element {
	if child.parent != nil {
		panic("dsl: element " + child.Name + " already has a parent")
	}
	if e.Kind == KindList || e.Kind == KindMethodCall || (e.Kind == KindMap && child.Syntax != SyntaxEntry) {
		if e.Kind == KindMap {
			child.Syntax = SyntaxEntry
		} else if child.Syntax != SyntaxEntry {
			child.Syntax = SyntaxArgument
		}
	}
	child.markAdded()
	e.attach(child, index)
	e.markDirty()
	return child
}

func (e *Element) markAdded() {
	e.state = StateToBeAdded
	e.src = nil
	for _, c := range e.children {
		c.markAdded()
	}
	for _, a := range e.Args {
		a.markAdded()
	}
	for _, c := range e.Chain {
		c.markAdded()
	}
}

// SetNewLiteral sets name to v. An existing writable literal is updated in
// place; an inherited or applied one is shadowed by a new element in e.
func (e *Element) SetNewLiteral(name string, v Value) *Element {
	e.mustBeWritable()
	if old := e.PropertyElement(name); old != nil && !old.IsReadOnly() {
		if lit := old.SingleValue(); lit != nil {
			lit.SetValue(v)
			return lit
		}
	}
	lit := NewLiteral(name, v)
	lit.Syntax = SyntaxAssignment
	return e.insertNew(lit, len(e.children))
}

// AddToNewLiteralList appends v to the list property name, creating the
// list when absent. A single literal value is turned into a list holding
// the old and new values.
func (e *Element) AddToNewLiteralList(name string, v Value) *Element {
	e.mustBeWritable()
	item := NewLiteral("", v)
	item.Syntax = SyntaxArgument
	switch old := e.PropertyElement(name); {
	case old != nil && !old.IsReadOnly() && (old.Kind == KindList || old.Kind == KindMethodCall):
		return old.insertNew(item, len(old.children))
	case old != nil && !old.IsReadOnly() && old.Kind == KindLiteral && old.Value.Type != ValueNone:
		list := NewList(name, old.Value, v)
		list.Syntax = SyntaxAssignment
		index := indexOf(e.children, old) + 1
		old.Remove()
		if old.parent == nil {
			index--
		}
		e.insertNew(list, index)
		return list.children[1]
	}
	list := NewList(name)
	list.Syntax = SyntaxAssignment
	e.insertNew(list, len(e.children))
	return list.insertNew(item, 0)
}

// RemoveProperty removes every writable property called name and reports
// how many were removed. Inherited and applied copies are left alone.
func (e *Element) RemoveProperty(name string) int {
	n := 0
	for _, c := range e.PropertyElements(name) {
		if c.IsReadOnly() {
			continue
		}
		c.Remove()
		n++
	}
	return n
}

// RemoveFromExpressionList removes the first item of the list or call
// named name whose value text equals v.
func (e *Element) RemoveFromExpressionList(name string, v Value) bool {
	list := e.PropertyElement(name, KindList, KindMethodCall)
	if list == nil {
		return false
	}
	for _, item := range list.Children() {
		if item.Kind == KindLiteral && item.Value.Text == v.Text {
			item.Remove()
			return true
		}
	}
	return false
}

// ReplaceInExpressionList replaces the first item of the list or call
// named name whose value text equals old. It reports whether an item was
// replaced.
func (e *Element) ReplaceInExpressionList(name string, old, v Value) bool {
	list := e.PropertyElement(name, KindList, KindMethodCall)
	if list == nil {
		if lit := e.PropertyElement(name, KindLiteral); lit != nil && lit.Value.Text == old.Text {
			lit.SetValue(v)
			return true
		}
		return false
	}
	for _, item := range list.Children() {
		if item.Kind == KindLiteral && item.Value.Text == old.Text {
			item.SetValue(v)
			return true
		}
	}
	return false
}

// SetChainValue sets the command-chain continuation name of e, e.g. the
// version of `id 'x' version '1'`, appending it when absent.
func (e *Element) SetChainValue(name string, v Value) *Element {
	e.mustBeWritable()
	if c := e.ChainValue(name); c != nil {
		c.SetValue(v)
		return c
	}
	c := NewLiteral(name, v)
	c.Syntax = SyntaxApplication
	c.parent = e
	c.file = e.file
	c.state = StateToBeAdded
	e.Chain = append(e.Chain, c)
	e.markDirty()
	return c
}
