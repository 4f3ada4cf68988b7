package dsl

import (
	"errors"
	"strings"
)

// ErrUnresolved is returned when no file in the lookup chain defines a
// referenced name. The accompanying value is the best partial result.
var ErrUnresolved = errors.New("unresolved reference")

// maxResolveDepth bounds reference chains (a = b, b = c, ...).
const maxResolveDepth = 16

// resolver carries the state of one resolution.
type resolver struct {
	depth   int
	exclude *Element
}

// Resolve returns the value of a literal with references and templates
// substituted. On failure it returns the partially resolved value together
// with ErrUnresolved.
func (e *Element) Resolve() (Value, error) {
	r := &resolver{}
	return r.value(e)
}

// ResolveReference looks up ref as seen from scope: local scope upward, the
// sibling properties file, then the parent module, first match wins.
// Reference chains are followed to the defining element.
func ResolveReference(scope *Element, ref string) (*Element, error) {
	r := &resolver{}
	target := r.lookup(scope, nil, ref)
	if target == nil {
		return nil, ErrUnresolved
	}
	return r.follow(target)
}

// ResolveValue is ResolveReference followed by Resolve on the target.
func ResolveValue(scope *Element, ref string) (Value, error) {
	r := &resolver{}
	if v, ok := r.catalog(scope, ref); ok {
		return v, nil
	}
	target := r.lookup(scope, nil, ref)
	if target == nil {
		return Value{Type: ValueReference, Raw: ref, Text: ref}, ErrUnresolved
	}
	return r.value(target)
}

func (r *resolver) follow(e *Element) (*Element, error) {
	for e.Kind == KindLiteral && e.Value.Type == ValueReference {
		r.depth++
		if r.depth > maxResolveDepth {
			return e, ErrUnresolved
		}
		r.exclude = e
		next := r.lookup(e.scope(), e, e.Value.Text)
		if next == nil {
			return e, ErrUnresolved
		}
		e = next
	}
	return e, nil
}

func (r *resolver) value(e *Element) (Value, error) {
	if e.Kind != KindLiteral {
		if lit := e.SingleValue(); lit != nil && lit != e {
			return r.value(lit)
		}
		return Value{}, ErrUnresolved
	}
	switch e.Value.Type {
	case ValueReference:
		r.depth++
		if r.depth > maxResolveDepth {
			return e.Value, ErrUnresolved
		}
		if v, ok := r.catalog(e, e.Value.Text); ok {
			return v, nil
		}
		prev := r.exclude
		r.exclude = e
		target := r.lookup(e.scope(), e, e.Value.Text)
		r.exclude = prev
		if target == nil {
			return e.Value, ErrUnresolved
		}
		return r.value(target)
	case ValueInterpolated:
		return r.interpolate(e, e.Value.Text)
	}
	return e.Value, nil
}

// scope is where lookups for a literal's references start.
func (e *Element) scope() *Element {
	p := e.parent
	// named arguments, list items and chain values look up from the
	// enclosing statement's container
	for p != nil && p.Kind != KindBlock {
		p = p.parent
	}
	if p == nil {
		return e
	}
	return p
}

// interpolate substitutes $name and ${expr} templates in a string body.
func (r *resolver) interpolate(e *Element, body string) (Value, error) {
	var b strings.Builder
	var failed bool
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			b.WriteString(unescape(body[i : i+2]))
			i++
			continue
		}
		if c != '$' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}

		var ref string
		var end int
		if body[i+1] == '{' {
			rb := strings.IndexByte(body[i+2:], '}')
			if rb < 0 {
				b.WriteString(body[i:])
				failed = true
				break
			}
			ref = strings.TrimSpace(body[i+2 : i+2+rb])
			end = i + 2 + rb + 1
		} else {
			j := i + 1
			for j < len(body) && (isIdentPart(body[j]) && body[j] != '$' || (body[j] == '.' && j+1 < len(body) && isIdentStart(body[j+1]))) {
				j++
			}
			if j == i+1 {
				b.WriteByte(c)
				continue
			}
			ref = body[i+1 : j]
			end = j
		}

		v, err := r.resolveText(e, ref)
		if err != nil {
			b.WriteString(body[i:end])
			failed = true
		} else {
			b.WriteString(v.Text)
		}
		i = end - 1
	}
	if failed {
		return Value{Type: ValueInterpolated, Raw: e.Value.Raw, Text: b.String()}, ErrUnresolved
	}
	return Value{Type: ValueString, Text: b.String()}, nil
}

func (r *resolver) resolveText(e *Element, ref string) (Value, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > maxResolveDepth {
		return Value{}, ErrUnresolved
	}
	if v, ok := r.catalog(e, ref); ok {
		return v, nil
	}
	target := r.lookup(e.scope(), e, ref)
	if target == nil {
		return Value{}, ErrUnresolved
	}
	return r.value(target)
}

func (r *resolver) catalog(e *Element, ref string) (Value, bool) {
	if !strings.HasPrefix(ref, "libs.") || e == nil || e.file == nil || e.file.arena == nil {
		return Value{}, false
	}
	if c := e.file.arena.Catalog; c != nil {
		return c.Lookup(ref)
	}
	return Value{}, false
}

// lookup finds the element ref names as seen from scope. When from is the
// referencing element, definitions in its own file count only if they are
// written before it.
func (r *resolver) lookup(scope, from *Element, ref string) *Element {
	if scope == nil || scope.file == nil {
		return nil
	}
	f := scope.file
	parts := strings.Split(ref, ".")

	if parts[0] == "rootProject" {
		top := f
		seen := map[*File]bool{f: true}
		for p := top.ParentModule(); p != nil && !seen[p]; p = p.ParentModule() {
			seen[p] = true
			top = p
		}
		parts = stripPrefixes(parts[1:])
		if len(parts) == 0 {
			return nil
		}
		return r.inFileChain(top, top.root, nil, parts, map[*File]bool{})
	}
	parts = stripPrefixes(parts)
	if len(parts) == 0 {
		return nil
	}
	return r.inFileChain(f, scope, from, parts, map[*File]bool{})
}

// inFileChain searches scope upward within f, then f's properties file,
// then f's parent module. A non-nil from limits each container of the
// upward walk to the statements before the one holding from.
func (r *resolver) inFileChain(f *File, scope, from *Element, parts []string, visited map[*File]bool) *Element {
	if visited[f] {
		return nil
	}
	visited[f] = true

	for cur := scope; cur != nil; cur = cur.parent {
		var before *Element
		if from != nil {
			before = childHolding(cur, from)
		}
		if found := r.inScope(cur, before, parts); found != nil {
			return found
		}
	}
	if props := f.PropertiesFile(); props != nil && props.root != nil {
		if found := props.root.PropertyElement(strings.Join(parts, ".")); found != nil {
			return found
		}
	}
	if parent := f.ParentModule(); parent != nil && parent.root != nil {
		return r.inFileChain(parent, parent.root, nil, parts, visited)
	}
	return nil
}

// childHolding returns the child of c that is or contains e, or nil.
func childHolding(c, e *Element) *Element {
	for ; e != nil; e = e.parent {
		if e.parent == c {
			return e
		}
	}
	return nil
}

// inScope searches the direct children of one container, last definition
// first. ext{} blocks and `ext.`-prefixed names count as direct children.
// A non-nil before restricts the search to the children preceding it.
func (r *resolver) inScope(c, before *Element, parts []string) *Element {
	last := len(c.children) - 1
	if before != nil {
		if i := indexOf(c.children, before); i >= 0 {
			last = i - 1
		}
	}
	for i := last; i >= 0; i-- {
		ch := c.children[i]
		if ch == r.exclude || ch.state == StateToBeRemoved {
			continue
		}
		if (ch.Name == "ext" || ch.Name == "extra") && ch.Kind == KindBlock {
			if found := r.inScope(ch, nil, parts); found != nil {
				return found
			}
			continue
		}
		name := ch.Name
		for _, prefix := range []string{"rootProject.ext.", "project.ext.", "ext.", "extra.", "project."} {
			if strings.HasPrefix(name, prefix) {
				name = name[len(prefix):]
				break
			}
		}
		if name == "" {
			continue
		}
		// the longest dotted prefix of parts naming this child
		for n := len(parts); n >= 1; n-- {
			if name != strings.Join(parts[:n], ".") {
				continue
			}
			if n == len(parts) {
				return ch
			}
			if found := r.descend(ch, parts[n:]); found != nil {
				return found
			}
		}
	}
	return nil
}

// descend walks the remaining dotted parts into maps and blocks.
func (r *resolver) descend(e *Element, parts []string) *Element {
	for _, part := range parts {
		switch e.Kind {
		case KindMap:
			e = e.Entry(part)
		case KindBlock:
			e = e.PropertyElement(part)
			if e == nil {
				return nil
			}
		case KindLiteral:
			if e.Value.Type != ValueReference {
				return nil
			}
			target, err := r.follow(e)
			if err != nil || target.Kind == KindLiteral {
				return nil
			}
			return r.descend(target, parts)
		default:
			return nil
		}
		if e == nil {
			return nil
		}
	}
	return e
}

func stripPrefixes(parts []string) []string {
	for len(parts) > 1 {
		switch parts[0] {
		case "project", "ext", "extra":
			parts = parts[1:]
			continue
		}
		break
	}
	return parts
}
