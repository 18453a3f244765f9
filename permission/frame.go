package permission

// Frame is the permission context of an executing node or callout
// (spec.md section 3, "Frame"). Each Frame is a value: a parent
// pointer plus the frame's own allow/deny lists. Parent pointers are
// lookup-only; a Frame never mutates its parent.
type Frame struct {
	parent *Frame
	allow  []Permission
	deny   []Permission

	// chain is kept for Chain(), which reports the list of
	// node handles from root to this frame -- used in
	// PermissionDenied{frame_chain} errors.
	handle string
	chain  []string
}

// NewRootFrame builds the root execution frame from the serving
// context's default allow/deny permissions.
func NewRootFrame(allow, deny []Permission) *Frame {
	return &Frame{allow: allow, deny: deny, chain: []string{}}
}

// Child derives the frame for a node beginning execution, per
// spec.md section 4.3: allow/deny accumulate from the parent and the
// node's own allow/deny declarations, then the accumulated allow set
// is narrowed to the component's declared required permissions (a
// component never gains more authority than it declares needing).
func (f *Frame) Child(handle string, nodeAllow, nodeDeny []Permission, declaredRequired []Permission) *Frame {
	allow := narrow(union(f.allow, nodeAllow), declaredRequired)
	deny := union(f.deny, nodeDeny)
	return &Frame{
		parent: f,
		allow:  allow,
		deny:   deny,
		handle: handle,
		chain:  append(append([]string{}, f.chain...), handle),
	}
}

// Callout derives the frame for a callout invoked under the current
// frame, per spec.md section 4.3: the callout's authority is the
// current frame's allow set restricted to the declared callout
// permissions, minus the declared callout deny-list.
func (f *Frame) Callout(handle string, declaredAllow, declaredDeny []Permission) *Frame {
	allow := narrow(f.allow, declaredAllow)
	deny := union(f.deny, declaredDeny)
	return &Frame{
		parent: f,
		allow:  allow,
		deny:   deny,
		handle: handle,
		chain:  append(append([]string{}, f.chain...), handle),
	}
}

// Authorize reports whether cap is authorized by this frame: matched
// by some allow entry and not matched by any deny entry.
func (f *Frame) Authorize(cap Capability) bool {
	allowed := false
	for _, p := range f.allow {
		if p.Matches(cap) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	for _, p := range f.deny {
		if p.Matches(cap) {
			return false
		}
	}
	return true
}

// Chain returns the node-handle path from the root frame to this
// frame, for PermissionDenied error reporting.
func (f *Frame) Chain() []string {
	return append([]string{}, f.chain...)
}

// Allow exposes the frame's effective allow set, mainly for tests and
// diagnostics.
func (f *Frame) Allow() []Permission { return append([]Permission{}, f.allow...) }

// Deny exposes the frame's effective deny set.
func (f *Frame) Deny() []Permission { return append([]Permission{}, f.deny...) }

// IsDescendantAuthoritySubsetOf reports whether every capability
// authorized by child would also be authorized by ancestor -- the
// permission-monotonicity property from spec.md section 8. It is
// approximated by checking that every allow entry of child is
// covered by some allow entry of ancestor. Deny lists are not
// compared; frames built by Child and Callout only ever add to their
// parent's deny list.
func IsDescendantAuthoritySubsetOf(child, ancestor *Frame) bool {
	for _, p := range child.allow {
		coveredByAllow := false
		for _, a := range ancestor.allow {
			if covers(a, p) {
				coveredByAllow = true
				break
			}
		}
		if !coveredByAllow {
			return false
		}
	}
	return true
}
