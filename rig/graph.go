package rig

import "sort"

// edges maps a node handle to the (deduplicated, lexicographically
// sorted) handles of the nodes it depends on, as extracted by
// refexpr's dependency scan.
type edges map[string][]string

// cycle represents one cycle detected by toposort, named by the
// participating handles in traversal order.
type cycle struct {
	Handles []string
}

// toposort performs a depth-first topological sort of the handles in
// deps, returning the handles in dependency order (a handle appears
// after everything it depends on) along with every cycle found.
// Ties among independent subgraphs are broken lexicographically so
// that the resulting order -- and therefore scheduling tie-breaking
// downstream -- is deterministic (spec.md section 4.4).
func toposort(handles []string, deps edges) (order []string, cycles []cycle) {
	sorted := append([]string{}, handles...)
	sort.Strings(sorted)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(sorted))
	var stack []string

	var visit func(h string)
	visit = func(h string) {
		switch color[h] {
		case black:
			return
		case gray:
			// Found a cycle; record the participating handles
			// from the first occurrence of h on the stack.
			start := 0
			for i, s := range stack {
				if s == h {
					start = i
					break
				}
			}
			participants := append([]string{}, stack[start:]...)
			participants = append(participants, h)
			cycles = append(cycles, cycle{Handles: participants})
			return
		}

		color[h] = gray
		stack = append(stack, h)

		next := append([]string{}, deps[h]...)
		sort.Strings(next)
		for _, d := range next {
			visit(d)
		}

		stack = stack[:len(stack)-1]
		color[h] = black
		order = append(order, h)
	}

	for _, h := range sorted {
		if color[h] == white {
			visit(h)
		}
	}

	return order, cycles
}
