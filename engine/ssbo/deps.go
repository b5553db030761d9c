package ssbo

// kahnWaves orders the nodes 0..n-1 so that every node follows all of its dependencies.
// Each wave emits, in ascending id order, every pending node whose dependencies were all
// emitted by earlier waves. Nodes left over when a wave makes no progress lie on or behind a
// cycle and are returned as stuck.
func kahnWaves(n int, deps func(id int) []int) (order []int, stuck []int) {
	emitted := make([]bool, n)
	pending := make([]int, n)
	for i := range pending {
		pending[i] = i
	}
	order = make([]int, 0, n)

	for len(pending) > 0 {
		wave := make([]int, 0, len(pending))
		next := pending[:0:0]
		for _, id := range pending {
			if depsEmitted(deps(id), emitted) {
				wave = append(wave, id)
			} else {
				next = append(next, id)
			}
		}
		if len(wave) == 0 {
			return order, next
		}
		for _, id := range wave {
			emitted[id] = true
		}
		order = append(order, wave...)
		pending = next
	}
	return order, nil
}

func depsEmitted(deps []int, emitted []bool) bool {
	for _, d := range deps {
		if !emitted[d] {
			return false
		}
	}
	return true
}

// reachable returns the set of struct ids reachable from the given roots, roots included.
func reachable(roots []int, deps func(id int) []int) map[int]bool {
	seen := make(map[int]bool)
	stack := append([]int(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, deps(id)...)
	}
	return seen
}
