package taskgraph

// Node colors for the DFS cycle check.
const (
	white = iota // unvisited
	grey         // on the current DFS path
	black        // fully explored
)

// hasCycle reports whether the dependency relation contains a cycle.
// Edges run task -> dependency; a graph is acyclic iff no DFS revisits
// a node on its own path. Dangling dependency ids are ignored here;
// existence is validated separately.
func hasCycle(tasks map[int]*Task) bool {
	color := make(map[int]int, len(tasks))

	var visit func(id int) bool
	visit = func(id int) bool {
		color[id] = grey
		if t, ok := tasks[id]; ok {
			for _, dep := range t.Dependencies {
				switch color[dep] {
				case grey:
					return true
				case white:
					if visit(dep) {
						return true
					}
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range tasks {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// normalizeIDs deduplicates and copies an id list, preserving order.
func normalizeIDs(ids []int) []int {
	out := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// containsID reports whether ids contains id.
func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// appendID adds id to ids if not already present.
func appendID(ids []int, id int) []int {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

// removeID returns ids without id.
func removeID(ids []int, id int) []int {
	out := make([]int, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// containsStatus reports whether statuses contains s.
func containsStatus(statuses []Status, s Status) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
