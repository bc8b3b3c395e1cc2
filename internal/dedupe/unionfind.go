package dedupe

// unionFind is a disjoint-set forest with path compression and union by rank.
// Clustering is the transitive closure of pairwise matches, so connected
// components are exactly the dedupe clusters.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

// components returns the member indices of each disjoint set, keyed by root.
func (uf *unionFind) components() map[int][]int {
	comps := make(map[int][]int)
	for i := range uf.parent {
		root := uf.find(i)
		comps[root] = append(comps[root], i)
	}
	return comps
}
