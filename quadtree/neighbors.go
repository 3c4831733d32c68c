package quadtree

// cardinalRule says where a cardinal neighbor of a child lives: either a
// sibling in the same parent, or a child of the parent's neighbor in the
// same direction.
type cardinalRule struct {
	sibling  bool
	quadrant Quadrant
}

// cardinalRules is indexed by [direction][own quadrant].
var cardinalRules = [4][4]cardinalRule{
	Top: {
		TopLeft:     {false, BottomLeft},
		TopRight:    {false, BottomRight},
		BottomLeft:  {true, TopLeft},
		BottomRight: {true, TopRight},
	},
	Right: {
		TopLeft:     {true, TopRight},
		TopRight:    {false, TopLeft},
		BottomLeft:  {true, BottomRight},
		BottomRight: {false, BottomLeft},
	},
	Bottom: {
		TopLeft:     {true, BottomLeft},
		TopRight:    {true, BottomRight},
		BottomLeft:  {false, TopLeft},
		BottomRight: {false, TopRight},
	},
	Left: {
		TopLeft:     {false, TopRight},
		TopRight:    {true, TopLeft},
		BottomLeft:  {false, BottomRight},
		BottomRight: {true, BottomLeft},
	},
}

// diagonals composes each diagonal from two cardinals: first, then second.
var diagonals = [4]struct {
	dir           Direction
	first, second Direction
}{
	{TopLeftDiagonal, Top, Left},
	{TopRightDiagonal, Top, Right},
	{BottomLeftDiagonal, Bottom, Left},
	{BottomRightDiagonal, Bottom, Right},
}

// ConnectNodes resolves the eight neighbor links of every node. Build calls
// it; calling it again yields the same links.
func (t *Tree) ConnectNodes() {
	for i := range t.nodes {
		n := &t.nodes[i]
		for d := Top; d <= Left; d++ {
			n.Neighbors[d] = t.findCardinal(n.Index, d, int(n.Depth))
		}
	}

	for i := range t.nodes {
		n := &t.nodes[i]
		for _, diag := range diagonals {
			n.Neighbors[diag.dir] = None
			first := n.Neighbors[diag.first]
			if first == None {
				continue
			}
			n.Neighbors[diag.dir] = t.nodes[first].Neighbors[diag.second]
		}
	}
}

// findCardinal climbs until the rule table resolves to a sibling, then
// descends back through the mirrored quadrants. budget is the number of
// levels left to climb and stops a malformed parent chain.
func (t *Tree) findCardinal(index int32, dir Direction, budget int) int32 {
	n := &t.nodes[index]
	if n.Parent == None || n.Quadrant == NoQuadrant || budget <= 0 {
		return None
	}

	rule := cardinalRules[dir][n.Quadrant]
	parent := &t.nodes[n.Parent]
	if rule.sibling {
		return parent.Children[rule.quadrant]
	}

	across := t.findCardinal(parent.Index, dir, budget-1)
	if across == None {
		return None
	}
	return t.nodes[across].Children[rule.quadrant]
}
