package etl

// Group holds every record sharing one group name, in input order.
// Value-identical records are distinct members; nothing is deduplicated.
type Group struct {
	Name    string
	Records []Record
}

// Len returns the number of records in the group.
func (g *Group) Len() int { return len(g.Records) }

// First returns the group's representative record.
func (g *Group) First() (Record, bool) {
	if len(g.Records) == 0 {
		return Record{}, false
	}
	return g.Records[0], true
}

// Groups partitions a record sequence by group name.
// Records live in one arena; each group keeps the arena positions of its
// members, and group names keep first-seen order. A nil *Groups is empty.
type Groups struct {
	arena []Record
	index map[string][]int
	names []string
}

// GroupRecords partitions records in a single pass.
func GroupRecords(records []Record) *Groups {
	g := &Groups{
		arena: records,
		index: make(map[string][]int),
	}
	for i, rec := range records {
		if _, ok := g.index[rec.Group]; !ok {
			g.names = append(g.names, rec.Group)
		}
		g.index[rec.Group] = append(g.index[rec.Group], i)
	}
	return g
}

// Names returns the group names in first-seen order.
func (g *Groups) Names() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.names...)
}

// Len returns the number of distinct groups.
func (g *Groups) Len() int {
	if g == nil {
		return 0
	}
	return len(g.names)
}

// Total returns the number of records across all groups.
func (g *Groups) Total() int {
	if g == nil {
		return 0
	}
	return len(g.arena)
}

// Get returns the named group, or nil if no record carries that name.
func (g *Groups) Get(name string) *Group {
	if g == nil {
		return nil
	}
	positions, ok := g.index[name]
	if !ok {
		return nil
	}
	grp := &Group{Name: name, Records: make([]Record, len(positions))}
	for i, pos := range positions {
		grp.Records[i] = g.arena[pos]
	}
	return grp
}

// Each calls fn for every group in first-seen order.
func (g *Groups) Each(fn func(*Group)) {
	if g == nil {
		return
	}
	for _, name := range g.names {
		fn(g.Get(name))
	}
}
