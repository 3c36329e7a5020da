package loom

// Group is an unordered collection of child coroutine handles that can
// be cancelled together. A Group holds
// no more than a plain slice: coroutines remove themselves on
// termination, so Cancel only ever has to walk live members.
type Group struct {
	sched    *Scheduler
	children []*Coroutine
}

// AddCoroutine spawns a new coroutine on the Group's scheduler and adds
// it to the collection. Like Scheduler.Spawn, it never fails.
func (g *Group) AddCoroutine(body Body, opts ...CoroutineOption) *Coroutine {
	co := g.sched.Spawn(body, opts...)
	co.group = g
	g.children = append(g.children, co)
	return co
}

// Cancel cancels every live child and clears the collection.
func (g *Group) Cancel() {
	children := g.children
	g.children = nil
	for _, co := range children {
		co.Cancel()
	}
}

// remove drops co from g's collection once it has terminated. Called
// by the scheduler from handleSuspend, never by user code.
func (g *Group) remove(co *Coroutine) {
	for i, x := range g.children {
		if x == co {
			g.children = append(g.children[:i], g.children[i+1:]...)
			return
		}
	}
}
