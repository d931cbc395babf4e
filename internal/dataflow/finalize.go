package dataflow

// finalize gives every node that did not complete, fail or stop during pass
// p a terminal display status derived from the final cache state:
// satisfied → idle, missing data → paused, missing flow only → waiting.
func (s *Scheduler) finalize(p *pass) {
	for _, id := range s.graph.NodeIDs() {
		if p.has(id) {
			continue
		}
		n, def, err := s.lookup(id)
		if err != nil {
			s.fail(p, id, "", &NodeError{NodeID: id, Phase: "resolve", Err: err}, nil)
			continue
		}
		s.mu.Lock()
		if s.executing[id] {
			s.mu.Unlock()
			continue
		}
		res := s.resolver.ResolveNode(n, def)
		s.mu.Unlock()

		if res.CanExecute {
			s.setStatus(id, NodeStatus{State: StateIdle, SatisfiedPortIDs: res.SatisfiedPortIDs})
			continue
		}
		s.setStatus(id, pendingStatus(res))
	}
}
