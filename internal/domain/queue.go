package domain

import (
	m "regotest.dev/pkg/regotest/internal/model"
)

// BuildQueue resolves req against candidates and returns the runnable test
// cases in candidate order, reporting each one to obs as it is enqueued.
//
// A node is included when Include is nil, or when it or its immediate parent
// is in Include. It is dropped when it or its immediate parent is in
// Exclude, and also when it has no parent at all. Only test cases are
// queued; folders and files are visited but never enqueued.
func BuildQueue(candidates []*m.Node, req m.RunRequest, obs RunObserver) []*m.Node {
	queue := make([]*m.Node, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, node := range candidates {
		if node == nil {
			continue
		}

		if req.Include != nil && !req.Include.Has(node.ID) && !req.Include.Has(node.Parent) {
			continue
		}

		if node.Parent == "" || req.Exclude.Has(node.ID) || req.Exclude.Has(node.Parent) {
			continue
		}

		if !node.IsTestCase() {
			continue
		}

		if _, dup := seen[node.ID]; dup {
			continue
		}

		seen[node.ID] = struct{}{}
		queue = append(queue, node)

		if obs != nil {
			obs.Enqueued(node)
		}
	}

	return queue
}
