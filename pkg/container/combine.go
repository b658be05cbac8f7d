package container

import "sort"

// Combine returns a reducer whose state is a map from name to the state
// produced by the reducer registered under that name. Slice reducers run
// in name order and a fresh map is built on every dispatch.
func Combine(reducers map[string]Reducer) Reducer {
	names := make([]string, 0, len(reducers))
	for name := range reducers {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(state any, action Action) any {
		prev, _ := state.(map[string]any)
		next := make(map[string]any, len(names))
		for _, name := range names {
			var cur any
			if prev != nil {
				cur = prev[name]
			}
			next[name] = reducers[name](cur, action)
		}
		return next
	}
}

// SliceOf returns the named slice of a state produced by Combine.
func SliceOf(state any, name string) any {
	m, _ := state.(map[string]any)
	if m == nil {
		return nil
	}
	return m[name]
}
