package main

import (
	"github.com/bft-labs/slicesync/pkg/container"
	"github.com/bft-labs/slicesync/pkg/slicesync"
)

// Demo slice names.
const (
	counterSlice = "counter"
	notesSlice   = "notes"
)

// Demo action types.
const (
	actionIncrement = "counter/INCREMENT"
	actionDecrement = "counter/DECREMENT"
	actionAddNote   = "notes/ADD"
)

type counterState struct {
	X int `json:"x"`
}

type notesState struct {
	Items []string `json:"items"`
}

func counterReducer(state any, action container.Action) any {
	c, ok := state.(counterState)
	if !ok {
		c = counterState{X: 5}
	}
	switch action.Type() {
	case actionIncrement:
		c.X++
	case actionDecrement:
		c.X--
	}
	return c
}

func notesReducer(state any, action container.Action) any {
	n, ok := state.(notesState)
	if !ok {
		n = notesState{Items: []string{}}
	}
	if action.Type() != actionAddNote {
		return n
	}
	a, ok := action.(container.Simple)
	if !ok {
		return n
	}
	text, _ := a.Payload.(string)
	if text == "" {
		return n
	}
	items := make([]string, len(n.Items), len(n.Items)+1)
	copy(items, n.Items)
	return notesState{Items: append(items, text)}
}

// demoReducer builds the root reducer hosted by the run command.
func demoReducer() container.Reducer {
	return container.Combine(map[string]container.Reducer{
		counterSlice: slicesync.Wrap(counterSlice, counterReducer,
			slicesync.WithSliceCodec(slicesync.JSONCodec[counterState]())),
		notesSlice: slicesync.Wrap(notesSlice, notesReducer,
			slicesync.WithSliceCodec(slicesync.JSONCodec[notesState]())),
	})
}
