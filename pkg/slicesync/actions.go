package slicesync

import "github.com/bft-labs/slicesync/pkg/container"

// Action type strings.
const (
	TypeBootstrap     = "slicesync/BOOTSTRAP"
	TypeReinit        = "slicesync/REINIT"
	TypeSetSliceState = "slicesync/SET_SLICE_STATE"
	TypePause         = "slicesync/PAUSE"
	TypeResume        = "slicesync/RESUME"
)

// Host is the state container a registry is attached to.
// *container.Store satisfies it.
type Host interface {
	Dispatch(action container.Action) container.Action
	State() any
}

// Bootstrap is dispatched once by Registry.Attach when the container is
// created. Every wrapped slice registers with Registry and then reloads as
// for Reinit.
type Bootstrap struct {
	Registry *Registry
	Host     Host
}

func (Bootstrap) Type() string { return TypeBootstrap }

// Reinit reloads the named slice from storage, or every slice when Slice
// is empty. Build it with Registry.Reinit to validate the name.
type Reinit struct {
	Slice string
}

func (Reinit) Type() string { return TypeReinit }

// SetSliceState carries a state read from storage into the container. It
// never causes a write.
type SetSliceState struct {
	Slice string
	State any
	Rev   string
}

func (SetSliceState) Type() string { return TypeSetSliceState }

// Pause suspends persistence for every slice. State changes still apply in
// memory.
type Pause struct{}

func (Pause) Type() string { return TypePause }

// Resume re-enables persistence and writes any state that drifted while
// paused.
type Resume struct{}

func (Resume) Type() string { return TypeResume }

// PauseSaving returns a Pause action.
func PauseSaving() container.Action { return Pause{} }

// ResumeSaving returns a Resume action.
func ResumeSaving() container.Action { return Resume{} }
