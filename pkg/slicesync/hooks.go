package slicesync

// Hooks are optional lifecycle callbacks. Nil members are skipped. When
// both a slice and its registry define a hook, the slice's runs first.
type Hooks struct {
	// OnInit runs once a slice has been loaded from, or created in, storage.
	OnInit func(name string, state any, host Host)

	// OnUpdate runs when a slice received a state from storage. It runs
	// inside the reducer and must not dispatch synchronously.
	OnUpdate func(name string, state any, host Host)

	// OnSave runs when a slice state has been handed to storage.
	OnSave func(name string, state any, host Host)

	// OnReady runs each time every registered slice becomes initialized.
	// Only registry-level OnReady hooks are used.
	OnReady func(host Host)
}

func (h Hooks) init(name string, state any, host Host) {
	if h.OnInit != nil {
		h.OnInit(name, state, host)
	}
}

func (h Hooks) update(name string, state any, host Host) {
	if h.OnUpdate != nil {
		h.OnUpdate(name, state, host)
	}
}

func (h Hooks) save(name string, state any, host Host) {
	if h.OnSave != nil {
		h.OnSave(name, state, host)
	}
}

func (h Hooks) ready(host Host) {
	if h.OnReady != nil {
		h.OnReady(host)
	}
}
