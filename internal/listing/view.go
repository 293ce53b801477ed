package listing

// View bundles the controller and dispatcher of one list view.
type View[T Record[ID], ID comparable] struct {
	*Controller[T, ID]
	Mutations *Dispatcher[T, ID]
}

// ViewConfig configures NewView.
type ViewConfig struct {
	Options
	Messages   Messages
	OnMutation MutationHook
}

// NewView wires a controller over src and a dispatcher over m.
func NewView[T Record[ID], ID comparable](src Source[T], m Mutator[T, ID], cfg ViewConfig) *View[T, ID] {
	ctrl := NewController[T, ID](src, cfg.Options)
	return &View[T, ID]{
		Controller: ctrl,
		Mutations:  NewDispatcher(cfg.Name, ctrl, m, cfg.Messages, cfg.OnMutation),
	}
}
