package panel

// Gate is a yes/no confirmation shown through the confirm modal.
// It is not safe for concurrent use; the controller drives it from its loop.
type Gate struct {
	view    View
	pending func()
}

func NewGate(view View) *Gate {
	return &Gate{view: view}
}

// Request shows the modal and replaces any pending continuation.
func (g *Gate) Request(fn func()) {
	if g.pending != nil {
		log.Debug("replacing pending confirmation")
	}
	g.pending = fn
	g.view.SetVisible(ConfirmModal, true)
}

// Confirm hides the modal and runs the pending continuation, once.
func (g *Gate) Confirm() {
	g.view.SetVisible(ConfirmModal, false)
	fn := g.pending
	g.pending = nil
	if fn != nil {
		fn()
	}
}

// Cancel hides the modal and drops the pending continuation.
func (g *Gate) Cancel() {
	g.view.SetVisible(ConfirmModal, false)
	g.pending = nil
}

func (g *Gate) Pending() bool {
	return g.pending != nil
}
