package copro

import (
	"context"

	fx "github.com/robotalks/sdb.go/pkg/framework"
	"github.com/robotalks/sdb.go/pkg/link"
)

type commandMsg []byte

type registrationMsg []byte

// Runtime binds a Machine to its links and a main loop.
type Runtime struct {
	Machine     *Machine
	ControlConn link.Conn
	Notify      link.Conn
}

// NewRuntime creates a Runtime. Replies and announcements of the
// machine go to control and notify.
func NewRuntime(m *Machine, control, notify link.Conn) *Runtime {
	m.Control, m.Notify = control, notify
	return &Runtime{Machine: m, ControlConn: control, Notify: notify}
}

// AddToLoop implements LoopAdder.
func (r *Runtime) AddToLoop(loop *fx.Loop) {
	r.Machine.Wake = loop.TriggerNext
	loop.AddController(r)
	loop.AddRunnable(
		fx.NamedRun("copro-control", link.NewReader("copro-control", r.ControlConn, postAs(func(b []byte) fx.Message { return commandMsg(b) }))),
		fx.NamedRun("copro-notify", link.NewReader("copro-notify", r.Notify, postAs(func(b []byte) fx.Message { return registrationMsg(b) }))),
	)
}

// Control implements Controller. Messages are handled in arrival order
// before the machine steps.
func (r *Runtime) Control(cc fx.ControlContext) error {
	if r.Machine.IsShutdown() {
		return nil
	}
	for _, msg := range cc.Messages() {
		switch m := msg.(type) {
		case commandMsg:
			r.Machine.HandleCommand(m)
		case registrationMsg:
			r.Machine.HandleRegistration(m)
		}
	}
	r.Machine.Step()
	return nil
}

// Shutdown stops the machine and closes its links.
func (r *Runtime) Shutdown() error {
	var errs fx.AggregatedError
	errs.Add(r.Machine.Shutdown())
	errs.Add(r.ControlConn.Close())
	errs.Add(r.Notify.Close())
	return errs.Aggregate()
}

func postAs(wrap func([]byte) fx.Message) link.MessageHandler {
	return link.HandleMessageFunc(func(ctx context.Context, msg []byte) {
		if ctl := fx.LoopCtlFrom(ctx); ctl != nil {
			ctl.PostMessage(wrap(msg))
			ctl.TriggerNext()
		}
	})
}
