// Package tui provides the live monitor shown by `conclave run --monitoring`.
//
// The monitor is a bubbletea program that renders the task table of a
// running session, a scrolling activity log built from session events, and
// a footer with task counts. It can pause, resume and cancel the session.
//
// Usage:
//
//	program, _ := tui.NewProgram(session, refresh)
//	go tui.ForwardEvents(program, session.Events())
//	go func() {
//	    report, err := session.Await(ctx)
//	    program.Send(tui.SessionDoneMsg{Report: report, Err: err})
//	}()
//	_, err := program.Run()
package tui
