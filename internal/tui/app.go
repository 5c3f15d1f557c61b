package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/voxsync/internal/channel"
	"github.com/muurk/voxsync/internal/session"
	"github.com/muurk/voxsync/internal/state"
)

// Bridge forwards session events to send as dashboard messages and returns
// a function that stops forwarding
func Bridge(sess *session.Session, send func(tea.Msg)) func() {
	unsubs := []func(){
		sess.State().Subscribe(func(s state.Snapshot) { send(snapshotMsg(s)) }),
		sess.State().OnNotice(func(err error) { send(noticeMsg{err: err}) }),
		sess.Channel().OnState(func(s channel.State) { send(connStateMsg(s)) }),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// Run shows the dashboard for sess until the user quits or ctx ends. The
// caller still owns sess and closes it.
func Run(ctx context.Context, sess *session.Session) (state.Snapshot, error) {
	p := tea.NewProgram(NewDashboardModel(sess), tea.WithAltScreen(), tea.WithContext(ctx))

	stop := Bridge(sess, p.Send)
	defer stop()

	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	return sess.State().Snapshot(), err
}
