// Package tui implements the interactive voxsync dashboard with bubbletea.
//
// The dashboard shows one session: connection state, engine latency and CPU
// load, the audio configuration and the active profile as sliders. Keys turn
// into intents that go to the session's synchronizer or profile registry;
// the model never edits state it does not own.
//
// Session events reach the program through Bridge, which converts snapshot,
// notice and channel-state callbacks into tea messages:
//
//	sess, _ := session.New(settings)
//	defer sess.Close()
//	_ = sess.Start(ctx)
//	final, err := tui.Run(ctx, sess)
//
// Edits are shown optimistically while their intents run and replaced by the
// canonical snapshot once nothing is in flight, so fast key repeats build on
// each other.
//
// Key bindings:
//
//	↑/↓ or k/j   move between rows
//	←/→ or h/l   change the selected value (devices cycle, "none" included)
//	space / e    enable or disable processing
//	s / o / d    save, load or delete a stored profile
//	r            refresh devices and profiles
//	?            full help
//	q            quit
package tui
