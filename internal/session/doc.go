// Package session wires one backend connection together.
//
// A Session owns an api.Client, a channel.Manager for the /ws event channel,
// a state.Synchronizer holding the canonical configuration, profile and
// status, and a profiles.Registry. Messages from the channel are routed to
// the synchronizer; user intents go to the synchronizer and the registry.
//
//	s, err := session.New(settings)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if err := s.Start(ctx); err != nil {
//	    log.Printf("initial fetch: %v", err)
//	}
//	s.State().Subscribe(render)
//
// Nothing is global. Two sessions against two backends do not interact.
package session
