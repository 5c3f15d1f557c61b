// Package api provides the data model and an HTTP client for the voxsync backend
// configuration API.
//
// The backend owns the audio engine. This package describes what it exposes
// (audio devices, the session configuration, voice profiles and the live
// status) and offers a stateless client with one method per REST endpoint.
//
// # Endpoints
//
//   - GET    /                 liveness
//   - GET    /devices          audio device list
//   - GET    /profiles         stored profile names
//   - GET    /profiles/{name}  one stored profile
//   - POST   /profiles         save a profile ({"profile": {...}})
//   - DELETE /profiles/{name}  delete a profile (defaults are protected)
//   - POST   /config           replace the audio configuration
//   - POST   /profile/apply    make a profile active
//   - GET    /status           poll the live status
//
// # Usage Example
//
//	client := api.NewClient("http://localhost:8000")
//
//	devices, err := client.ListDevices(ctx)
//	if err != nil {
//	    log.Fatal(api.ShortMessage(err))
//	}
//
//	p := api.DefaultProfile()
//	p.Name = "Studio"
//	p.PitchShift = 3
//	if err := client.SaveProfile(ctx, p); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// Every failure is an *Error with a Kind. Use the predicates to branch:
//
//	if err := client.DeleteProfile(ctx, "DefaultMale"); api.IsProtectedError(err) {
//	    fmt.Println("default profiles cannot be deleted")
//	}
//
// Nothing is retried. Profiles are clamped to their parameter ranges before
// they are sent.
package api
