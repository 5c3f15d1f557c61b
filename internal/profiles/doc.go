// Package profiles manages the named voice profiles stored on the backend.
//
// The Registry caches the list of names and wraps the save, load and delete
// calls. Loading a profile also makes it the active one through the state
// synchronizer.
//
// The backend decides which profiles are protected. LikelyProtected is only
// a hint for graying out names in a UI:
//
//	if err := reg.Delete(ctx, "DefaultFemale"); api.IsProtectedError(err) {
//	    fmt.Println(api.ShortMessage(err))
//	}
package profiles
