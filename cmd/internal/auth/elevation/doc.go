// Package elevation implements the second authentication step.
//
// After primary sign-in, a browser session is "elevated" only while its
// elevation token equals the user's elevation secret. The comparison is by
// value on every request, so a changed secret or a cleared token revokes
// elevation immediately.
//
// Routes:
//
//	GET  /second_steps/new   clear the token and render the confirmation form
//	POST /second_steps       confirm; on success set the token and redirect home
//
// Handlers that need elevation depend on *Gate and wrap themselves with
// Gate.Protect.
package elevation
