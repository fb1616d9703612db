// Package errors provides coded, actionable error messages for the huddle
// commands.
//
// Each error has a code (e.g., "H201") that maps to a short message, an
// explanation and a hint. Errors from the session substrate are mapped to
// their codes by FromError:
//
//	if err != nil {
//	    errors.PrintError(errors.FromError(err, "H501"))
//	}
//	// Output:
//	// ERROR H201: Client name in use
//	//
//	//   session: client name in use
//	//
//	//   Another client with this name has already joined the session.
//	//
//	//   Hint: Pick another --name, or use --unique to append '+' until a free name is found
//
// # Error Categories
//
//   - config: huddle.json / huddle.yaml loading and validation
//   - connect: reaching a session endpoint
//   - session: joining, channels and byte arrays
//   - registry: starting or locating endpoints
//   - payload: malformed application payloads
//   - cli: command-line usage
package errors
