package intent

import "errors"

// ErrMalformed is wrapped into Unparseable intents when the response
// contained something that looked like an intent object but failed to
// decode.
var ErrMalformed = errors.New("intent: malformed intent JSON")

// ErrEmpty is wrapped into Unparseable intents for blank responses.
var ErrEmpty = errors.New("intent: empty response")
