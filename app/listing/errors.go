package listing

import "errors"

// ErrSourceEmpty signals a structural failure: the raw source returned
// no cards at all. The run aborts before any commit so a failed page
// load is never mistaken for a mass removal.
var ErrSourceEmpty = errors.New("source returned no cards")
