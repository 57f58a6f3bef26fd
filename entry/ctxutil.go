package entry

import "context"

// bgContext is the context used for store calls that have no caller
// context to propagate, e.g. a bare Peek(PeekDB, ...).
func bgContext() context.Context { return context.Background() }
