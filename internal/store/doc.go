// Package store provides in-memory state containers that a socket router
// can drive.
//
// Store is commit/dispatch shaped: mutations and actions are registered under
// slash-separated paths, and each mutation operates on its namespace's map.
// Model is patch shaped: state is merged directly and events are handled by
// named actions.
package store
