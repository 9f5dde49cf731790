// Package router routes socket events into an external state sink.
//
// A sink is either a Committer (commit a named mutation, dispatch a named
// action) or a Patcher (merge state, call named actions). The integrator
// tags the sink explicitly with CommitterTarget/PatcherTarget, or lets
// Detect classify it.
//
// With Format "json", inbound messages address the sink by content:
//
//	{"namespace":"chat","mutation":"SET_MSG"}  -> Commit("chat/SET_MSG", msg)
//	{"namespace":"chat","action":"newMessage"} -> Dispatch("chat/newMessage", msg)
//
// Everything else is committed (or invoked as an action) under the event
// label, optionally renamed through Config.Mutations.
package router
