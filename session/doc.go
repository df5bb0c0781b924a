// Package session houses implementations of core.SessionStore, which keeps
// the world sessions a server has initialized so run requests can refer to
// them by task id.
//
// Add additional backends in sub-packages without changing any calling code;
// only the wiring layer decides which implementation to instantiate.
package session
