// Package testutil contains builders and fakes used across tests to reduce
// boilerplate when constructing run requests, scripted model responses and
// world executors, and when asserting on event streams. It is not intended
// for production usage.
package testutil
