// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing conversation state, scripting model
// replies and serving canned tool results. They are not intended for
// production usage.
package testutil
