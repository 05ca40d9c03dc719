// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing messages, tool calls and logs. They are not
// intended for production usage.
package testutil
