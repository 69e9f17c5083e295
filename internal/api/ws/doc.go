// Package ws pushes session events to the sandbox over WebSocket.
//
// Each connected subscriber receives a JSON event whenever a fetch queues a
// downstream chunk or ends a downstream stream:
//
//	{"event": "ready-to-pop", "id": 3}
//
// The event only says that popping session 3 may now make progress; the
// data itself is always taken with the boundary pop call.
package ws
