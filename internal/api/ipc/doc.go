// Package ipc serves the store-and-poll boundary protocol through which the
// sandbox streams request and response bodies.
//
// Routes, all POST, all answering with Access-Control-Allow-Origin: *:
//
//	/ipc/{id}/push              body is one upstream chunk      202
//	/ipc/{id}/pop               next downstream chunk           200 + bytes
//	                            live but nothing queued         204
//	                            no fetch has claimed {id} yet   202
//	                            stream ended                    410
//	/ipc/{id}/close/upstream    end the request body            200
//	/ipc/{id}/close/downstream  stop receiving the response     200
//
// Unknown ids answer 404, a push after close/upstream answers 409, other
// methods answer 405 and malformed paths 400. Error bodies are
// {"error": "..."}. Pop never blocks; callers retry 202 and 204 later, or
// wait for a ready-to-pop event.
package ipc
