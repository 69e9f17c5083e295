// Package session brokers streaming request/response bodies across the
// sandbox boundary.
//
// A caller reserves a session (Reserve) and passes its id to a fetch, which
// claims it exactly once (Claim). From then on two bounded FIFO channels
// connect the two sides:
//
//   - upstream: the caller pushes request body chunks (Push, CloseUpstream)
//     and the fetch reads them through Stream.Upstream
//   - downstream: the fetch sends response body chunks (Stream.Send,
//     Stream.Finish) and the caller polls them (Pop, CloseDownstream)
//
// Pop never blocks. It reports PopPending until a fetch claims the session,
// PopEmpty while the stream is live with nothing queued, and PopEnd once the
// downstream is closed and drained. The slot is then freed and its id can be
// handed out again by Reserve, lowest id first.
//
// Example Usage:
//
//	broker := session.NewBroker(session.Config{})
//	id := broker.Reserve()
//	stream, err := broker.Claim(id)
//	body := stream.Upstream(ctx)
package session
