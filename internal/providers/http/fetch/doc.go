// Package fetch translates structured fetch requests into HTTP exchanges on
// pooled clients and back.
//
// A fetch runs in this order, failing before any network I/O on the first
// five steps:
//  1. parse the URL (InvalidUrl)
//  2. check it against the scope (NotAllowed)
//  3. claim the session, when one is given
//  4. acquire a client from the pool
//  5. validate method and headers, insert cookies, apply the redirect mode
//  6. send the request
//  7. build the response from the final URL, status, headers and a jar
//     snapshot
//
// Without a session the response body is read fully and embedded. With a
// session, Fetch returns as soon as the response headers arrive and a
// background drain sends the body downstream in chunks of at most
// ChunkSize, notifying after each chunk and once at the end. The client is
// released, and therefore reset, only when the drain is done.
//
// All failures are *Error values; use errors.Is with the Err* sentinels to
// match a Kind.
package fetch
