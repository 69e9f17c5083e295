/*
Package tracing provides lightweight request tracing on top of structured
logging.

# Overview

Every command request gets a span; handlers open child spans for the work
they delegate (a fetch, for example). Finished spans are handed to a
buffered collector that logs them with zap. Trace and span ids are ULIDs.

# Usage

	tracer := tracing.New("cookiefetch", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "fetch")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("url", target)

# Trace Format

Trace context travels in two headers:
  - X-Trace-ID: identifier of the whole request flow
  - X-Span-ID: identifier of the calling operation

Invalid ids in incoming headers are ignored and a new trace is started.
*/
package tracing
