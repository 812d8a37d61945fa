/*
Package tracing provides request tracing for the login gateway.

# Overview

Every request gets a span whose trace ID is carried in the X-Trace-ID
header, or continued from it when the caller supplies one. Finished spans
are logged asynchronously through the shared zap logger.

# Usage

	tracer := tracing.New("gate", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// inside a handler
	log.Warn("exchange failed", tracing.Field(c.Request.Context()), zap.Error(err))

# Trace Format

- X-Trace-ID: identifier for the whole request flow
- X-Span-ID: identifier for the current operation

IDs are prefixed ULIDs from internal/shared/id.
*/
package tracing
