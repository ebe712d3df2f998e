package observe

import (
	"io"

	opentracing "github.com/opentracing/opentracing-go"
	zipkinot "github.com/openzipkin-contrib/zipkin-go-opentracing"
	"github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
)

// NewZipkinTracer builds an opentracing.Tracer backed by Zipkin, for a
// host that wants the per-node spans ExecuteTick and Tree.TickOnce emit
// (see tracing.go) exported to a real collector instead of dropped by
// the default no-op tracer. Pass the result to tree.TickWhileRunning via
// WithTracer. The returned io.Closer flushes and stops the reporter's
// background sender and must be closed when the host shuts down.
func NewZipkinTracer(collectorURL, serviceName, hostPort string) (opentracing.Tracer, io.Closer, error) {
	reporter := zipkinhttp.NewReporter(collectorURL)

	endpoint, err := zipkin.NewEndpoint(serviceName, hostPort)
	if err != nil {
		reporter.Close()
		return nil, nil, err
	}

	nativeTracer, err := zipkin.NewTracer(reporter, zipkin.WithLocalEndpoint(endpoint))
	if err != nil {
		reporter.Close()
		return nil, nil, err
	}

	return zipkinot.Wrap(nativeTracer), reporter, nil
}
