package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. HTTP keys follow the OpenTelemetry semantic conventions.
const (
	AttrConnector   = "hostkit.connector"
	AttrState       = "hostkit.state"
	AttrUnit        = "hostkit.unit"
	AttrClientIP    = "client.address"
	AttrHTTPMethod  = "http.request.method"
	AttrHTTPRoute   = "http.route"
	AttrHTTPStatus  = "http.response.status_code"
	AttrURLPath     = "url.path"
	AttrServerPort  = "server.port"
	AttrPacketBytes = "udp.datagram.size"
	AttrPeerAddress = "network.peer.address"
)

// Span names
const (
	SpanServerStart = "server.start"
	SpanServerStop  = "server.stop"
	SpanActivate    = "connector.activate"
	SpanPacket      = "udp.packet"
)

func Connector(name string) attribute.KeyValue {
	return attribute.String(AttrConnector, name)
}

func State(s string) attribute.KeyValue {
	return attribute.String(AttrState, s)
}

func Unit(name string) attribute.KeyValue {
	return attribute.String(AttrUnit, name)
}

func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

func HTTPStatus(code int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, code)
}

func ServerPort(port int) attribute.KeyValue {
	return attribute.Int(AttrServerPort, port)
}

// StartHTTPSpan starts a server span for an incoming request, continuing a
// trace propagated in the request headers when present.
func StartHTTPSpan(r *http.Request, connector string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return Tracer().Start(ctx, r.Method+" "+connector,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			Connector(connector),
			attribute.String(AttrHTTPMethod, r.Method),
			attribute.String(AttrURLPath, r.URL.Path),
		),
	)
}

// StartPacketSpan starts a span for one received datagram.
func StartPacketSpan(ctx context.Context, peer string, size int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, SpanPacket,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String(AttrPeerAddress, peer),
			attribute.Int(AttrPacketBytes, size),
		),
	)
}
