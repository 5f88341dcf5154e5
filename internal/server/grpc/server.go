package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/service"
	"github.com/ekisa-team/mapbridge/mapsafe"
)

// DefaultSubscriberBuffer is the number of events queued per subscriber
// before new events are dropped.
const DefaultSubscriberBuffer = 256

// Server implements mapbridge.v1.Bridge on top of the command surface and the
// event bus.
type Server struct {
	maps   *service.Maps
	bus    *events.Bus
	buffer int
	grpc   *grpc.Server
}

// NewServer creates a server with a fresh grpc.Server and registers the
// bridge service on it.
func NewServer(maps *service.Maps, bus *events.Bus, opts ...grpc.ServerOption) *Server {
	s := &Server{
		maps:   maps,
		bus:    bus,
		buffer: DefaultSubscriberBuffer,
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(logUnary)}, opts...)
	s.grpc = grpc.NewServer(opts...)
	RegisterBridgeServer(s.grpc, s)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String(), "service", ServiceName)
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on the TCP port and serves.
func (s *Server) ListenAndServe(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return s.Serve(lis)
}

// Stop drains in-flight calls, then closes every stream.
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

// Invoke implements BridgeServer.
func (s *Server) Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.AsMap()
	method, ok := mapsafe.Lookup[string](in, "method")
	if !ok || method == "" {
		return nil, status.Error(codes.InvalidArgument, "method is required")
	}
	args, _ := mapsafe.Map(in, "args")

	res, err := s.maps.Invoke(ctx, method, args)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := structpb.NewStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	return out, nil
}

// Subscribe implements BridgeServer. Events are queued per subscriber; when
// the queue is full new events are dropped so a slow client never blocks the
// map loops.
func (s *Server) Subscribe(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	in := req.AsMap()
	filter := events.Filter{MapID: mapsafe.Get(in, "mapId", "")}
	if kinds, ok := mapsafe.Strings(in, "kinds"); ok {
		for _, k := range kinds {
			kind := events.Kind(k)
			if !kind.Valid() {
				return status.Errorf(codes.InvalidArgument, "unknown event kind %q", k)
			}
			filter.Kinds = append(filter.Kinds, kind)
		}
	}

	queue := make(chan events.Event, s.buffer)
	id := s.bus.Subscribe(filter, func(e events.Event) {
		select {
		case queue <- e:
		default:
			slog.Warn("Dropping event for slow subscriber", "kind", e.Kind, "map_id", e.MapID)
		}
	})
	defer s.bus.Unsubscribe(id)

	slog.Debug("Subscriber attached", "subscription_id", id, "map_id", filter.MapID, "kinds", len(filter.Kinds))
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Subscriber detached", "subscription_id", id)
			return nil
		case e := <-queue:
			msg, err := encodeEvent(e)
			if err != nil {
				slog.Error("Failed to encode event", "kind", e.Kind, "error", err)
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func encodeEvent(e events.Event) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"kind":  string(e.Kind),
		"mapId": e.MapID,
		"time":  e.Time.Format(time.RFC3339Nano),
		"data":  e.Data,
	})
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		slog.Debug("gRPC call failed", "method", info.FullMethod, "code", status.Code(err), "duration", time.Since(start), "error", err)
	}
	return resp, err
}
