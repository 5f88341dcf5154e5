package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls mapbridge.v1.Bridge.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Invoke runs method with args and returns the result object.
func (c *Client) Invoke(ctx context.Context, method string, args map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(map[string]any{"method": method, "args": args})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, invokeMethod, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Subscribe opens an event stream. Empty kinds means every kind; an empty
// mapID means every map.
func (c *Client) Subscribe(ctx context.Context, mapID string, kinds ...string) (grpc.ServerStreamingClient[structpb.Struct], error) {
	req := map[string]any{}
	if mapID != "" {
		req["mapId"] = mapID
	}
	if len(kinds) > 0 {
		ks := make([]any, len(kinds))
		for i, k := range kinds {
			ks[i] = k
		}
		req["kinds"] = ks
	}
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}

	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
