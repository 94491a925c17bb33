package feed

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

// #region client-struct
// Client connects to a remote decision feed.
type Client struct {
	conn *grpc.ClientConn
}

// #endregion client-struct

// #region constructor
// NewClient creates a client for addr. Extra options are appended after
// insecure transport credentials.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion constructor

// #region subscribe
// Stream receives decision records from the server.
type Stream struct {
	cs grpc.ClientStream
}

// Subscribe opens a feed stream. Cancel ctx to leave.
func (c *Client) Subscribe(ctx context.Context, interventionsOnly bool) (*Stream, error) {
	cs, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("open feed stream: %w", err)
	}
	req, err := structpb.NewStruct(map[string]any{"interventions_only": interventionsOnly})
	if err != nil {
		return nil, fmt.Errorf("build subscribe request: %w", err)
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}
	if err := cs.CloseSend(); err != nil {
		return nil, fmt.Errorf("close send: %w", err)
	}
	return &Stream{cs: cs}, nil
}

// Recv blocks for the next record. It returns io.EOF when the server ends
// the stream.
func (s *Stream) Recv() (state.DecisionRecord, error) {
	msg := new(structpb.Struct)
	if err := s.cs.RecvMsg(msg); err != nil {
		return state.DecisionRecord{}, err
	}
	return Decode(msg)
}

// #endregion subscribe
