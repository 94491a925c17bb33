package feed

import (
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// ServiceName is the fully qualified gRPC service name of the decision feed.
const ServiceName = "glyph.feed.v1.DecisionFeed"

const subscribeMethod = "/" + ServiceName + "/Subscribe"

// DecisionFeedServer is the server side of the feed. Subscribe streams
// encoded decision records until the client leaves or the broker closes.
type DecisionFeedServer interface {
	Subscribe(req *structpb.Struct, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DecisionFeedServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "glyph/feed/v1/feed.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(DecisionFeedServer).Subscribe(req, stream)
}

// #endregion service-desc

// #region server
// Server exposes a Broker over gRPC.
type Server struct {
	broker *Broker
	buffer int
	logger *zap.Logger
	grpc   *grpc.Server
}

// NewServer creates a gRPC server with the feed registered. buffer is the
// per-subscriber channel size.
func NewServer(broker *Broker, buffer int, logger *zap.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		broker: broker,
		buffer: buffer,
		logger: logger.Named("feed"),
		grpc:   grpc.NewServer(opts...),
	}
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("decision feed listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop drains open streams and stops the server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// #endregion server

// #region subscribe
// Subscribe implements DecisionFeedServer. The request may set
// "interventions_only" to receive only dispatched interventions.
func (s *Server) Subscribe(req *structpb.Struct, stream grpc.ServerStream) error {
	interventionsOnly := req.GetFields()["interventions_only"].GetBoolValue()
	ch, cancel := s.broker.Subscribe(s.buffer)
	defer cancel()

	s.logger.Debug("feed subscriber joined", zap.Bool("interventions_only", interventionsOnly))
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-ch:
			if !ok {
				return nil
			}
			if interventionsOnly && !rec.Dispatched() {
				continue
			}
			msg, err := Encode(rec)
			if err != nil {
				s.logger.Warn("skipping unencodable record", zap.Error(err))
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// #endregion subscribe
