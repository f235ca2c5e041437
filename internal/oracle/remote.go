package oracle

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire names for the oracle sidecar. Requests and replies are
// google.protobuf.Struct so neither side needs generated stubs.
const (
	serviceName = "coach.oracle.v1.Oracle"
	askMethod   = "/" + serviceName + "/Ask"
)

// #region client

// RemoteOracle forwards queries to an oracle sidecar over gRPC.
type RemoteOracle struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// NewRemoteOracle connects to the sidecar at addr.
func NewRemoteOracle(addr string) (*RemoteOracle, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &RemoteOracle{conn: conn, cc: conn}, nil
}

// NewRemoteOracleWithConn wraps an existing connection. Close is then the
// caller's job.
func NewRemoteOracleWithConn(cc grpc.ClientConnInterface) *RemoteOracle {
	return &RemoteOracle{cc: cc}
}

// Close shuts down a connection opened by NewRemoteOracle.
func (r *RemoteOracle) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Ask implements Oracle.
func (r *RemoteOracle) Ask(ctx context.Context, q Query) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"instruction": q.Instruction,
		"input":       q.Input,
		"temperature": float64(q.Temperature),
		"max_tokens":  float64(q.MaxTokens),
		"purpose":     string(q.Purpose),
	})
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}

	resp := &structpb.Struct{}
	if err := r.cc.Invoke(ctx, askMethod, req, resp); err != nil {
		return "", fmt.Errorf("%w: ask rpc: %v", ErrUnavailable, err)
	}
	text, ok := resp.GetFields()["text"]
	if !ok {
		return "", fmt.Errorf("%w: reply has no text", ErrMalformedResponse)
	}
	return text.GetStringValue(), nil
}

// #endregion

// #region server

type oracleServer interface {
	Ask(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type askServer struct {
	backend Oracle
}

func (s *askServer) Ask(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	q := Query{
		Instruction: f["instruction"].GetStringValue(),
		Input:       f["input"].GetStringValue(),
		Temperature: float32(f["temperature"].GetNumberValue()),
		MaxTokens:   int(f["max_tokens"].GetNumberValue()),
		Purpose:     Purpose(f["purpose"].GetStringValue()),
	}
	text, err := s.backend.Ask(ctx, q)
	if err != nil {
		log.Printf("[ORACLE] sidecar ask failed: purpose=%s err=%v", q.Purpose, err)
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return structpb.NewStruct(map[string]any{"text": text})
}

func askHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(oracleServer).Ask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: askMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(oracleServer).Ask(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var oracleServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*oracleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ask", Handler: askHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coach/oracle/v1/oracle.proto",
}

// RegisterOracleServer exposes backend on s.
func RegisterOracleServer(s grpc.ServiceRegistrar, backend Oracle) {
	s.RegisterService(&oracleServiceDesc, &askServer{backend: backend})
}

// #endregion
