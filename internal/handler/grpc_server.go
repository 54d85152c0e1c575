package handler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

// ParseURLRequest ParseURL 请求
type ParseURLRequest struct {
	URL          string            `json:"url"`
	UseProxy     bool              `json:"use_proxy"`
	ForceRefresh bool              `json:"force_refresh"`
	Cookies      map[string]string `json:"cookies,omitempty"`
}

// ParseURLResponse ParseURL 响应
type ParseURLResponse struct {
	Video *models.VideoMetadata `json:"video"`
}

// ValidateURLRequest ValidateURL 请求
type ValidateURLRequest struct {
	URL string `json:"url"`
}

// ValidateURLResponse ValidateURL 响应
type ValidateURLResponse struct {
	Valid    bool   `json:"valid"`
	Platform string `json:"platform"`
	VideoID  string `json:"video_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ParserServiceServer parser.ParserService 服务端接口
type ParserServiceServer interface {
	ParseURL(ctx context.Context, req *ParseURLRequest) (*ParseURLResponse, error)
	ValidateURL(ctx context.Context, req *ValidateURLRequest) (*ValidateURLResponse, error)
}

const (
	parseURLMethod    = "/parser.ParserService/ParseURL"
	validateURLMethod = "/parser.ParserService/ValidateURL"
)

var parserServiceDesc = grpc.ServiceDesc{
	ServiceName: "parser.ParserService",
	HandlerType: (*ParserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ParseURL", Handler: parseURLHandler},
		{MethodName: "ValidateURL", Handler: validateURLHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parser.proto",
}

// RegisterParserServiceServer 注册解析服务
func RegisterParserServiceServer(s grpc.ServiceRegistrar, srv ParserServiceServer) {
	s.RegisterService(&parserServiceDesc, srv)
}

func parseURLHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ParseURLRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParserServiceServer).ParseURL(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: parseURLMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ParserServiceServer).ParseURL(ctx, req.(*ParseURLRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func validateURLHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateURLRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParserServiceServer).ValidateURL(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: validateURLMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ParserServiceServer).ValidateURL(ctx, req.(*ValidateURLRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer gRPC服务器
type GRPCServer struct {
	parser         Parser
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewGRPCServer 创建gRPC服务器
func NewGRPCServer(parser Parser, requestTimeout time.Duration, logger *zap.Logger) *GRPCServer {
	return &GRPCServer{
		parser:         parser,
		requestTimeout: requestTimeout,
		logger:         logger.Named("grpc"),
	}
}

// ParseURL 解析视频URL
func (s *GRPCServer) ParseURL(ctx context.Context, req *ParseURLRequest) (*ParseURLResponse, error) {
	s.logger.Info("ParseURL request", zap.String("url", req.URL))

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	meta, err := s.parser.Parse(ctx, models.ParseRequest{
		URL:          req.URL,
		UseProxy:     req.UseProxy,
		ForceRefresh: req.ForceRefresh,
		Cookies:      req.Cookies,
	})
	if err != nil {
		s.logger.Error("ParseURL failed", zap.String("url", req.URL), zap.Error(err))
		return nil, mapErrorToGRPCStatus(err)
	}

	return &ParseURLResponse{Video: meta}, nil
}

// ValidateURL 验证URL是否有效
func (s *GRPCServer) ValidateURL(ctx context.Context, req *ValidateURLRequest) (*ValidateURLResponse, error) {
	s.logger.Info("ValidateURL request", zap.String("url", req.URL))

	result := s.parser.ValidateURL(ctx, req.URL)
	return &ValidateURLResponse{
		Valid:    result.Valid,
		Platform: result.Platform,
		VideoID:  result.VideoID,
		Message:  result.Message,
	}, nil
}

// mapErrorToGRPCStatus 将错误映射到gRPC状态码
func mapErrorToGRPCStatus(err error) error {
	var exhausted *utils.ResolutionExhaustedError
	switch {
	case errors.Is(err, utils.ErrInvalidURL):
		return status.Error(codes.InvalidArgument, "invalid URL")
	case errors.Is(err, utils.ErrVideoNotFound):
		return status.Error(codes.NotFound, "video not found")
	case errors.Is(err, utils.ErrVideoPrivate):
		return status.Error(codes.PermissionDenied, "video is private")
	case errors.As(err, &exhausted):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "parse timeout")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
