package actor

import (
	"context"
	"net"
	"sync"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"uniactor/codec/bincodec"
	"uniactor/mailbox"
	"uniactor/message"
)

const deliverMethod = "/uniactor.Remote/Deliver"

// msgpackCodec 是 gRPC 编解码器，只用于信封；消息本身在 Payload 中以二进制格式编码。
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// remoteEnvelope 是跨节点传输的邮箱元素。
type remoteEnvelope struct {
	ToID   string `msgpack:"to"`
	FromID string `msgpack:"from"`
	// FromAddr 是发送方系统的监听地址，接收方据此学习 FromID 的位置以便回复
	FromAddr string `msgpack:"from_addr"`
	MID      uint64 `msgpack:"mid"`
	Priority uint8  `msgpack:"pri"`
	Payload  []byte `msgpack:"payload"`
}

type remoteAck struct {
	OK  bool   `msgpack:"ok"`
	Err string `msgpack:"err,omitempty"`
}

// RemoteServer 是远程投递服务。
type RemoteServer interface {
	Deliver(context.Context, *remoteEnvelope) (*remoteAck, error)
}

// remoteTransport 持有 gRPC 服务端与到各个对端的连接。
type remoteTransport struct {
	sys    *System
	server *grpc.Server
	lis    net.Listener
	addr   string

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// EnableRemote 在 listenAddr（默认 :50051）上启动 gRPC 服务，接收其他节点投递的元素。
// 启用后，用 SetLocation 登记的远程 Actor 可以像本地 Actor 一样收发消息。
func (s *System) EnableRemote(listenAddr string) error {
	if listenAddr == "" {
		listenAddr = ":50051"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote != nil {
		return nil
	}
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Trace(err)
	}
	rt := &remoteTransport{
		sys:   s,
		lis:   lis,
		addr:  lis.Addr().String(),
		conns: make(map[string]*grpc.ClientConn),
	}
	rt.server = grpc.NewServer(grpc.ForceServerCodec(msgpackCodec{}))
	rt.register(rt.server)
	s.remote = rt
	go func() {
		if err := rt.server.Serve(lis); err != nil {
			log.Warn("remote server exited", zap.String("addr", rt.addr), zap.Error(err))
		}
	}()
	log.Info("remote transport started", zap.String("addr", rt.addr))
	return nil
}

// RemoteAddr 返回远程服务的监听地址，未启用时为空。
func (s *System) RemoteAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == nil {
		return ""
	}
	return s.remote.addr
}

// StopRemote 停止远程服务并关闭所有对端连接。
func (s *System) StopRemote() error {
	s.mu.Lock()
	rt := s.remote
	s.remote = nil
	s.mu.Unlock()
	if rt == nil {
		return nil
	}
	rt.server.Stop()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	var err error
	for addr, c := range rt.conns {
		if cerr := c.Close(); cerr != nil {
			err = multierr.Append(err, errors.Annotatef(cerr, "close connection to %s", addr))
		}
	}
	rt.conns = nil
	return err
}

// SetLocation 登记 actorID 所在节点的地址；addr 为空时删除登记。
func (s *System) SetLocation(actorID, addr string) {
	if actorID == "" {
		return
	}
	s.locMu.Lock()
	if addr == "" {
		delete(s.locations, actorID)
	} else {
		s.locations[actorID] = addr
	}
	s.locMu.Unlock()
}

func (s *System) locationOf(actorID string) (string, bool) {
	s.locMu.RLock()
	addr, ok := s.locations[actorID]
	s.locMu.RUnlock()
	return addr, ok
}

func (s *System) transport() *remoteTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// remoteDeliver 把元素编码后投递到 addr 上的节点。每个对端有独立的断路器。
func (s *System) remoteDeliver(addr, to string, e mailbox.Element) error {
	rt := s.transport()
	if rt == nil {
		return ErrRemoteDisabled.GenWithStackByArgs()
	}
	b := s.breakerFor("peer:" + addr)
	if !b.Allow(s.clock.Now()) {
		return ErrCircuitOpen.GenWithStackByArgs(addr)
	}
	payload, err := bincodec.Marshal(message.Descriptor(), &e.Msg)
	if err != nil {
		return errors.Trace(err)
	}
	env := &remoteEnvelope{
		ToID:     to,
		FromID:   e.SenderID,
		FromAddr: rt.addr,
		MID:      uint64(e.MID),
		Priority: e.Priority,
		Payload:  payload,
	}
	conn, err := rt.conn(addr)
	if err != nil {
		s.remoteFailed(b, addr, err)
		return errors.Trace(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.deliverTimeout)
	defer cancel()
	var ack remoteAck
	if err := conn.Invoke(ctx, deliverMethod, env, &ack); err != nil {
		s.remoteFailed(b, addr, err)
		return errors.Trace(err)
	}
	b.OnSuccess()
	if !ack.OK {
		return ErrRemoteRejected.GenWithStackByArgs(addr, ack.Err)
	}
	return nil
}

func (s *System) remoteFailed(b *CircuitBreaker, addr string, err error) {
	b.OnFailure(s.clock.Now())
	s.metrics.remoteFailures.WithLabelValues(addr).Inc()
	log.Debug("remote delivery failed", zap.String("peer", addr), zap.String("breaker", b.State()), zap.Error(err))
}

// conn 返回到 addr 的连接，首次使用时创建并缓存。
func (rt *remoteTransport) conn(addr string) (*grpc.ClientConn, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.conns == nil {
		return nil, ErrRemoteDisabled.GenWithStackByArgs()
	}
	if c, ok := rt.conns[addr]; ok {
		return c, nil
	}
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(msgpackCodec{})),
	)
	if err != nil {
		return nil, errors.Trace(err)
	}
	rt.conns[addr] = cc
	return cc, nil
}

func (rt *remoteTransport) register(srv *grpc.Server) {
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "uniactor.Remote",
		HandlerType: (*RemoteServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Deliver",
				Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					var in remoteEnvelope
					if err := dec(&in); err != nil {
						return nil, err
					}
					return srv.(RemoteServer).Deliver(ctx, &in)
				},
			},
		},
		Metadata: "msgpack",
	}, rt)
}

// Deliver 解码远程元素并投递给本地目标。目标不在本地时拒绝，不会再次转发。
func (rt *remoteTransport) Deliver(_ context.Context, in *remoteEnvelope) (*remoteAck, error) {
	var m message.Message
	if err := bincodec.UnmarshalInto(in.Payload, message.Descriptor(), &m); err != nil {
		return &remoteAck{Err: err.Error()}, nil
	}
	s := rt.sys
	if in.FromID != "" && in.FromAddr != "" {
		if _, local := s.registry.Get(in.FromID); !local {
			s.SetLocation(in.FromID, in.FromAddr)
		}
	}
	e := mailbox.Element{
		Priority: in.Priority,
		SenderID: in.FromID,
		MID:      message.FromIntegerValue(in.MID),
		Msg:      m,
	}
	if a, ok := s.registry.Get(in.ToID); ok {
		if err := a.enqueue(e); err != nil {
			return &remoteAck{Err: err.Error()}, nil
		}
		return &remoteAck{OK: true}, nil
	}
	if in.ToID == s.requesterID {
		s.onResponse(e)
		return &remoteAck{OK: true}, nil
	}
	return &remoteAck{Err: ErrActorNotFound.GenWithStackByArgs(in.ToID).Error()}, nil
}
