package grpcstore

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/commons/storage"
	"xdao.co/commons/storage/localfs"
	"xdao.co/commons/storage/testkit"
)

// serve starts a Store service over an in-memory listener and returns a
// client connected to it.
func serve(t *testing.T, backend storage.Store, opts ...grpc.ServerOption) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(opts...)
	RegisterStoreServer(srv, &Server{Store: backend})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 2 * time.Second
	return client
}

func TestGRPCStore_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		return serve(t, storage.NewMemory())
	})
}

func TestGRPCStore_LocalFS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, fs)
	defer client.Close()

	payload := []byte("hello grpcstore")
	id, err := client.Put(ctx, payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !client.Has(ctx, id) {
		t.Fatalf("Has: expected true")
	}
	if err := client.SetHead(ctx, "ws", id); err != nil {
		t.Fatalf("SetHead: %v", err)
	}

	// The head is visible directly on the backend.
	got, err := fs.Head(ctx, "ws")
	if err != nil {
		t.Fatalf("backend Head: %v", err)
	}
	if got != id {
		t.Fatalf("backend Head: got %s want %s", got, id)
	}
	b, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(b) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestGRPCStore_ClosedBackend(t *testing.T) {
	backend := storage.NewMemory()
	client := serve(t, backend)
	defer client.Close()
	_ = backend.Close()

	if _, err := client.Put(context.Background(), []byte("x")); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("Put: got %v want ErrClosed", err)
	}
}

func TestGRPCStore_MissingBackend(t *testing.T) {
	client := serve(t, nil)
	defer client.Close()
	if _, err := client.ListHeads(context.Background()); err == nil {
		t.Fatalf("ListHeads should fail without a backend")
	}
}

func TestMetrics_CountsCallsByCode(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	client := serve(t, storage.NewMemory(), grpc.UnaryInterceptor(m.UnaryInterceptor()))
	defer client.Close()

	id, err := client.Put(ctx, []byte("counted"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := client.Get(ctx, id); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := client.Head(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Head: got %v want ErrNotFound", err)
	}

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("Put", "OK")); got != 1 {
		t.Fatalf("Put OK: got %v want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("Head", "NotFound")); got != 1 {
		t.Fatalf("Head NotFound: got %v want 1", got)
	}
	if got := testutil.CollectAndCount(m.Latency); got != 3 {
		t.Fatalf("latency series: got %d want 3", got)
	}
}
