package wsserver

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/odin-telemetry/telemetry-sdk/logcontext"
	"github.com/odin-telemetry/telemetry-sdk/wsprotocol"
)

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	s, err := NewServer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func newTestSession(t *testing.T, s *Server) (*clientSession, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })
	return newClientSession(s, server, "test"), client
}

type recordingListener struct {
	NoopListener
	subscribed   []uint64
	unsubscribed []uint64
}

func (l *recordingListener) OnSubscribe(_ ClientID, channelID uint64)   { l.subscribed = append(l.subscribed, channelID) }
func (l *recordingListener) OnUnsubscribe(_ ClientID, channelID uint64) { l.unsubscribed = append(l.unsubscribed, channelID) }

func TestHandleSubscribeAndUnsubscribe(t *testing.T) {
	listener := &recordingListener{}
	s := newTestServer(t, ServerConfig{Addr: ":0", Listener: listener, Context: logcontext.NewContext()})
	ch := logcontext.NewChannel("topic", "json", nil, nil)
	s.AddChannel(ch)

	cs, _ := newTestSession(t, s)
	cs.handleSubscribe(&wsprotocol.SubscribeMessage{
		Subscriptions: []wsprotocol.Subscription{{ID: 7, ChannelID: ch.ID()}},
	})

	if got, ok := cs.subscriptionFor(ch.ID()); !ok || got != 7 {
		t.Fatalf("expected subscription 7 for channel %d, got %d ok=%v", ch.ID(), got, ok)
	}
	if len(listener.subscribed) != 1 || listener.subscribed[0] != ch.ID() {
		t.Fatalf("listener not notified of subscribe: %+v", listener.subscribed)
	}

	cs.handleUnsubscribe(&wsprotocol.UnsubscribeMessage{SubscriptionIDs: []uint32{7}})
	if _, ok := cs.subscriptionFor(ch.ID()); ok {
		t.Fatalf("expected subscription to be removed")
	}
	if len(listener.unsubscribed) != 1 {
		t.Fatalf("listener not notified of unsubscribe: %+v", listener.unsubscribed)
	}
}

func TestHandleSubscribeIgnoresUnknownChannel(t *testing.T) {
	s := newTestServer(t, ServerConfig{Addr: ":0", Context: logcontext.NewContext()})
	cs, _ := newTestSession(t, s)

	cs.handleSubscribe(&wsprotocol.SubscribeMessage{
		Subscriptions: []wsprotocol.Subscription{{ID: 1, ChannelID: 999}},
	})

	if _, ok := cs.subscriptionFor(999); ok {
		t.Fatalf("should not have subscribed to an unadvertised channel")
	}
}

func TestPublishDeliversFrameToSubscriber(t *testing.T) {
	s := newTestServer(t, ServerConfig{Addr: ":0", Context: logcontext.NewContext()})
	ch := logcontext.NewChannel("topic", "json", nil, nil)
	s.AddChannel(ch)

	cs, _ := newTestSession(t, s)
	cs.handleSubscribe(&wsprotocol.SubscribeMessage{
		Subscriptions: []wsprotocol.Subscription{{ID: 3, ChannelID: ch.ID()}},
	})

	cs.publish(ch.ID(), 1234, []byte("payload"))

	select {
	case frame := <-cs.dataCh:
		if frame[0] != wsprotocol.OpcodeMessageData {
			t.Fatalf("unexpected opcode %d", frame[0])
		}
		if got := binary.LittleEndian.Uint32(frame[1:5]); got != 3 {
			t.Fatalf("subscription id = %d, want 3", got)
		}
	default:
		t.Fatalf("expected a queued data frame")
	}
}

func TestPublishSkipsNonSubscribers(t *testing.T) {
	s := newTestServer(t, ServerConfig{Addr: ":0", Context: logcontext.NewContext()})
	cs, _ := newTestSession(t, s)

	cs.publish(42, 0, []byte("payload"))

	select {
	case <-cs.dataCh:
		t.Fatalf("did not expect a frame for an unsubscribed channel")
	default:
	}
}

func TestSendDataDisconnectsAfterThreeConsecutiveEvictions(t *testing.T) {
	s := newTestServer(t, ServerConfig{Addr: ":0", DataQueueSize: 1, Context: logcontext.NewContext()})
	cs, client := newTestSession(t, s)

	read := make(chan int, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := client.Read(buf)
		read <- n
	}()

	cs.sendData([]byte("a")) // fills the queue, no eviction needed
	cs.sendData([]byte("b")) // evict 1
	cs.sendData([]byte("c")) // evict 2
	cs.sendData([]byte("d")) // evict 3 -> disconnect, writes a close frame

	select {
	case n := <-read:
		if n == 0 {
			t.Fatalf("expected a close frame to be written")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for close frame")
	}
}

func TestAdvertiseAndUnadvertiseChannel(t *testing.T) {
	s := newTestServer(t, ServerConfig{Addr: ":0", Context: logcontext.NewContext()})
	ch := logcontext.NewChannel("topic", "json", &logcontext.Schema{Name: "n", Encoding: "json", Data: []byte(`{}`)}, nil)
	cs, _ := newTestSession(t, s)

	cs.advertiseChannel(ch)
	select {
	case <-cs.controlCh:
	default:
		t.Fatalf("expected an advertise control message")
	}

	cs.subscriptions.insertNoOverwrite(1, ch.ID())
	cs.unadvertiseChannel(ch.ID())
	select {
	case <-cs.controlCh:
	default:
		t.Fatalf("expected an unadvertise control message")
	}
	if _, ok := cs.subscriptionFor(ch.ID()); ok {
		t.Fatalf("expected subscription to be cleared on unadvertise")
	}
}
