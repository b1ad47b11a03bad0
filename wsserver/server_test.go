package wsserver

import (
	"encoding/binary"
	"testing"

	"github.com/odin-telemetry/telemetry-sdk/logcontext"
	"github.com/odin-telemetry/telemetry-sdk/wsserver/service"
)

func TestServerTracksAdvertisedChannels(t *testing.T) {
	s := newTestServer(t, ServerConfig{Addr: ":0", Context: logcontext.NewContext()})
	ch := logcontext.NewChannel("topic", "json", nil, nil)

	s.AddChannel(ch)
	if _, ok := s.channelByID(ch.ID()); !ok {
		t.Fatalf("expected channel to be tracked after AddChannel")
	}
	if got := s.advertisedChannels(); len(got) != 1 {
		t.Fatalf("expected exactly one advertised channel, got %d", len(got))
	}

	s.RemoveChannel(ch)
	if _, ok := s.channelByID(ch.ID()); ok {
		t.Fatalf("expected channel to be forgotten after RemoveChannel")
	}
}

func TestServerLogFansOutToSubscribedClientsOnly(t *testing.T) {
	s := newTestServer(t, ServerConfig{Addr: ":0", Context: logcontext.NewContext()})
	ch := logcontext.NewChannel("topic", "json", nil, nil)
	s.AddChannel(ch)

	subscribed, _ := newTestSession(t, s)
	idle, _ := newTestSession(t, s)
	s.mu.Lock()
	s.clients[subscribed.id] = subscribed
	s.clients[idle.id] = idle
	s.mu.Unlock()

	subscribed.subscriptions.insertNoOverwrite(1, ch.ID())

	if err := s.Log(ch, []byte("hi"), logcontext.Metadata{LogTime: 99, PublishTime: 123}); err != nil {
		t.Fatalf("Log returned error: %v", err)
	}

	select {
	case frame := <-subscribed.dataCh:
		if got := binary.LittleEndian.Uint64(frame[5:13]); got != 99 {
			t.Fatalf("frame timestamp = %d, want log_time 99", got)
		}
	default:
		t.Fatalf("expected the subscribed client to receive a frame")
	}
	select {
	case <-idle.dataCh:
		t.Fatalf("did not expect the idle client to receive a frame")
	default:
	}
}

func TestAddServiceRegistersAgainstTheRegistry(t *testing.T) {
	s := newTestServer(t, ServerConfig{Addr: ":0", Context: logcontext.NewContext()})
	svc := service.NewBuilder("echo", service.NewSchema("t")).WithID(1).SyncHandlerFunc(
		func(service.ClientSender, service.Request) ([]byte, error) { return nil, nil },
	)
	if !s.AddService(svc) {
		t.Fatalf("expected first registration to succeed")
	}
	if s.AddService(svc) {
		t.Fatalf("expected duplicate registration to be rejected")
	}
}
