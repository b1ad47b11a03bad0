package service

import "testing"

type recordingClient struct {
	responses []string
	failures  []string
}

func (c *recordingClient) SendServiceCallResponse(serviceID ID, callID CallID, encoding string, payload []byte) {
	c.responses = append(c.responses, string(payload))
}

func (c *recordingClient) SendServiceCallFailure(serviceID ID, callID CallID, message string) {
	c.failures = append(c.failures, message)
}

func TestSyncHandlerRespondsOnSuccess(t *testing.T) {
	svc := NewBuilder("echo", NewSchema("std_srvs/Echo")).WithID(1).SyncHandlerFunc(func(c ClientSender, r Request) ([]byte, error) {
		return r.Payload, nil
	})

	client := &recordingClient{}
	released := false
	responder := NewResponder(client, svc.ID(), 7, func() { released = true })
	svc.Call(client, 7, "json", []byte("hi"), responder)

	if len(client.responses) != 1 || client.responses[0] != "hi" {
		t.Fatalf("unexpected responses: %+v", client.responses)
	}
	if !released {
		t.Fatalf("expected the permit to be released")
	}
}

func TestSyncHandlerRespondsOnError(t *testing.T) {
	svc := NewBuilder("fail", NewSchema("std_srvs/Empty")).WithID(1).SyncHandlerFunc(func(c ClientSender, r Request) ([]byte, error) {
		return nil, errNotImplemented{}
	})
	client := &recordingClient{}
	responder := NewResponder(client, svc.ID(), 1, func() {})
	svc.Call(client, 1, "json", nil, responder)

	if len(client.failures) != 1 {
		t.Fatalf("expected exactly one failure, got %+v", client.failures)
	}
}

type errNotImplemented struct{}

func (errNotImplemented) Error() string { return "not implemented" }

func TestResponderOnlyFiresOnce(t *testing.T) {
	client := &recordingClient{}
	calls := 0
	responder := NewResponder(client, 1, 1, func() { calls++ })
	responder.Respond("json", []byte("a"))
	responder.Respond("json", []byte("b"))
	responder.RespondError("too late")

	if len(client.responses) != 1 || len(client.failures) != 0 {
		t.Fatalf("expected exactly one response and no failures, got responses=%v failures=%v", client.responses, client.failures)
	}
	if calls != 1 {
		t.Fatalf("expected release to fire exactly once, got %d", calls)
	}
}

func TestRegistryRejectsDuplicateIDAndName(t *testing.T) {
	reg := NewRegistry()
	s1 := NewBuilder("foo", NewSchema("t")).WithID(1).SyncHandlerFunc(func(ClientSender, Request) ([]byte, error) { return nil, nil })
	s2 := NewBuilder("bar", NewSchema("t")).WithID(1).SyncHandlerFunc(func(ClientSender, Request) ([]byte, error) { return nil, nil })
	s3 := NewBuilder("foo", NewSchema("t")).WithID(2).SyncHandlerFunc(func(ClientSender, Request) ([]byte, error) { return nil, nil })

	if !reg.Add(s1) {
		t.Fatalf("expected first Add to succeed")
	}
	if reg.Add(s2) {
		t.Fatalf("expected duplicate id to be rejected")
	}
	if reg.Add(s3) {
		t.Fatalf("expected duplicate name to be rejected")
	}
	if len(reg.All()) != 1 {
		t.Fatalf("expected exactly one registered service")
	}
}
