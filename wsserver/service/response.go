package service

import "sync"

// Responder lets a Handler deliver exactly one response (or failure) for a
// service call. It holds the concurrency-limiting permit for that call:
// release is invoked when the response is sent, freeing a slot for the
// next in-flight call.
type Responder struct {
	client    ClientSender
	serviceID ID
	callID    CallID
	release   func()
	once      sync.Once
}

// NewResponder constructs a Responder. release is called exactly once,
// whichever of Respond/RespondError runs first (or neither, if the
// Responder is dropped — callers that never respond leak their
// concurrency permit, same as the reference implementation).
func NewResponder(client ClientSender, serviceID ID, callID CallID, release func()) *Responder {
	return &Responder{client: client, serviceID: serviceID, callID: callID, release: release}
}

// Respond sends a successful response.
func (r *Responder) Respond(encoding string, payload []byte) {
	r.once.Do(func() {
		r.client.SendServiceCallResponse(r.serviceID, r.callID, encoding, payload)
		r.release()
	})
}

// RespondError sends a service call failure.
func (r *Responder) RespondError(message string) {
	r.once.Do(func() {
		r.client.SendServiceCallFailure(r.serviceID, r.callID, message)
		r.release()
	})
}
