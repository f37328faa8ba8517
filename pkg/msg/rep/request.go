package rep

import "sync"

// Request is one decoded inbound request, yielded by RepSocket.Next. Per
// spec §4.2: calling Respond completes the peer's response slot exactly
// once; dropping the Request without responding is legal and silently
// discards the slot (the REQ side will time out).
type Request struct {
	source string
	msg    []byte
	reply  chan<- []byte

	once sync.Once
}

// Source returns the peer's address.
func (r *Request) Source() string { return r.source }

// Msg returns the request payload.
func (r *Request) Msg() []byte { return r.msg }

// Respond completes the response slot with payload. Calling it more than
// once is a no-op after the first call.
func (r *Request) Respond(payload []byte) {
	r.once.Do(func() {
		r.reply <- payload
	})
}
