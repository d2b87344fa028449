package http

type connState uint8

const (
	// eReading accumulates the request.
	eReading connState = iota + 1
	// eProcessing waits for a CGI child. The client socket isn't polled meanwhile,
	// except for hang-ups.
	eProcessing
	// eWriting drains the serialized response.
	eWriting
	// eLingering discards the rest of a rejected request after the sending half is
	// shut down.
	eLingering
)

func (s connState) String() string {
	switch s {
	case eReading:
		return "reading"
	case eProcessing:
		return "processing"
	case eWriting:
		return "writing"
	case eLingering:
		return "lingering"
	default:
		return "unknown"
	}
}
