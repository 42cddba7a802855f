package bus

// NewPipe returns two endpoints connected in process. Frames written by one
// are received by the other in write order. Closing either side closes both.
func NewPipe(opts ...Option) (host, background *Endpoint) {
	host = newEndpoint("host", opts...)
	background = newEndpoint("background", opts...)

	host.write = background.receive
	background.write = host.receive

	// The peer is closed asynchronously: each side's Close runs under its
	// own sync.Once and would otherwise re-enter it.
	host.onClose = func() error {
		go func() { _ = background.Close() }()
		return nil
	}
	background.onClose = func() error {
		go func() { _ = host.Close() }()
		return nil
	}

	return host, background
}
