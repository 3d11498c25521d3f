package bus

import "errors"

// Response is one scripted result for a ReadFrame call.
type Response struct {
	Data []byte
	Err  error
}

// Fake is a test double that returns scripted frames.
type Fake struct {
	// Responses contains scripted results. Each ReadFrame consumes
	// the next one; when exhausted, the last repeats.
	Responses []Response

	// Commands records the command byte of every ReadFrame call.
	Commands []byte

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// NewFake creates a Fake with the given scripted responses.
func NewFake(responses ...Response) *Fake {
	return &Fake{Responses: responses}
}

// ReadFrame returns the next scripted response.
func (f *Fake) ReadFrame(cmd byte, length int) (int, []byte, error) {
	f.Commands = append(f.Commands, cmd)

	if len(f.Responses) == 0 {
		return 0, nil, errors.New("no responses configured")
	}

	r := f.Responses[f.index]
	if f.index < len(f.Responses)-1 {
		f.index++
	}

	if r.Err != nil {
		return 0, nil, r.Err
	}
	return len(r.Data), r.Data, nil
}

// Close marks the fake as closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the script.
func (f *Fake) Reset() {
	f.index = 0
	f.Commands = nil
	f.Closed = false
}
