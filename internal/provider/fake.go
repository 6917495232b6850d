package provider

import "context"

// FakeProvider returns scripted replies, one per call, for tests.
type FakeProvider struct {
	Responses []string
	Error     error

	Calls      int
	LastSystem string
	LastUser   string
}

func NewFake(responses ...string) *FakeProvider {
	return &FakeProvider{Responses: responses}
}

func (f *FakeProvider) Complete(_ context.Context, system, user string) (string, error) {
	f.Calls++
	f.LastSystem = system
	f.LastUser = user
	if f.Error != nil {
		return "", f.Error
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	idx := f.Calls - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return f.Responses[idx], nil
}
