package testutil

import (
	"context"

	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/stretchr/testify/mock"
)

// RecordingNotifier accepts every message and keeps it as a mock call, so
// tests can read what was sent or assert on it with AssertCalled.
type RecordingNotifier struct {
	mock.Mock
}

func NewRecordingNotifier() *RecordingNotifier {
	r := &RecordingNotifier{}
	r.On("Notify", mock.Anything, mock.Anything).Return()
	return r
}

func (r *RecordingNotifier) Notify(ctx context.Context, msg notification.Message) {
	r.Called(ctx, msg)
}

func (r *RecordingNotifier) Messages() []notification.Message {
	out := make([]notification.Message, 0, len(r.Calls))
	for _, call := range r.Calls {
		out = append(out, call.Arguments.Get(1).(notification.Message))
	}
	return out
}

// Templates lists the template of every recorded message in order.
func (r *RecordingNotifier) Templates() []string {
	msgs := r.Messages()
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Template)
	}
	return out
}
