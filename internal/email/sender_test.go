package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSend(t *testing.T) {
	d := &fakeDialer{}
	s := NewSender(d, "amani@clinic.example")

	require.NoError(t, s.Send(context.Background(), "dr.lee@clinic.example", "Briefing ready", "body"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"amani@clinic.example"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"dr.lee@clinic.example"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Briefing ready"}, d.sent[0].GetHeader("Subject"))
}

func TestSendErrors(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	s := NewSender(d, "amani@clinic.example")

	err := s.Send(context.Background(), "dr.lee@clinic.example", "x", "y")
	assert.ErrorContains(t, err, "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Send(ctx, "dr.lee@clinic.example", "x", "y")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, d.sent, 1)
}
