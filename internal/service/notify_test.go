package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/thumbdesk/internal/metrics"
	"github.com/illegalcall/thumbdesk/internal/models"
	"github.com/illegalcall/thumbdesk/internal/notify"
)

type downMailer struct{}

func (downMailer) Send(context.Context, models.Email) error {
	return errors.New("smtp down")
}

func failedDeliveries(t *testing.T, eventType string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "thumbdesk_notify_deliveries_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["type"] == eventType && labels["success"] == strconv.FormatBool(false) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestInlineDeliveryFailureCountedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20)
	relay := notify.NewInlineRelay(notify.NewDispatcher(downMailer{}, "ops@example.com", "", discardLogger()))
	f.svc = New(testConfig(), f.store, f.blobs, relay, nil, discardLogger())

	before := failedDeliveries(t, models.EventRequestCreated)
	res, err := f.svc.Submit(ctx, alice, SubmitInput{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, 10, res.CreditsRemaining)
	assert.Equal(t, before+1, failedDeliveries(t, models.EventRequestCreated))
}
