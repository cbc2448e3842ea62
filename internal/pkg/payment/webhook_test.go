package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/billing_go_server/internal/testutil"
)

const webhookSecret = "whsec_test_secret"

var eventPayload = []byte(`{"id":"evt_1","api_version":"2020-08-27","type":"customer.subscription.deleted","data":{"object":{"id":"sub_123"}}}`)

func TestVerifyEvent(t *testing.T) {
	sig := testutil.SignPayload(eventPayload, webhookSecret)

	ev, err := VerifyEvent(eventPayload, sig, webhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "customer.subscription.deleted", string(ev.Type))
}

func TestVerifyEvent_WrongSecret(t *testing.T) {
	sig := testutil.SignPayload(eventPayload, "whsec_other_secret")

	_, err := VerifyEvent(eventPayload, sig, webhookSecret)
	assert.Error(t, err)
}

func TestVerifyEvent_TamperedPayload(t *testing.T) {
	sig := testutil.SignPayload(eventPayload, webhookSecret)

	tampered := append([]byte{}, eventPayload...)
	tampered[len(tampered)-2] = 'X'

	_, err := VerifyEvent(tampered, sig, webhookSecret)
	assert.Error(t, err)
}

func TestVerifyEvent_MissingHeader(t *testing.T) {
	_, err := VerifyEvent(eventPayload, "", webhookSecret)
	assert.Error(t, err)
}
