package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/subgate-io/subgate/app/models"
)

func makeEvent(t *testing.T, eventType, object string) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(object)},
	}
}

func TestProject_CheckoutWithSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: map[string]*models.SubscriptionSnapshot{
		"sub_1": {Status: models.SubscriptionStatusActive, PlanID: "price_premium"},
	}}
	projector := NewProjector(fetcher, zerolog.Nop())

	event := makeEvent(t, "checkout.session.completed",
		`{"id":"cs_1","client_reference_id":"42","customer":"cus_1","subscription":"sub_1"}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, ProjectionCheckout, proj.Kind)
	assert.Equal(t, uint(42), proj.AccountID)
	assert.Equal(t, "cus_1", proj.CustomerID)
	require.NotNil(t, proj.Snapshot)
	assert.Equal(t, models.SubscriptionStatusActive, proj.Snapshot.Status)
}

func TestProject_CheckoutAccountIDFromMetadata(t *testing.T) {
	projector := NewProjector(&fakeFetcher{}, zerolog.Nop())

	event := makeEvent(t, "checkout.session.completed",
		`{"id":"cs_1","customer":"cus_1","metadata":{"account_id":"7"}}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, ProjectionCheckout, proj.Kind)
	assert.Equal(t, uint(7), proj.AccountID)
	assert.Nil(t, proj.Snapshot)
}

func TestProject_CheckoutWithoutAccountReference(t *testing.T) {
	projector := NewProjector(&fakeFetcher{}, zerolog.Nop())

	event := makeEvent(t, "checkout.session.completed",
		`{"id":"cs_1","customer":"cus_1"}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ProjectionNone, proj.Kind)
}

func TestProject_CheckoutFetchFailureKeepsLink(t *testing.T) {
	fetcher := &fakeFetcher{err: NewUpstreamProviderError("fetch subscription", context.DeadlineExceeded)}
	projector := NewProjector(fetcher, zerolog.Nop())

	event := makeEvent(t, "checkout.session.completed",
		`{"id":"cs_1","client_reference_id":"1","customer":"cus_1","subscription":"sub_1"}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, ProjectionCheckout, proj.Kind)
	assert.Nil(t, proj.Snapshot)
}

func TestProject_SubscriptionUpdated(t *testing.T) {
	projector := NewProjector(&fakeFetcher{}, zerolog.Nop())

	event := makeEvent(t, "customer.subscription.updated",
		`{"id":"sub_1","customer":"cus_1","status":"trialing","plan":{"id":"price_premium"},"current_period_end":1700000000}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, ProjectionSnapshot, proj.Kind)
	assert.Equal(t, "cus_1", proj.CustomerID)
	require.NotNil(t, proj.Snapshot)
	assert.Equal(t, models.SubscriptionStatusTrialing, proj.Snapshot.Status)
	assert.Equal(t, "price_premium", proj.Snapshot.PlanID)
	require.NotNil(t, proj.Snapshot.PeriodEnd)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *proj.Snapshot.PeriodEnd)
}

func TestProject_SubscriptionUpdatedItemLevelFields(t *testing.T) {
	projector := NewProjector(&fakeFetcher{}, zerolog.Nop())

	event := makeEvent(t, "customer.subscription.updated",
		`{"id":"sub_1","customer":"cus_1","status":"active","items":{"data":[{"current_period_end":1800000000,"price":{"id":"price_other"}}]}}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)

	require.NotNil(t, proj.Snapshot)
	assert.Equal(t, "price_other", proj.Snapshot.PlanID)
	require.NotNil(t, proj.Snapshot.PeriodEnd)
	assert.Equal(t, time.Unix(1800000000, 0).UTC(), *proj.Snapshot.PeriodEnd)
}

func TestProject_SubscriptionUpdatedUnknownStatus(t *testing.T) {
	projector := NewProjector(&fakeFetcher{}, zerolog.Nop())

	event := makeEvent(t, "customer.subscription.updated",
		`{"id":"sub_1","customer":"cus_1","status":"resurrected"}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusInactive, proj.Snapshot.Status)
}

func TestProject_SubscriptionUpdatedMissingCustomer(t *testing.T) {
	projector := NewProjector(&fakeFetcher{}, zerolog.Nop())

	event := makeEvent(t, "customer.subscription.updated",
		`{"id":"sub_1","status":"active"}`)
	_, err := projector.Project(context.Background(), event)
	var payloadErr *PayloadError
	require.ErrorAs(t, err, &payloadErr)
}

func TestProject_SubscriptionDeletedIsNoOp(t *testing.T) {
	projector := NewProjector(&fakeFetcher{}, zerolog.Nop())

	event := makeEvent(t, "customer.subscription.deleted",
		`{"id":"sub_1","customer":"cus_1","status":"canceled"}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ProjectionNone, proj.Kind)
}

func TestProject_UnrecognizedType(t *testing.T) {
	projector := NewProjector(&fakeFetcher{}, zerolog.Nop())

	event := makeEvent(t, "invoice.payment_succeeded", `{"id":"in_1"}`)
	proj, err := projector.Project(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ProjectionNone, proj.Kind)
}
