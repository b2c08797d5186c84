package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("payment_method", "wallet"),
		attribute.String("user_id", "456"),
		attribute.String("outcome", "sent"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "payment_method" && attrs[1].Key != "payment_method" {
		t.Fatalf("expected payment_method to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordOrderPlaced(context.Background(), "wallet")
	m.RecordNotification(context.Background(), "order_placed", "sent")

	NewNoop().RecordWalletPosting(context.Background(), "debit")
}
