package kinesis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/infrastructure/store"
)

func orderConfirmedImage(id string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"id":             events.NewStringAttribute(id),
		"aggregate_id":   events.NewStringAttribute("order-1"),
		"aggregate_type": events.NewStringAttribute("Order"),
		"event_type":     events.NewStringAttribute("OrderConfirmed"),
		"data":           events.NewStringAttribute(`{"order_id":"order-1"}`),
		"created_at":     events.NewStringAttribute("2026-03-01T10:00:00.123456789Z"),
		"version":        events.NewNumberAttribute("3"),
		"gsi1pk":         events.NewStringAttribute("EVENT"),
	}
}

func kinesisRecord(t *testing.T, seq, eventName string, image map[string]events.DynamoDBAttributeValue) events.KinesisEventRecord {
	t.Helper()
	data, err := json.Marshal(events.DynamoDBEventRecord{
		EventName: eventName,
		Change:    events.DynamoDBStreamRecord{NewImage: image},
	})
	require.NoError(t, err)
	return events.KinesisEventRecord{
		EventID: "shard-1:" + seq,
		Kinesis: events.KinesisRecord{Data: data, SequenceNumber: seq},
	}
}

func TestConvertDynamoDBImage(t *testing.T) {
	t.Run("valid event", func(t *testing.T) {
		event, err := convertDynamoDBImage(orderConfirmedImage("evt-1"))

		require.NoError(t, err)
		assert.Equal(t, "evt-1", event.ID)
		assert.Equal(t, "order-1", event.AggregateID)
		assert.Equal(t, "Order", event.AggregateType)
		assert.Equal(t, "OrderConfirmed", event.EventType)
		assert.Equal(t, 3, event.Version)
		assert.JSONEq(t, `{"order_id":"order-1"}`, string(event.Data))
		assert.Equal(t, 2026, event.Timestamp.Year())
	})

	t.Run("nil image", func(t *testing.T) {
		_, err := convertDynamoDBImage(nil)
		assert.Error(t, err)
	})

	t.Run("missing required fields", func(t *testing.T) {
		_, err := convertDynamoDBImage(map[string]events.DynamoDBAttributeValue{
			"id": events.NewStringAttribute("evt-1"),
		})
		assert.Error(t, err)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		image := orderConfirmedImage("evt-1")
		image["created_at"] = events.NewStringAttribute("yesterday")
		_, err := convertDynamoDBImage(image)
		assert.Error(t, err)
	})

	t.Run("non-string attribute is ignored", func(t *testing.T) {
		image := orderConfirmedImage("evt-1")
		image["id"] = events.NewNumberAttribute("7")
		_, err := convertDynamoDBImage(image)
		assert.Error(t, err, "id is then missing")
	})
}

func TestConvertFromDynamoDBStreamRecord_OnlyInserts(t *testing.T) {
	for _, name := range []string{"MODIFY", "REMOVE"} {
		event, err := ConvertFromDynamoDBStreamRecord(events.DynamoDBEventRecord{EventName: name})
		require.NoError(t, err)
		assert.Nil(t, event, name)
	}

	event, err := ConvertFromDynamoDBStreamRecord(events.DynamoDBEventRecord{
		EventName: "INSERT",
		Change:    events.DynamoDBStreamRecord{NewImage: orderConfirmedImage("evt-1")},
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.ID)
}

func TestBatchConvertFromKinesisEvent(t *testing.T) {
	batch := events.KinesisEvent{Records: []events.KinesisEventRecord{
		kinesisRecord(t, "1", "INSERT", orderConfirmedImage("evt-1")),
		kinesisRecord(t, "2", "MODIFY", nil),
		{EventID: "3", Kinesis: events.KinesisRecord{Data: []byte("invalid json")}},
	}}

	converted, errs := BatchConvertFromKinesisEvent(batch)

	require.Len(t, converted, 1)
	assert.Equal(t, "evt-1", converted[0].ID)
	assert.Len(t, errs, 1)
}

func TestDispatch_ReportsFailedRecords(t *testing.T) {
	batch := events.KinesisEvent{Records: []events.KinesisEventRecord{
		kinesisRecord(t, "100", "INSERT", orderConfirmedImage("evt-ok")),
		kinesisRecord(t, "101", "INSERT", orderConfirmedImage("evt-fail")),
		{EventID: "junk", Kinesis: events.KinesisRecord{Data: []byte("{"), SequenceNumber: "102"}},
	}}

	var handled []string
	resp := Dispatch(context.Background(), batch, func(_ context.Context, e store.Event) error {
		handled = append(handled, e.ID)
		if e.ID == "evt-fail" {
			return assert.AnError
		}
		return nil
	})

	assert.Equal(t, []string{"evt-ok", "evt-fail"}, handled)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "101", resp.BatchItemFailures[0].ItemIdentifier)
}
