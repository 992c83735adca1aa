// Package kinesis turns DynamoDB Streams records delivered through Kinesis
// into committed store events for the Lambda consumers.
package kinesis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/infrastructure/store"
)

var logger = log.WithField("component", "kinesis")

const insert = "INSERT"

// ConvertFromKinesisRecord decodes a Kinesis record carrying a DynamoDB
// Streams change. Non-INSERT changes yield a nil event: events are append-only,
// so only inserts are new facts.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*store.Event, error) {
	var change events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &change); err != nil {
		return nil, errors.Wrap(err, "decode stream record")
	}
	return ConvertFromDynamoDBStreamRecord(change)
}

// ConvertFromDynamoDBStreamRecord decodes a change read straight from DynamoDB Streams.
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*store.Event, error) {
	if record.EventName != insert {
		return nil, nil
	}
	return convertDynamoDBImage(record.Change.NewImage)
}

// convertDynamoDBImage reads the item layout written by DynamoEventStore.
func convertDynamoDBImage(image map[string]events.DynamoDBAttributeValue) (*store.Event, error) {
	if image == nil {
		return nil, errors.New("stream image is nil")
	}

	str := func(name string) string {
		if v, ok := image[name]; ok && v.DataType() == events.DataTypeString {
			return v.String()
		}
		return ""
	}

	event := &store.Event{
		ID:            str("id"),
		AggregateID:   str("aggregate_id"),
		AggregateType: str("aggregate_type"),
		EventType:     str("event_type"),
	}
	if data := str("data"); data != "" {
		event.Data = json.RawMessage(data)
	}
	if created := str("created_at"); created != "" {
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, errors.Wrap(err, "parse created_at")
		}
		event.Timestamp = t
	}
	if v, ok := image["version"]; ok {
		version, err := v.Integer()
		if err != nil {
			return nil, errors.Wrap(err, "parse version")
		}
		event.Version = int(version)
	}

	if event.ID == "" || event.AggregateID == "" || event.EventType == "" {
		return nil, errors.Errorf("missing required fields: id=%q aggregate_id=%q event_type=%q",
			event.ID, event.AggregateID, event.EventType)
	}
	return event, nil
}

// BatchConvertFromKinesisEvent converts every record, collecting per-record
// errors instead of stopping at the first one.
func BatchConvertFromKinesisEvent(kinesisEvent events.KinesisEvent) ([]*store.Event, []error) {
	var converted []*store.Event
	var errs []error
	for _, record := range kinesisEvent.Records {
		event, err := ConvertFromKinesisRecord(record)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "record %s", record.EventID))
			continue
		}
		if event != nil {
			converted = append(converted, event)
		}
	}
	return converted, errs
}

// Dispatch hands every event of the batch to handle and reports the records
// that failed as batch item failures, so Lambda retries only those.
// Undecodable records are logged and skipped.
func Dispatch(ctx context.Context, kinesisEvent events.KinesisEvent, handle func(ctx context.Context, event store.Event) error) events.KinesisEventResponse {
	var resp events.KinesisEventResponse
	for _, record := range kinesisEvent.Records {
		event, err := ConvertFromKinesisRecord(record)
		if err != nil {
			logger.WithError(err).WithField("record_id", record.EventID).Error("skipping undecodable record")
			continue
		}
		if event == nil {
			continue
		}
		if err := handle(ctx, *event); err != nil {
			logger.WithError(err).WithFields(log.Fields{
				"event_type":   event.EventType,
				"aggregate_id": event.AggregateID,
				"sequence":     record.Kinesis.SequenceNumber,
			}).Warn("event handling failed")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
		}
	}
	return resp
}
