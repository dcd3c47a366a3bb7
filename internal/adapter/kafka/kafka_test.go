package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"water-monitoring/internal/model"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeMessageWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeMessageWriter) Close() error {
	f.closed = true
	return nil
}

func testAlert() model.LevelAlert {
	return model.LevelAlert{
		MeasurementID: "wl-1",
		LocationID:    "loc-1",
		LocationName:  "Secondary Canal B",
		WaterLevel:    7.5,
		MinLevel:      8,
		MaxLevel:      12,
		Status:        "critical",
		Message:       "Below critical minimum level",
		RecordedBy:    "officer@irrigation.gov",
		RecordedAt:    time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(testAlert())
	require.NoError(t, err)

	assert.Equal(t, []byte("loc-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"status":"critical"`)
	assert.Contains(t, string(msg.Value), `"water_level":7.5`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "alert_status", msg.Headers[0].Key)
	assert.Equal(t, []byte("critical"), msg.Headers[0].Value)
	assert.Equal(t, "recorded_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[1].Value)
}

func TestPublishAlert(t *testing.T) {
	fake := &fakeMessageWriter{}
	w := &Writer{writer: fake, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.PublishAlert(context.Background(), testAlert()))
	require.Len(t, fake.msgs, 1)
	assert.Equal(t, []byte("loc-1"), fake.msgs[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, fake.closed)
}

func TestPublishAlert_WriteFailure(t *testing.T) {
	fake := &fakeMessageWriter{err: errors.New("leader not available")}
	w := &Writer{writer: fake, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.PublishAlert(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish level alert")
}
