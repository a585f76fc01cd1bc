package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EventEdge/internal/domain/models"
	"EventEdge/pkg/queue"
)

func TestRescoreJobHandle(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{})
	_, err := f.uc.Process(context.Background(), models.ClassifiedEvent{Event: models.EventMeta{ID: "evt-7"}, Read: longRead()})
	require.NoError(t, err)

	job := NewRescoreJob(f.uc, nil)
	assert.Equal(t, RescoreJobType, job.Type())

	require.NoError(t, job.Handle(context.Background(), rescoreMsg(t, RescorePayload{EventID: "evt-7", RequestID: "r-1"})))
	assert.Equal(t, 2, f.store.saves)

	assert.NoError(t, job.Handle(context.Background(), rescoreMsg(t, RescorePayload{EventID: "gone"})), "missing decisions are not retried")
	assert.Error(t, job.Handle(context.Background(), rescoreMsg(t, RescorePayload{})))
	assert.Error(t, job.Handle(context.Background(), queue.Message{Type: RescoreJobType, Payload: json.RawMessage(`42`)}))
	assert.Error(t, job.Handle(context.Background(), queue.Message{Type: RescoreJobType}))
}

func TestRescorePayloadQueueKey(t *testing.T) {
	var k queue.Keyed = RescorePayload{EventID: "evt-3", RequestID: "r-9"}
	assert.Equal(t, "evt-3", k.QueueKey())
}

func rescoreMsg(t *testing.T, p RescorePayload) queue.Message {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return queue.Message{ID: "m-1", Type: RescoreJobType, Key: p.QueueKey(), Payload: raw}
}
