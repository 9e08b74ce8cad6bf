package server

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/taskboard/internal/model"
	"github.com/baiirun/taskboard/internal/tasks"
)

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in      string
		want    flexInt
		wantErr bool
	}{
		{`1`, 1, false},
		{`"2"`, 2, false},
		{`" 3 "`, 3, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"high"`, 0, true},
		{`1.5`, 0, true},
		{`true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got flexInt
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndDate(t *testing.T) {
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2025-01-01T00:00",
		"2025-01-01T00:00:00",
		"2025-01-01T00:00:00Z",
		"2025-01-01T03:00:00+03:00",
		"2025-01-01",
	} {
		got, err := parseEndDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %v", in, got)
	}

	got, err := parseEndDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseEndDate("01/01/2025")
	var verr *tasks.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "endDate", verr.Field)
}

func TestTaskDTO_Draft(t *testing.T) {
	var dto TaskDTO
	require.NoError(t, json.Unmarshal([]byte(`{
		"header": "A",
		"description": "d",
		"priority": "1",
		"assignedUser": "2",
		"endDate": "2025-01-01T00:00",
		"author": 1,
		"status": "started"
	}`), &dto))

	d, err := dto.Draft()
	require.NoError(t, err)
	assert.Equal(t, "A", d.Title)
	assert.Equal(t, model.PriorityHigh, d.Priority)
	assert.Equal(t, int64(2), d.AssignedUser)
	assert.Equal(t, int64(1), d.Author)
	assert.Equal(t, model.StatusStarted, d.Status)
	assert.Equal(t, 2025, d.EndDate.Year())
}
