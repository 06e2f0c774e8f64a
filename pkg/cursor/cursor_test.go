// Copyright (c) 2026 OpenG7. All rights reserved.

package cursor_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenG7/openg7-platform-sub001/pkg/cursor"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	sorts := []struct {
		sort  cursor.Sort
		score float64
	}{
		{cursor.SortNewest, 0},
		{cursor.SortUrgency, 3},
		{cursor.SortVolume, 87.5},
		{cursor.SortCredibility, 2},
	}

	for _, tt := range sorts {
		t.Run(string(tt.sort), func(t *testing.T) {
			marker := cursor.Marker{
				ID:        "0195f0a2-7c3e-7d11-b0aa-1f2e3d4c5b6a",
				CreatedAt: createdAt,
				Score:     tt.score,
			}

			encoded := cursor.Encode(tt.sort, marker)
			decoded, err := cursor.Decode(encoded)
			require.NoError(t, err)

			assert.Equal(t, cursor.Version, decoded.Version)
			assert.Equal(t, tt.sort, decoded.Sort)
			assert.Equal(t, marker.ID, decoded.Marker.ID)
			assert.True(t, marker.CreatedAt.Equal(decoded.Marker.CreatedAt))
			assert.Equal(t, marker.Score, decoded.Marker.Score)
		})
	}
}

func TestDecode_Rejections(t *testing.T) {
	validMarker := cursor.Marker{
		ID:        "item-1",
		CreatedAt: time.Now().UTC(),
	}

	encodeRaw := func(payload string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(payload))
	}

	tests := []struct {
		name    string
		encoded string
		wantErr error
	}{
		{"not_base64", "%%%not-base64%%%", cursor.ErrMalformed},
		{"not_json", encodeRaw("not json at all"), cursor.ErrMalformed},
		{"wrong_version", encodeRaw(`{"v":2,"sort":"NEWEST","marker":{"id":"x","createdAt":"2026-01-01T00:00:00Z","score":0}}`), cursor.ErrVersion},
		{"unknown_sort", encodeRaw(`{"v":1,"sort":"SHINIEST","marker":{"id":"x","createdAt":"2026-01-01T00:00:00Z","score":0}}`), cursor.ErrUnknownSort},
		{"missing_marker_id", encodeRaw(`{"v":1,"sort":"NEWEST","marker":{"createdAt":"2026-01-01T00:00:00Z","score":0}}`), cursor.ErrMarker},
		{"missing_marker_created_at", encodeRaw(`{"v":1,"sort":"NEWEST","marker":{"id":"x","score":0}}`), cursor.ErrMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cursor.Decode(tt.encoded)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Sanity: a real cursor still decodes.
	_, err := cursor.Decode(cursor.Encode(cursor.SortNewest, validMarker))
	assert.NoError(t, err)
}

func TestDecodeFor_SortMismatch(t *testing.T) {
	encoded := cursor.Encode(cursor.SortUrgency, cursor.Marker{
		ID:        "item-1",
		CreatedAt: time.Now().UTC(),
		Score:     2,
	})

	_, err := cursor.DecodeFor(encoded, cursor.SortNewest)
	assert.ErrorIs(t, err, cursor.ErrSortMismatch)

	decoded, err := cursor.DecodeFor(encoded, cursor.SortUrgency)
	require.NoError(t, err)
	assert.Equal(t, cursor.SortUrgency, decoded.Sort)
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		raw     string
		want    cursor.Sort
		wantErr bool
	}{
		{"", cursor.SortNewest, false},
		{"NEWEST", cursor.SortNewest, false},
		{"URGENCY", cursor.SortUrgency, false},
		{"VOLUME", cursor.SortVolume, false},
		{"CREDIBILITY", cursor.SortCredibility, false},
		{"newest", "", true},
		{"RANDOM", "", true},
	}

	for _, tt := range tests {
		sort, err := cursor.ParseSort(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, sort, tt.raw)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 20},
		{"abc", 20},
		{"0", 20},
		{"-5", 20},
		{"1", 1},
		{"50", 50},
		{"100", 100},
		{"101", 100},
		{"9999", 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cursor.ClampLimit(tt.raw), tt.raw)
	}
}
