package pid

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUUID(t *testing.T) {
	t.Run("generates valid non-zero UUID", func(t *testing.T) {
		u := NewUUID()
		assert.False(t, u.IsZero())
		assert.Len(t, u.String(), 36)
	})

	t.Run("generates unique UUIDs", func(t *testing.T) {
		assert.False(t, NewUUID().Equal(NewUUID()))
	})
}

func TestParseUUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "valid UUID with hyphens",
			input: "af4bec86-5297-4521-89d7-13ca579f6fb2",
			want:  "af4bec86-5297-4521-89d7-13ca579f6fb2",
		},
		{
			name:  "uppercase is normalized",
			input: "AF4BEC86-5297-4521-89D7-13CA579F6FB2",
			want:  "af4bec86-5297-4521-89d7-13ca579f6fb2",
		},
		{
			name:  "without hyphens",
			input: "af4bec865297452189d713ca579f6fb2",
			want:  "af4bec86-5297-4521-89d7-13ca579f6fb2",
		},
		{name: "empty string", input: "", wantErr: true},
		{name: "not a uuid", input: "not-a-uuid", wantErr: true},
		{name: "invalid characters", input: "af4bec86-5297-4521-89d7-13ca579f6fbg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseUUID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestMustParseUUID(t *testing.T) {
	assert.Panics(t, func() { MustParseUUID("nope") })
	assert.NotPanics(t, func() { MustParseUUID("af4bec86-5297-4521-89d7-13ca579f6fb2") })
}

func TestUUID_JSON(t *testing.T) {
	t.Run("round trips inside a Pid", func(t *testing.T) {
		in := Pid{ID: MustParseUUID("af4bec86-5297-4521-89d7-13ca579f6fb2"), URI: "https://example.com/a"}
		data, err := json.Marshal(in)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"id":"af4bec86-5297-4521-89d7-13ca579f6fb2"`)

		var out Pid
		require.NoError(t, json.Unmarshal(data, &out))
		assert.True(t, in.ID.Equal(out.ID))
	})

	t.Run("zero marshals to null", func(t *testing.T) {
		data, err := json.Marshal(UUID{})
		require.NoError(t, err)
		assert.Equal(t, "null", string(data))
	})

	t.Run("null and empty decode to zero", func(t *testing.T) {
		var u UUID
		require.NoError(t, json.Unmarshal([]byte(`null`), &u))
		assert.True(t, u.IsZero())
		require.NoError(t, json.Unmarshal([]byte(`""`), &u))
		assert.True(t, u.IsZero())
	})

	t.Run("rejects non-string", func(t *testing.T) {
		var u UUID
		assert.Error(t, json.Unmarshal([]byte(`42`), &u))
	})
}

func TestUUID_Scan(t *testing.T) {
	want := MustParseUUID("af4bec86-5297-4521-89d7-13ca579f6fb2")

	t.Run("string", func(t *testing.T) {
		var u UUID
		require.NoError(t, u.Scan(want.String()))
		assert.True(t, want.Equal(u))
	})

	t.Run("text bytes", func(t *testing.T) {
		var u UUID
		require.NoError(t, u.Scan([]byte(want.String())))
		assert.True(t, want.Equal(u))
	})

	t.Run("raw bytes", func(t *testing.T) {
		raw := uuid.MustParse(want.String())
		var u UUID
		require.NoError(t, u.Scan(raw[:]))
		assert.True(t, want.Equal(u))
	})

	t.Run("nil", func(t *testing.T) {
		u := NewUUID()
		require.NoError(t, u.Scan(nil))
		assert.True(t, u.IsZero())
	})

	t.Run("unsupported type", func(t *testing.T) {
		var u UUID
		assert.Error(t, u.Scan(42))
	})
}

func TestUUID_Value(t *testing.T) {
	v, err := UUID{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	u := NewUUID()
	v, err = u.Value()
	require.NoError(t, err)
	assert.Equal(t, u.String(), v)
}
