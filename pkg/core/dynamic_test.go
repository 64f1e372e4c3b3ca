package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamicValue_Kinds(t *testing.T) {
	s, ok := StringValue("x").AsString()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = StringValue("x").AsInt()
	assert.False(t, ok, "tags must match exactly")

	_, ok = IntValue(3).AsFloat()
	assert.False(t, ok, "an int64 is not a float64")

	_, ok = FloatValue(3.0).AsInt()
	assert.False(t, ok, "a float64 is not an int64")

	assert.Equal(t, KindUnset, UnsetValue().Kind())
}

func TestDynamicValue_UnmarshalNumbers(t *testing.T) {
	var v DynamicValue

	require.NoError(t, json.Unmarshal([]byte(`3`), &v))
	i, ok := v.AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(3), i)

	require.NoError(t, json.Unmarshal([]byte(`3.0`), &v))
	f, ok := v.AsFloat()
	assert.True(t, ok, "a decimal point forces float")
	assert.Equal(t, 3.0, f)

	require.NoError(t, json.Unmarshal([]byte(`1e3`), &v))
	f, ok = v.AsFloat()
	assert.True(t, ok, "an exponent forces float")
	assert.Equal(t, 1000.0, f)
}

func TestDynamicValue_UnmarshalNullAndObject(t *testing.T) {
	var v DynamicValue

	require.NoError(t, json.Unmarshal([]byte(`null`), &v))
	assert.Equal(t, KindUnset, v.Kind())

	require.NoError(t, json.Unmarshal([]byte(`{"nested": [1, {"deep": 2}]}`), &v))
	assert.Equal(t, KindUnset, v.Kind())
}

func TestDynamicValue_UnmarshalArray(t *testing.T) {
	var v DynamicValue
	require.NoError(t, json.Unmarshal([]byte(`["a", true, 2, 2.5]`), &v))

	arr, ok := v.AsArray()
	require.True(t, ok)
	require.Len(t, arr, 4)
	assert.Equal(t, KindString, arr[0].Kind())
	assert.Equal(t, KindBool, arr[1].Kind())
	assert.Equal(t, KindInt64, arr[2].Kind())
	assert.Equal(t, KindFloat64, arr[3].Kind())
}

func TestDynamicMap_InsertionOrder(t *testing.T) {
	m := NewDynamicMap()
	m.Set("b", IntValue(1))
	m.Set("a", IntValue(2))
	m.Set("c", IntValue(3))
	m.Set("b", IntValue(4)) // overwrite keeps position

	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	assert.Equal(t, 3, m.Len())

	v, ok := m.Get("b")
	require.True(t, ok)
	i, _ := v.AsInt()
	assert.Equal(t, int64(4), i)
}

func TestDynamicMap_JSONRoundTrip(t *testing.T) {
	m := NewDynamicMap()
	m.Set("zone", FloatValue(2.5))
	m.Set("visualize_zone", BoolValue(true))
	m.Set("mesh_type", IntValue(10))
	m.Set("next_frame", ArrayValue(StringValue("a"), StringValue("b")))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var got DynamicMap
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, m.Keys(), got.Keys())
	for _, key := range m.Keys() {
		want, _ := m.Get(key)
		have, ok := got.Get(key)
		require.True(t, ok, "key %s lost in round trip", key)
		assert.Equal(t, want.Kind(), have.Kind(), "key %s changed kind", key)
	}
}

func TestDynamicMap_CloneIsIndependent(t *testing.T) {
	m := NewDynamicMap()
	m.Set("next_frame", ArrayValue(StringValue("a")))

	c := m.Clone()
	c.Set("next_frame", StringValue("overwritten"))
	c.Set("extra", BoolValue(true))

	assert.Equal(t, []string{"next_frame"}, m.Keys())
	v, _ := m.Get("next_frame")
	assert.Equal(t, KindArray, v.Kind())
}

func TestTransformRecord_CloneIsDeep(t *testing.T) {
	meta := NewDynamicMap()
	meta.Set("zone", FloatValue(1.0))

	rec := TransformRecord{
		ParentFrameID:   "map",
		ChildFrameID:    "robot",
		ActiveTransform: true,
		Metadata:        meta,
	}
	rec.Transform.Translation.X = 5.0

	c := rec.Clone()
	c.Transform.Translation.X = 9.0
	c.Metadata.Set("zone", FloatValue(2.0))

	assert.Equal(t, 5.0, rec.Transform.Translation.X)
	v, _ := rec.Metadata.Get("zone")
	f, _ := v.AsFloat()
	assert.Equal(t, 1.0, f)
}
