package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringField(t *testing.T) {
	payload := []byte(`{"e": "depthUpdate","s":"BTCUSDT","x":"e"}`)

	v, ok := StringField(payload, "e")
	assert.True(t, ok)
	assert.Equal(t, "depthUpdate", string(v))

	assert.True(t, Equal(payload, "s", "BTCUSDT"))
	assert.False(t, Equal(payload, "s", "ETHUSDT"))

	_, ok = StringField(payload, "missing")
	assert.False(t, ok)
}

func TestStringFieldSkipsValueMatches(t *testing.T) {
	payload := []byte(`{"channel":"action","action":"snapshot"}`)
	v, ok := StringField(payload, "action")
	assert.True(t, ok)
	assert.Equal(t, "snapshot", string(v))
}

func TestIntField(t *testing.T) {
	testCases := []struct {
		desc    string
		payload string
		key     string
		want    int64
		ok      bool
	}{
		{desc: "plain", payload: `{"u":160}`, key: "u", want: 160, ok: true},
		{desc: "quoted", payload: `{"ts":"1597026383085"}`, key: "ts", want: 1597026383085, ok: true},
		{desc: "negative", payload: `{"prevSeqId":-1}`, key: "prevSeqId", want: -1, ok: true},
		{desc: "not a number", payload: `{"u":"abc"}`, key: "u", ok: false},
		{desc: "missing", payload: `{"U":1}`, key: "u", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := IntField([]byte(tc.payload), tc.key)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestHasField(t *testing.T) {
	assert.True(t, HasField([]byte(`{"result":null,"id":1}`), "result"))
	assert.False(t, HasField([]byte(`{"e":"result"}`), "result"))
}
