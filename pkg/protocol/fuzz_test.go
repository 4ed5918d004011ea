package protocol

import (
	"testing"
)

// FuzzDecode checks that every codec can re-read what it writes after
// accepting arbitrary client input.
func FuzzDecode(f *testing.F) {
	f.Add([]byte(`{"t":1,"ref":"1","topic":"s1","event":"update","payload":{"field":"name","value":"Ada"}}`))
	f.Add([]byte(`{"t":1,"topic":"s1","event":"next"}`))
	f.Add([]byte(`{"ref":null,"topic":"test","event":"e"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`[]`))
	f.Add([]byte(`null`))
	f.Add([]byte(``))
	f.Add([]byte(`{malformed`))
	f.Add([]byte(`{"ref": 123}`))

	codecs := []Codec{NewJSONCodec(), NewMsgPackCodec()}

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, codec := range codecs {
			msg, err := codec.Decode(data)
			if err != nil {
				continue
			}

			out, err := codec.Encode(msg)
			if err != nil {
				continue
			}

			msg2, err := codec.Decode(out)
			if err != nil {
				t.Errorf("%s: failed to re-parse serialized message: %v", codec.Name(), err)
				continue
			}
			if msg.Type != msg2.Type || msg.Ref != msg2.Ref || msg.Topic != msg2.Topic || msg.Event != msg2.Event {
				t.Errorf("%s: roundtrip mismatch: %+v != %+v", codec.Name(), msg, msg2)
			}
		}
	})
}
