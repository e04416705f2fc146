// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package message

import "encoding/json"

// Encode serializes a Message using the self-describing wire format.
// Spec §1 leaves the concrete serialization unspecified ("any
// self-describing format with the fields listed in §6 suffices"); this
// module picks JSON, the same choice the teacher's ZMQMessage makes in
// cmd/consensus/zmq.go.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserializes a Message. A decode failure is a serialization
// failure per spec §7: the caller is expected to ack the delivery and
// drop the message without mutating any state.
func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}
