// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// EventID builds the canonical document primary key for an event,
// derived from the owning calendar and the remote event identifier.
func EventID(calendarID, remoteID string) string {
	return "calendar:" + calendarID + ":" + remoteID
}

// IDFromContent generates a deterministic identifier fragment from text
// using BLAKE2b hashing. Identical content produces identical fragments.
func IDFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentID resolves the stable document identity for an event.
// The envelope message id wins when present. Without it, the id is
// derived from the calendar and remote id, falling back to a content
// hash for records that carry no remote identifier at all. Events with
// no calendar identity cannot be indexed and return ErrMissingIdentity.
func (e *Event) DocumentID() (string, error) {
	if e.Envelope.MessageID != "" {
		return e.Envelope.MessageID, nil
	}
	if e.Envelope.ContextID == "" {
		return "", ErrMissingIdentity
	}
	if e.Envelope.RemoteID != "" {
		return EventID(e.Envelope.ContextID, e.Envelope.RemoteID), nil
	}
	if e.Body.Text == "" && e.Body.StartTime == "" {
		return "", ErrMissingIdentity
	}
	return EventID(e.Envelope.ContextID, IDFromContent(e.Body.Text+"|"+e.Body.StartTime)), nil
}
