package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tools is the AI tools list. It travels as a single ", " joined string and
// decodes from either that string or a JSON array. Tool names cannot contain
// commas; catalog.CheckOption refuses them.
type Tools []string

const toolsSeparator = ", "

func (t Tools) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(t, toolsSeparator))
}

func (t *Tools) UnmarshalJSON(data []byte) error {
	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		*t = SplitTools(joined)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("aiToolsUsed must be a string or string array: %w", err)
	}
	*t = append(Tools{}, list...)
	return nil
}

// Metadata is the non-sensitive envelope sent alongside the ciphertext.
type Metadata struct {
	AuthorID  string    `json:"authorId"`
	IsReport  bool      `json:"isReport"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// UploadRequest is the body of a report upload. Data holds the packed
// envelope and is base64 encoded on the wire.
type UploadRequest struct {
	ThreadID     string   `json:"threadId"`
	ThreadTitle  string   `json:"threadTitle,omitempty"`
	Data         []byte   `json:"data"`
	Metadata     Metadata `json:"metadata"`
	MessageIndex *int     `json:"messageIndex,omitempty"`
}

// Message is one downloaded thread message.
type Message struct {
	Index    int
	Metadata Metadata
	Data     []byte
}

// Loaded is a decrypted report together with where it came from.
type Loaded struct {
	Report       Report
	MessageIndex int
}

// EncodePayload serializes the report as the plaintext that gets encrypted.
func EncodePayload(r Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return data, nil
}

// DecodePayload parses a decrypted plaintext. A missing status is treated as
// draft.
func DecodePayload(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if r.Status == "" {
		r.Status = StatusDraft
	}
	if !r.Status.Valid() {
		return Report{}, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, r.Status)
	}
	for i := range r.Entries {
		if r.Entries[i].AIToolsUsed == nil {
			r.Entries[i].AIToolsUsed = Tools{}
		}
	}
	return r, nil
}

// ThreadQuery selects the messages to download. A nil MessageIndex asks for
// the whole thread.
type ThreadQuery struct {
	ThreadID     string
	AuthorID     string
	MessageIndex *int
}
