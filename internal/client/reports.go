package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/tidwall/gjson"
)

// UploadReport posts an encrypted report. Any non-2xx answer is a failure.
func (c *Client) UploadReport(ctx context.Context, req report.UploadRequest) error {
	status, body, err := c.postJSON(ctx, c.reports, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if !ok(status) {
		return statusError(ErrSubmission, status, body)
	}
	return nil
}

// DownloadThread lists the messages of a thread, or the single message at
// query.MessageIndex. Messages that do not carry their own index get the
// requested one in the single-message case.
func (c *Client) DownloadThread(ctx context.Context, query report.ThreadQuery) ([]report.Message, error) {
	params := url.Values{}
	params.Set("threadId", query.ThreadID)
	if query.AuthorID != "" {
		params.Set("authorId", query.AuthorID)
	}
	if query.MessageIndex != nil {
		params.Set("messageIndex", strconv.Itoa(*query.MessageIndex))
	}

	status, body, err := c.get(ctx, c.reports, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrThreadFetch, err)
	}
	if !ok(status) {
		return nil, statusError(ErrThreadFetch, status, body)
	}
	return parseMessages(body, query.MessageIndex)
}

// ParseMessages reads a message list that is either a bare array or wrapped
// in {"messages": [...]}. A single message object is accepted too. A message
// without an index field is indexed by its position.
//
// Only report messages have their data decoded. A report whose data cannot be
// decoded is kept with nil Data so the caller can skip it on its own.
func ParseMessages(body []byte) ([]report.Message, error) {
	return parseMessages(body, nil)
}

func parseMessages(body []byte, requested *int) ([]report.Message, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrThreadFetch)
	}

	root := gjson.ParseBytes(body)
	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.Get("messages").IsArray():
		items = root.Get("messages").Array()
	case root.Get("metadata").Exists():
		items = []gjson.Result{root}
	case root.IsObject():
		items = nil
	default:
		return nil, fmt.Errorf("%w: unexpected message list", ErrThreadFetch)
	}

	out := make([]report.Message, 0, len(items))
	for pos, item := range items {
		msg := report.Message{Index: pos}
		if requested != nil {
			msg.Index = *requested
		}
		if idx := firstOf(item, "messageIndex", "index"); idx.Exists() {
			msg.Index = int(idx.Int())
		}

		meta := item.Get("metadata")
		msg.Metadata = report.Metadata{
			AuthorID:  meta.Get("authorId").String(),
			IsReport:  meta.Get("isReport").Bool(),
			Timestamp: parseTimestamp(meta.Get("timestamp")),
			Status:    report.Status(meta.Get("status").String()),
		}

		if msg.Metadata.IsReport {
			// nil Data fails to open downstream and is counted as skipped.
			msg.Data, _ = decodeData(firstOf(item, "data", "payload"))
		}
		out = append(out, msg)
	}
	return out, nil
}

func firstOf(item gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := item.Get(p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// decodeData accepts base64 text (standard or URL alphabet) or an array of
// byte values.
func decodeData(v gjson.Result) ([]byte, error) {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return nil, nil
	case v.IsArray():
		values := v.Array()
		out := make([]byte, len(values))
		for i, b := range values {
			n := b.Int()
			if b.Type != gjson.Number || n < 0 || n > 255 {
				return nil, fmt.Errorf("data[%d] is not a byte", i)
			}
			out[i] = byte(n)
		}
		return out, nil
	case v.Type == gjson.String:
		s := strings.TrimSpace(v.Str)
		for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
			if out, err := enc.DecodeString(s); err == nil {
				return out, nil
			}
		}
		return nil, fmt.Errorf("data is not base64")
	}
	return nil, fmt.Errorf("unsupported data encoding")
}

// parseTimestamp accepts RFC 3339 text or epoch milliseconds. Anything else
// yields the zero time.
func parseTimestamp(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.String:
		if t, err := time.Parse(time.RFC3339Nano, v.Str); err == nil {
			return t
		}
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC()
	}
	return time.Time{}
}
