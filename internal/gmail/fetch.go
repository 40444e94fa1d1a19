package gmail

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// InboundMessage is an unread customer email pulled from the inbox.
type InboundMessage struct {
	ID        string
	ThreadID  string
	MessageID string // RFC 5322 Message-ID
	From      string // raw From header
	Subject   string
	Date      time.Time
	Body      string
}

const unreadQuery = "is:unread"

// FetchUnread lists up to limit unread INBOX messages and downloads them with a
// bounded worker pool. Messages that fail to download or parse are skipped;
// the first such error is returned alongside whatever succeeded. Results
// are ordered oldest first.
func FetchUnread(ctx context.Context, svc *gmailv1.Service, limit int) ([]InboundMessage, error) {
	ids, err := listUnread(ctx, svc, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	type result struct {
		msg InboundMessage
		err error
	}
	jobs := make(chan string, len(ids))
	results := make(chan result, len(ids))

	const workerCount = 8
	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for id := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				msg, err := fetchOne(ctx, svc, id)
				results <- result{msg: msg, err: err}
			}
		}()
	}
	for _, id := range ids {
		jobs <- id
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]InboundMessage, 0, len(ids))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		out = append(out, r.msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if firstErr == nil {
		firstErr = ctx.Err()
	}
	return out, firstErr
}

func listUnread(ctx context.Context, svc *gmailv1.Service, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	call := svc.Users.Messages.List("me").LabelIds("INBOX").Q(unreadQuery).MaxResults(int64(min(limit, 500)))
	var ids []string
	pageToken := ""
	for len(ids) < limit {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			if len(ids) == limit {
				break
			}
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func fetchOne(ctx context.Context, svc *gmailv1.Service, id string) (InboundMessage, error) {
	msg, err := svc.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
	if err != nil {
		return InboundMessage{}, fmt.Errorf("get message %s: %w", id, err)
	}
	raw, err := decodeRaw(msg.Raw)
	if err != nil {
		return InboundMessage{}, fmt.Errorf("decode message %s: %w", id, err)
	}
	in, err := parseRaw(raw)
	if err != nil {
		return InboundMessage{}, fmt.Errorf("message %s: %w", id, err)
	}
	in.ID = msg.Id
	in.ThreadID = msg.ThreadId
	if in.Date.IsZero() && msg.InternalDate > 0 {
		in.Date = time.UnixMilli(msg.InternalDate).UTC()
	}
	return in, nil
}
