package realtime

import (
	"context"
	"log"
	"sync"

	"github.com/mwenda27/chat_link/cache"
	"github.com/redis/go-redis/v9"
)

// Table names carried on the wire. Events have no payload beyond the table
// name: subscribers only learn "something changed, re-fetch".
const (
	TableConversations = "conversations"
	TableMessages      = "messages"
	TableProfiles      = "profiles"
	TableReports       = "chat_reports"
)

const channelName = "chatlink:changes"

// ChangeFeed fans table-change events out to every instance over Redis
// pub/sub and turns them into cache invalidations plus hub notifications.
// Without a REDIS_URL it degrades to in-process dispatch, which is exact on
// a single node.
type ChangeFeed struct {
	rdb *redis.Client
	qc  *cache.QueryCache

	handlerMu sync.RWMutex
	handlers  []func(table string)

	closeOnce sync.Once
	done      chan struct{}
}

// Default is the session-scoped singleton; Init sets it up once at boot and
// Close tears it down exactly once.
var Default *ChangeFeed

func Init(redisURL string, qc *cache.QueryCache) error {
	feed := &ChangeFeed{qc: qc, done: make(chan struct{})}
	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return err
		}
		feed.rdb = redis.NewClient(opt)
	} else {
		log.Println("⚠️ REDIS_URL not set, change feed running in-process only")
	}
	Default = feed
	return nil
}

// Publish emits a change event for table. Safe to call before Init; mutations
// made during boot simply have no subscribers yet.
func Publish(ctx context.Context, table string) {
	if Default == nil {
		return
	}
	Default.Publish(ctx, table)
}

// Notify registers fn to run for every change event this instance sees.
func Notify(fn func(table string)) {
	if Default == nil {
		return
	}
	Default.handlerMu.Lock()
	Default.handlers = append(Default.handlers, fn)
	Default.handlerMu.Unlock()
}

func (f *ChangeFeed) Publish(ctx context.Context, table string) {
	if f.rdb == nil {
		f.dispatch(table)
		return
	}
	if err := f.rdb.Publish(ctx, channelName, table).Err(); err != nil {
		log.Printf("Change feed publish failed for %s: %v", table, err)
		// publish the local effect anyway so this instance stays fresh
		f.dispatch(table)
	}
}

// Start begins consuming the Redis channel. No-op in in-process mode, where
// Publish dispatches synchronously.
func (f *ChangeFeed) Start(ctx context.Context) {
	if f.rdb == nil {
		return
	}
	sub := f.rdb.Subscribe(ctx, channelName)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-f.done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				f.dispatch(msg.Payload)
			}
		}
	}()
	log.Println("✅ Change feed subscribed to", channelName)
}

// Close shuts the feed down; double-close is safe.
func (f *ChangeFeed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
		if f.rdb != nil {
			if err := f.rdb.Close(); err != nil {
				log.Printf("Change feed close: %v", err)
			}
		}
	})
}

// dispatch maps a table event onto the cache keys derived from that table
// and wakes registered handlers.
func (f *ChangeFeed) dispatch(table string) {
	if f.qc != nil {
		for _, prefix := range prefixesFor(table) {
			f.qc.InvalidatePrefix(prefix)
		}
	}
	f.handlerMu.RLock()
	handlers := f.handlers
	f.handlerMu.RUnlock()
	for _, fn := range handlers {
		fn(table)
	}
}

func prefixesFor(table string) []string {
	switch table {
	case TableConversations:
		return []string{"conversations:"}
	case TableMessages:
		// the conversation list embeds last message and unread count
		return []string{"messages:", "conversations:"}
	case TableProfiles:
		// the conversation list embeds the other participant's profile
		return []string{"profiles:", "conversations:"}
	case TableReports:
		return []string{"admin:"}
	default:
		return nil
	}
}
