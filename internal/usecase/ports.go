package usecase

import (
	"context"
	"sync"
	"time"
)

// 現在時刻（テストで差し替える）
type Clock interface {
	Now() time.Time
}

// セッション期限タイマー
type Timer interface {
	Stop() bool
}

// AfterFuncだけを約束。
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type SystemScheduler struct{}

func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// ユーザー向けの一時的なお知らせ
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// お知らせの送り先（投げっぱなし）
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// リクエスト中に出たお知らせを貯める
type NoticeBuffer struct {
	mu      sync.Mutex
	notices []Notice
}

func (b *NoticeBuffer) Add(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, n)
}

func (b *NoticeBuffer) Notices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notice{}, b.notices...)
}

type noticeBufferKey struct{}

func ContextWithNotices(ctx context.Context) (context.Context, *NoticeBuffer) {
	buf := &NoticeBuffer{}
	return context.WithValue(ctx, noticeBufferKey{}, buf), buf
}

// ctxにバッファがあれば積む
func CollectNotice(ctx context.Context, n Notice) {
	if ctx == nil {
		return
	}
	if buf, ok := ctx.Value(noticeBufferKey{}).(*NoticeBuffer); ok {
		buf.Add(n)
	}
}

// 何もしないNotifier
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, n Notice) {
	CollectNotice(ctx, n)
}
