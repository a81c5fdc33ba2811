package notify

import (
	"context"

	"github.com/dokkazy/dtp-frontend-sub000/internal/usecase"

	"go.uber.org/zap"
)

// ZapNotifier はお知らせをログに残し、リクエスト中ならレスポンス用に積む。
type ZapNotifier struct {
	logger *zap.Logger
}

func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapNotifier{logger: logger}
}

func (n *ZapNotifier) Notify(ctx context.Context, notice usecase.Notice) {
	switch notice.Level {
	case usecase.NoticeWarning:
		n.logger.Warn("user notice", zap.String("message", notice.Message))
	default:
		n.logger.Info("user notice", zap.String("message", notice.Message))
	}
	usecase.CollectNotice(ctx, notice)
}
