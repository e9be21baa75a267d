package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/unisearch/internal/metrics"
	"github.com/hitoshi/unisearch/internal/model"
	"github.com/hitoshi/unisearch/internal/repository"
)

// ExchangeRecorder はOAuth交換の結果を記録する。metrics.Collectorが満たす。
type ExchangeRecorder interface {
	RecordOAuthExchange(provider string, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordOAuthExchange(string, string) {}

// Service はプロバイダー連携の開始（同意画面URL生成）と完了（コード交換・保存）を扱う。
type Service struct {
	exchangers map[model.Provider]Exchanger
	creds      repository.CredentialRepository
	recorder   ExchangeRecorder
	logger     *slog.Logger
}

// NewService はServiceを生成する。exchangersは担当プロバイダーをキーに登録される。
// recorderがnilの場合は記録しない。
func NewService(creds repository.CredentialRepository, recorder ExchangeRecorder, logger *slog.Logger, exchangers ...Exchanger) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	s := &Service{
		exchangers: make(map[model.Provider]Exchanger, len(exchangers)),
		creds:      creds,
		recorder:   recorder,
		logger:     logger,
	}
	for _, e := range exchangers {
		s.exchangers[e.Provider()] = e
	}
	return s
}

// exchangerFor は設定が揃ったExchangerを返す。
// 未登録・設定不足の場合はmodel.ErrConfigurationをラップしたエラーを返す。
func (s *Service) exchangerFor(provider model.Provider) (Exchanger, error) {
	e, ok := s.exchangers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: no exchanger for %s", model.ErrConfiguration, provider)
	}
	if err := e.Config().Validate(provider); err != nil {
		return nil, err
	}
	return e, nil
}

// AuthURL は指定プロバイダーの同意画面URLを返す。
func (s *Service) AuthURL(provider model.Provider, state string) (string, error) {
	e, err := s.exchangerFor(provider)
	if err != nil {
		return "", err
	}
	return e.AuthURL(state), nil
}

// CompleteOAuth は認可コードをトークンに交換して保存し、保存後の認可情報一覧を返す。
//
// 交換に失敗した場合はストアに一切書き込まない。成功時はUpsertを1回だけ行い、
// 最新の一覧をストアから読み直して返す。
func (s *Service) CompleteOAuth(ctx context.Context, provider model.Provider, code, userID string) (model.Credentials, error) {
	if userID == "" {
		return nil, model.ErrUnauthenticated
	}

	e, err := s.exchangerFor(provider)
	if err != nil {
		s.recorder.RecordOAuthExchange(string(provider), metrics.OutcomeConfigError)
		s.logger.Error("OAuth設定が不足しています",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if code == "" {
		s.recorder.RecordOAuthExchange(string(provider), metrics.OutcomeFailure)
		return nil, fmt.Errorf("%w: %s: authorization code is empty", model.ErrOAuthExchangeFailed, provider)
	}

	cred, err := e.Exchange(ctx, code)
	if err == nil && !cred.Valid() {
		err = errors.New("exchange returned no access token")
	}
	if err != nil {
		s.recorder.RecordOAuthExchange(string(provider), metrics.OutcomeFailure)
		s.logger.Warn("OAuthトークン交換に失敗しました",
			slog.String("provider", string(provider)),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s: %w", model.ErrOAuthExchangeFailed, provider, err)
	}

	cred.UserID = userID
	cred.Provider = provider
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store %s credential: %w", provider, err)
	}
	s.recorder.RecordOAuthExchange(string(provider), metrics.OutcomeSuccess)
	s.logger.Info("プロバイダー連携が完了しました",
		slog.String("provider", string(provider)),
		slog.String("user_id", userID),
	)

	creds, err := s.creds.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload credentials: %w", err)
	}
	return creds, nil
}
