package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/hitoshi/unisearch/internal/model"
)

// unknownChannel はチャンネル名が取得できない場合の表示名。
const unknownChannel = "unknown"

// SlackSearcher はSlackの search.messages APIを呼び出すアダプター。
// トークンはユーザートークン（xoxp-）を想定する。
type SlackSearcher struct {
	httpClient *http.Client
	apiURL     string // テスト用に差し替え可能（末尾スラッシュ必須）
	sanitizer  Sanitizer
	logger     *slog.Logger
}

// NewSlackSearcher はSlackSearcherを生成する。
func NewSlackSearcher(httpClient *http.Client, sanitizer Sanitizer, logger *slog.Logger) *SlackSearcher {
	return &SlackSearcher{
		httpClient: httpClient,
		apiURL:     slack.APIURL,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// Provider はmodel.ProviderSlackを返す。
func (s *SlackSearcher) Provider() model.Provider {
	return model.ProviderSlack
}

// Search はメッセージを新しい順に最大10件検索する。
func (s *SlackSearcher) Search(ctx context.Context, query string, cred *model.ProviderCredential) ([]model.NormalizedResult, error) {
	if err := checkCredential(model.ProviderSlack, cred); err != nil {
		return failed(s.logger, model.ProviderSlack, err)
	}

	params := slack.NewSearchParameters()
	params.Sort = "timestamp"
	params.SortDirection = "desc"
	params.Count = resultLimit

	msgs, err := s.client(cred).SearchMessagesContext(ctx, query, params)
	if err != nil {
		return failed(s.logger, model.ProviderSlack, err)
	}

	results := make([]model.NormalizedResult, 0, len(msgs.Matches))
	for _, m := range msgs.Matches {
		results = append(results, sanitize(s.sanitizer, slackMessageToResult(m), defaults{}))
	}
	return results, nil
}

// Verify はauth.testでトークンがまだ有効かを確認する。
func (s *SlackSearcher) Verify(ctx context.Context, cred *model.ProviderCredential) error {
	if err := checkCredential(model.ProviderSlack, cred); err != nil {
		return err
	}
	if _, err := s.client(cred).AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack auth.test: %w", err)
	}
	return nil
}

func (s *SlackSearcher) client(cred *model.ProviderCredential) *slack.Client {
	return slack.New(cred.AccessToken,
		slack.OptionHTTPClient(s.httpClient),
		slack.OptionAPIURL(s.apiURL),
	)
}

func slackMessageToResult(m slack.SearchMessage) model.NormalizedResult {
	user := m.Username
	if user == "" {
		user = m.User
	}
	channel := m.Channel.Name
	if channel == "" {
		channel = unknownChannel
	}
	return model.NormalizedResult{
		Provider:  model.ProviderSlack,
		Kind:      model.ResultKindMessage,
		Text:      m.Text,
		User:      user,
		Channel:   channel,
		URL:       m.Permalink,
		Timestamp: parseSlackTimestamp(m.Timestamp),
	}
}

// parseSlackTimestamp は "1700000000.000100" 形式のtsを時刻に変換する。
// 解析できない場合はnilを返す。
func parseSlackTimestamp(ts string) *time.Time {
	if ts == "" {
		return nil
	}
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return nil
	}
	var usec int64
	if fracPart != "" {
		if len(fracPart) > 6 {
			fracPart = fracPart[:6]
		}
		fracPart += strings.Repeat("0", 6-len(fracPart))
		usec, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return nil
		}
	}
	t := time.Unix(sec, usec*int64(time.Microsecond)).UTC()
	return &t
}

// compile-time interface check
var (
	_ Searcher = (*SlackSearcher)(nil)
	_ Verifier = (*SlackSearcher)(nil)
)
