package core

// error_messages.go maps technical errors to messages shown to users.
//
// Codes are stable so users can quote them to support:
//
//	FILE001 file too large          FILE002 no data rows
//	FILE003 no file provided        FILE004 unreadable upload
//	VAL001  unknown entity          VAL002  import has no valid rows
//	IMP001  import cancelled        IMP002  too many concurrent imports
//	IMP003  import session expired  IMP004  import already started
//	IMP005  request timed out         IMP006  import not started
//	STO001  document not found      STO002  batch limit exceeded
//	STO003  store unreachable       STO004  transaction conflict
//	AUTH001 not an administrator    AUTH002 invalid API key
//	RATE001 rate limited
//	ERR000  anything else
//
// Sentinel errors are matched with errors.Is first; otherwise the message is
// matched case-insensitively against patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

// UserMessage is a user-facing description of an error.
type UserMessage struct {
	Message string `json:"error"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgFileTooLarge   = UserMessage{"ファイルサイズが上限を超えています", "ファイルを分割して再度アップロードしてください", "FILE001"}
	msgNoDataRows     = UserMessage{"CSVファイルにデータ行がありません", "ヘッダー行とデータ行があることを確認してください", "FILE002"}
	msgNoFile         = UserMessage{"ファイルが選択されていません", "CSVファイルを選択してください", "FILE003"}
	msgBadUpload      = UserMessage{"ファイルを読み込めませんでした", "ファイルを確認して再度アップロードしてください", "FILE004"}
	msgUnknownEntity  = UserMessage{"インポート対象が不明です", "対象のデータ種別を確認してください", "VAL001"}
	msgNothingToWrite = UserMessage{"取り込み可能な行がありません", "エラー内容を修正して再度アップロードしてください", "VAL002"}
	msgCancelled      = UserMessage{"インポートは中断されました", "必要に応じて失敗した行を再度インポートしてください", "IMP001"}
	msgBusy           = UserMessage{"現在ほかのインポートが実行中です", "しばらく待ってから再度お試しください", "IMP002"}
	msgSessionGone    = UserMessage{"インポートセッションが見つかりません", "有効期限が切れた可能性があります。再度アップロードしてください", "IMP003"}
	msgAlreadyStarted = UserMessage{"このインポートはすでに開始されています", "進捗画面で結果を確認してください", "IMP004"}
	msgNotStarted     = UserMessage{"インポートはまだ開始されていません", "インポートを開始してから結果を確認してください", "IMP006"}
	msgTimeout        = UserMessage{"処理がタイムアウトしました", "ファイルを分割するか、時間をおいて再度お試しください", "IMP005"}
	msgNotFound       = UserMessage{"対象のデータが見つかりません", "ほかの操作で削除された可能性があります。最新の状態で再度お試しください", "STO001"}
	msgBatchLimit     = UserMessage{"一度に書き込める件数を超えました", "管理者に連絡してください", "STO002"}
	msgUnreachable    = UserMessage{"データベースに接続できません", "時間をおいて再度お試しください", "STO003"}
	msgConflict       = UserMessage{"ほかの更新と競合しました", "再度お試しください", "STO004"}
	msgNotAdmin       = UserMessage{"この操作には管理者権限が必要です", "管理者アカウントで操作してください", "AUTH001"}
	msgBadKey         = UserMessage{"認証に失敗しました", "APIキーを確認してください", "AUTH002"}
	msgRateLimited    = UserMessage{"リクエストが多すぎます", "しばらく待ってから再度お試しください", "RATE001"}

	defaultMessage = UserMessage{"予期しないエラーが発生しました", "再度お試しいただくか、サポートに連絡してください", "ERR000"}
)

var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrNoDataRows, msgNoDataRows},
	{ErrNoFile, msgNoFile},
	{ErrUnknownEntity, msgUnknownEntity},
	{ErrNothingToImport, msgNothingToWrite},
	{ErrImportCancelled, msgCancelled},
	{ErrTooManyImports, msgBusy},
	{ErrImportNotFound, msgSessionGone},
	{ErrAlreadyStarted, msgAlreadyStarted},
	{ErrNotStarted, msgNotStarted},
	{ErrNotAdmin, msgNotAdmin},
	{store.ErrNotFound, msgNotFound},
	{store.ErrBatchTooLarge, msgBatchLimit},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
}

var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"multipart", msgBadUpload},
	{"connection refused", msgUnreachable},
	{"no reachable servers", msgUnreachable},
	{"server selection", msgUnreachable},
	{"connection reset", msgUnreachable},
	{"writeconflict", msgConflict},
	{"write conflict", msgConflict},
	{"deadlock", msgConflict},
	{"could not serialize", msgConflict},
	{"invalid api key", msgBadKey},
	{"rate limit", msgRateLimited},
	{"timeout", msgTimeout},
}

// MapError converts err to a user message. nil maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}
	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (コード: XXX) Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (コード: %s) %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
