package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
)

var (
	errBadRequestBody      = errors.New("無効なリクエスト形式です。")
	errInvalidBookingID    = errors.New("無効な予約 ID です。")
	errInvalidUserID       = errors.New("無効なユーザー ID です。")
	errInvalidRoomID       = errors.New("無効な会議室 ID です。")
	errMissingSessionToken = errors.New("認証トークンを指定してください")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, payload := errorPayload(err)
	r.writeJSON(ctx, w, status, payload)
}

// errorPayload maps service errors to a status code and response body.
func errorPayload(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, application.ErrSessionExpired):
		return http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "セッションの有効期限が切れました。再度ログインしてください。",
		}
	case errors.Is(err, application.ErrSessionRevoked), errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_INVALID",
			Message:   "セッションが無効です。再度ログインしてください。",
		}
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"}
	case errors.Is(err, application.ErrConflict):
		return http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_CONFLICT",
			Message:   "指定された時間帯は既に予約されているか、会議室の利用可能時間外です。",
		}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "同じ内容のリソースが既に存在します。",
		}
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			Message: "入力内容に誤りがあります。",
			Errors:  localizeValidationErrors(vErr),
		}
	}

	return http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

var validationMessages = map[string]string{
	"email is required":                      "メールアドレスは必須です。",
	"email is invalid":                       "メールアドレスの形式が不正です。",
	"display name is required":               "表示名は必須です。",
	"password is required":                   "パスワードは必須です。",
	"name is required":                       "会議室名は必須です。",
	"location is required":                   "所在地は必須です。",
	"opening time is required":               "利用開始時刻は必須です。",
	"opening time must be formatted as HH:MM": "利用開始時刻は HH:MM 形式で指定してください。",
	"closing time is required":               "利用終了時刻は必須です。",
	"closing time must be formatted as HH:MM": "利用終了時刻は HH:MM 形式で指定してください。",
	"closing time must be after opening time": "利用終了時刻は利用開始時刻より後である必要があります。",
	"title is required":                      "タイトルは必須です。",
	"room is required":                       "会議室は必須です。",
	"room does not exist":                    "指定された会議室は存在しません。",
	"user does not exist":                    "指定されたユーザーは存在しません。",
	"room or owner does not exist":           "指定された会議室または利用者は存在しません。",
	"date is required":                       "日付は必須です。",
	"date must be formatted as YYYY-MM-DD":   "日付は YYYY-MM-DD 形式で指定してください。",
	"start time is required":                 "開始時刻は必須です。",
	"start time must be formatted as HH:MM":  "開始時刻は HH:MM 形式で指定してください。",
	"end time is required":                   "終了時刻は必須です。",
	"end time must be formatted as HH:MM":    "終了時刻は HH:MM 形式で指定してください。",
	"end time must be after start time":      "終了時刻は開始時刻より後である必要があります。",
	"from is required":                       "開始日は必須です。",
	"to is required":                         "終了日は必須です。",
	"to must not be before from":             "終了日は開始日以降である必要があります。",
	"administrators cannot delete their own account":         "管理者は自分自身のアカウントを削除できません。",
	"administrators cannot revoke their own administrator role": "管理者は自分自身の管理者権限を解除できません。",
}

func translateValidationMessage(message string) string {
	if translated, ok := validationMessages[message]; ok {
		return translated
	}
	switch {
	case strings.HasPrefix(message, "password must be at least "):
		return "パスワードは " + strings.TrimSuffix(strings.TrimPrefix(message, "password must be at least "), " characters") + " 文字以上で指定してください。"
	case strings.HasPrefix(message, "range must not exceed "):
		return "期間は " + strings.TrimSuffix(strings.TrimPrefix(message, "range must not exceed "), " days") + " 日以内で指定してください。"
	}
	return message
}

type errorResponse struct {
	ErrorCode string            `json:"errorCode,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *conflictDTO      `json:"conflict,omitempty"`
}
