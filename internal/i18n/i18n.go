// Package i18n holds the operator-facing message catalogs.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. Each key is also the English text.
const (
	NotInitialized       = "Login has not been initialized for this account"
	LoggedInWithCount    = "Logged in, %d members"
	LoggedInNoCount      = "Logged in, member count unavailable"
	LoggedOut            = "Not logged in"
	CheckFailed          = "Login check failed: %s"
	SyncSucceeded        = "Synced %d members"
	SyncNoCount          = "Could not read the member count"
	SyncFailed           = "Member sync failed: %s"
	VerifySucceeded      = "Credentials verified"
	VerifyFailed         = "Credential verification failed: %s"
	InitLoginSucceeded   = "Login initialized"
	InitLoginFailed      = "Login initialization failed: %s"
	JobCreated           = "Invite job created for %d addresses"
	JobNoAddresses       = "No valid email addresses supplied"
	AutoInviteQueued     = "Invite job queued on account %s"
	NoEligibleAccount    = "No account has free seats and an initialized login"
	ManualLoginBanner    = "Please finish logging in in this window. Automation resumes once you are logged in."
	ErrLaunchFailure     = "The browser could not be started"
	ErrLoginFailed       = "Login failed"
	ErrWorkspaceFailed   = "The team workspace could not be selected"
	ErrNoWorkspaceOption = "No team workspace is available to select"
	ErrWrongPage         = "The members page could not be opened"
	ErrInviteButton      = "The invite button was not found"
	ErrEmailInput        = "The invite email field was not found"
	ErrSendButton        = "The invite send button was not found"
	ErrInviteRequest     = "The invite request was rejected"
	ErrInviteUnconfirmed = "The invite could not be confirmed"
	ErrExtraction        = "Page content could not be read"
)

var (
	English     = language.English
	SimpChinese = language.SimplifiedChinese
)

var matcher = language.NewMatcher([]language.Tag{English, SimpChinese})

func init() {
	zh := map[string]string{
		NotInitialized:       "该账号尚未初始化登录",
		LoggedInWithCount:    "已登录，当前 %d 名成员",
		LoggedInNoCount:      "已登录，无法读取成员数量",
		LoggedOut:            "未登录",
		CheckFailed:          "登录检查失败：%s",
		SyncSucceeded:        "已同步 %d 名成员",
		SyncNoCount:          "无法读取成员数量",
		SyncFailed:           "成员同步失败：%s",
		VerifySucceeded:      "账号验证成功",
		VerifyFailed:         "账号验证失败：%s",
		InitLoginSucceeded:   "登录初始化完成",
		InitLoginFailed:      "登录初始化失败：%s",
		JobCreated:           "已为 %d 个邮箱创建邀请任务",
		JobNoAddresses:       "没有有效的邮箱地址",
		AutoInviteQueued:     "邀请任务已分配到账号 %s",
		NoEligibleAccount:    "没有可用座位且已初始化登录的账号",
		ManualLoginBanner:    "请在此窗口中完成登录，登录成功后自动化将继续。",
		ErrLaunchFailure:     "浏览器启动失败",
		ErrLoginFailed:       "登录失败",
		ErrWorkspaceFailed:   "无法选择团队工作空间",
		ErrNoWorkspaceOption: "没有可选择的团队工作空间",
		ErrWrongPage:         "无法打开成员管理页面",
		ErrInviteButton:      "未找到邀请按钮",
		ErrEmailInput:        "未找到邀请邮箱输入框",
		ErrSendButton:        "找不到提交按钮",
		ErrInviteRequest:     "邀请请求被拒绝",
		ErrInviteUnconfirmed: "无法确认邀请结果",
		ErrExtraction:        "无法读取页面内容",
	}
	for key, text := range zh {
		_ = message.SetString(SimpChinese, key, text)
		_ = message.SetString(English, key, key)
	}
}

// Printer returns a message printer for the best match of locale, defaulting to English.
func Printer(locale string) *message.Printer {
	tag, _, _ := matcher.Match(language.Make(locale))
	base, _ := tag.Base()
	if zhBase, _ := SimpChinese.Base(); base == zhBase {
		return message.NewPrinter(SimpChinese)
	}
	return message.NewPrinter(English)
}
