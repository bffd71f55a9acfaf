package automation

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// UI copy tables. New wording on the console is added here, not in control flow.
// All entries are lower case; matching is done on normalized lower-case text.

var (
	// Login surface.
	authPathMarkers      = []string{"/auth/login", "/login", "/auth"}
	loginInputSelector   = `input[type="email"], input[name="email"], input[autocomplete="username"]`
	loginHeadingSelector = "h1, h2, h3, h4"
	loginHeadingPhrases  = []string{"log in or sign up"}
	loginAffordances     = []string{
		"continue with google",
		"continue with apple",
		"continue with microsoft",
		"continue with phone",
		"log in",
		"sign in",
	}

	// Credential login form.
	emailFieldSelector    = `input[type="email"], input[name="email"]`
	passwordFieldSelector = `input[type="password"], input[name="password"]`
	advanceLabels         = []string{"continue", "next", "继续", "下一步"}
	submitLabels          = []string{"continue", "log in", "sign in", "登录", "继续"}
	submitFallback        = `button[type="submit"]`

	// Workspace picker.
	workspaceCandidateSelector = `button, [role="button"], [role="option"], [role="menuitem"], li, a`
	personalWorkspaceMarkers   = []string{"personal account", "个人"}

	// Invite dialog.
	clickableSelector    = `button, [role="button"], [role="tab"], a`
	inviteLabelsExact    = []string{"invite member", "invite members", "邀请成员"}
	inviteLabelsLoose    = []string{"invite", "邀请"}
	pendingTabLabels     = []string{"pending invites", "pending invitations", "邀请中", "待处理邀请"}
	nextLabels           = []string{"next", "下一步"}
	sendLabels           = []string{"send email", "send invite", "send invites", "invite", "发送邀请", "邀请"}
	sendLabelsExactOnly  = []string{"确定", "ok"}
	adminRoleLabels      = []string{"admin", "管理员"}
	inviteSentPhrases    = []string{"invitation sent", "invite sent", "invites sent", "已发送邀请", "邀请已发送"}
	inviteURLKeywords    = []string{"invite", "invitation", "invit"}
	closeButtonSelector  = `[aria-label*="close"], [aria-label*="Close"], [aria-label*="关闭"]`
	roleSelectSelector   = `select[name="role"]`
	emailInputCandidates = []inputRule{
		{name: "type-email", match: attrEquals("type", "email")},
		{name: "placeholder-email", match: attrContainsFold("placeholder", "email")},
		{name: "placeholder-邮箱", match: attrContainsFold("placeholder", "邮箱")},
		{name: "name-email", match: attrEquals("name", "email")},
		{name: "id-email", match: attrContainsFold("id", "email")},
	}

	// Roster extraction.
	noiseAddressMarkers = []string{"noreply", "no-reply", "support"}
	placeholderDomains  = []string{"example.com", "example.org", "example.net"}
)

// inputRule selects an input element by attribute.
type inputRule struct {
	name  string
	match func(sel *goquery.Selection) bool
}

func attrEquals(attr, value string) func(*goquery.Selection) bool {
	return func(sel *goquery.Selection) bool {
		v, ok := sel.Attr(attr)
		return ok && strings.EqualFold(strings.TrimSpace(v), value)
	}
}

func attrContainsFold(attr, needle string) func(*goquery.Selection) bool {
	return func(sel *goquery.Selection) bool {
		v, ok := sel.Attr(attr)
		return ok && strings.Contains(strings.ToLower(v), needle)
	}
}

// isWorkspacePrompt matches dialog text asking the user to pick a workspace.
func isWorkspacePrompt(text string) bool {
	switch {
	case strings.Contains(text, "select a workspace"):
		return true
	case strings.Contains(text, "workspace") && strings.Contains(text, "select"):
		return true
	case strings.Contains(text, "工作空间") && (strings.Contains(text, "选择") || strings.Contains(text, "选取")):
		return true
	}
	return false
}

// isPersonalWorkspace matches the personal option that must never be picked.
func isPersonalWorkspace(text string) bool {
	return text == "personal" || containsAny(text, personalWorkspaceMarkers)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func equalsAny(text string, candidates []string) bool {
	for _, c := range candidates {
		if text == c {
			return true
		}
	}
	return false
}
