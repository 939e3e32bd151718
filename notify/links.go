package notify

import (
	"strconv"
	"strings"
)

// SentinelChatPrefix marks a link that opens a conversation with a specific
// employee instead of navigating to a path.
const SentinelChatPrefix = "chat_with_employee_id:"

// NavTarget is a resolved navigation intent. External targets carry an
// absolute URL in Path; chat targets may carry the partner to open.
type NavTarget struct {
	Path         string
	TargetUserID int64
	External     bool
}

// legacyAdminPages maps old PHP page names still present in stored
// notification links onto the current admin screens.
var legacyAdminPages = map[string]string{
	"manage_attendance.php":    "/admin/attendance",
	"manage_expenses.php":      "/admin/expenses",
	"operational_expenses.php": "/admin/expenses",
	"personal_expenses.php":    "/admin/expenses",
	"financial_ledger.php":     "/admin/ledger",
	"patients.php":             "/admin/patients",
	"patient_details.php":      "/admin/patients",
	"chat.php":                 "/admin/chat",
	"index.php":                "/admin/dashboard",
	"dashboard.php":            "/admin/dashboard",
}

// ResolveLink parses a notification link into a navigation target. A link is
// a bare path, an absolute URL, a legacy PHP page name, or the chat sentinel
// form. admin selects the admin screen variants. The second return is false
// when the link is empty.
func ResolveLink(raw string, admin bool) (NavTarget, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NavTarget{}, false
	}

	chatPath := "/chat"
	if admin {
		chatPath = "/admin/chat"
	}

	// Chat links win over everything so the right chat variant opens.
	if strings.Contains(strings.ToLower(raw), "chat") {
		if strings.HasPrefix(raw, SentinelChatPrefix) {
			target := NavTarget{Path: chatPath}
			if id, err := strconv.ParseInt(raw[len(SentinelChatPrefix):], 10, 64); err == nil && id > 0 {
				target.TargetUserID = id
			}
			return target, true
		}
		if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			if admin {
				if mapped, ok := legacyAdminPages[pageName(raw)]; ok {
					return NavTarget{Path: mapped}, true
				}
			}
			return NavTarget{Path: chatPath}, true
		}
	}

	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return NavTarget{Path: raw, External: true}, true
	}

	if admin {
		if mapped, ok := legacyAdminPages[pageName(raw)]; ok {
			return NavTarget{Path: mapped}, true
		}
		return NavTarget{Path: normalizeAdminPath(raw)}, true
	}

	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return NavTarget{Path: raw}, true
}

// pageName strips any query or fragment and path prefix, leaving the bare
// page name used by the legacy mapping.
func pageName(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	return raw
}

func normalizeAdminPath(raw string) string {
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	switch raw {
	case "/", "/dashboard":
		return "/admin/dashboard"
	case "/chat":
		return "/admin/chat"
	}
	if !strings.HasPrefix(raw, "/admin/") {
		return "/admin" + raw
	}
	return raw
}
