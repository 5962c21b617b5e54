package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/pipeline"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// Element ids used by the sidebar.
const (
	SidebarID   = "second-look-sidebar"
	budgetMsgID = "sl-budget-msg"
	dejaVuBoxID = "sl-deja-vu-container"
	dejaVuMsgID = "sl-deja-vu-msg"
	ToastClass  = "second-look-toast"
)

// ownNodesSelector matches every element the sidebar adds to a page.
const ownNodesSelector = "#" + SidebarID + ", ." + ToastClass

const sidebarStyle = `position: fixed; top: 20px; right: 20px; width: 350px; ` +
	`background: rgba(255, 255, 255, 0.95); border-left: 5px solid #6366f1; border-radius: 12px; ` +
	`box-shadow: 0 10px 30px rgba(0,0,0,0.2); padding: 20px; z-index: 2147483647; ` +
	`font-family: sans-serif; color: #333; display: flex; flex-direction: column; gap: 15px; ` +
	`max-height: 90vh; overflow-y: auto;`

const toastStyle = `position: fixed; bottom: 20px; left: 50%; transform: translateX(-50%); ` +
	`background: #00c853; color: white; padding: 12px 24px; border-radius: 50px; ` +
	`box-shadow: 0 4px 12px rgba(0,0,0,0.15); z-index: 2147483647; font-family: sans-serif; ` +
	`font-weight: bold; transition: opacity 0.5s;`

// Sidebar renders pipeline output into the watched tab. It implements
// pipeline.Presenter.
type Sidebar struct {
	session *Session
}

func NewSidebar(s *Session) *Sidebar {
	return &Sidebar{session: s}
}

func (sb *Sidebar) run(ctx context.Context, script string) error {
	ok, err := sb.session.evaluate(ctx, script)
	if err != nil {
		return err
	}
	if !ok {
		return pipeline.ErrNoElement
	}
	return nil
}

func (sb *Sidebar) ShowLoading(ctx context.Context, cartTotal decimal.Decimal) error {
	return sb.run(ctx, showSidebarScript(cartTotal))
}

func (sb *Sidebar) UpdateBudget(ctx context.Context, message string) error {
	return sb.run(ctx, updateBudgetScript(message))
}

func (sb *Sidebar) ShowAnalysis(ctx context.Context, a models.Analysis) error {
	return sb.run(ctx, showAnalysisScript(a))
}

func (sb *Sidebar) Toast(ctx context.Context, message string) error {
	return sb.run(ctx, toastScript(message))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func sidebarHTML(cartTotal decimal.Decimal) string {
	return `<div style="display: flex; justify-content: space-between; align-items: center; border-bottom: 1px solid #eee; padding-bottom: 10px;">` +
		`<h2 style="margin: 0; font-size: 18px; font-weight: 800; color: #6366f1;">SECOND LOOK</h2>` +
		`<button id="second-look-close" style="background: none; border: none; font-size: 18px; cursor: pointer; color: #888;">✖</button>` +
		`</div>` +
		`<div style="background: #f8f9fa; padding: 15px; border-radius: 8px; border: 1px solid #e2e8f0;">` +
		`<h3 style="margin: 0 0 10px 0; font-size: 12px; text-transform: uppercase; color: #64748b;">💳 Budget Guardian</h3>` +
		`<p id="` + budgetMsgID + `" style="margin: 0; font-size: 14px; line-height: 1.5; color: #1e293b;">` +
		html.EscapeString(pipeline.LoadingMessage) + `</p></div>` +
		`<div id="` + dejaVuBoxID + `" style="background: #fffbeb; padding: 15px; border-radius: 8px; border: 1px solid #fef3c7;">` +
		`<h3 style="margin: 0 0 10px 0; font-size: 12px; text-transform: uppercase; color: #d97706;">🔄 Deja Vu AI</h3>` +
		`<div id="` + dejaVuMsgID + `" style="font-size: 14px; line-height: 1.5; color: #92400e;">` +
		`<span style="opacity: 0.6;">Categorizing your cart...</span></div></div>` +
		`<div style="font-size: 11px; color: #94a3b8; text-align: center; border-top: 1px solid #f1f5f9; padding-top: 10px;">` +
		`Cart Total: $` + cartTotal.StringFixed(2) + `</div>`
}

// showSidebarScript creates the sidebar once per page. A sidebar left
// over from an earlier checkout visit is kept.
func showSidebarScript(cartTotal decimal.Decimal) string {
	return fmt.Sprintf(`((id, markup, style) => {
	if (document.getElementById(id)) return true;
	const root = document.body || document.documentElement;
	if (!root) return false;
	const el = document.createElement("div");
	el.id = id;
	el.style.cssText = style;
	el.innerHTML = markup;
	root.appendChild(el);
	const close = document.getElementById("second-look-close");
	if (close) close.onclick = () => el.remove();
	return true;
})(%s, %s, %s)`, jsString(SidebarID), jsString(sidebarHTML(cartTotal)), jsString(sidebarStyle))
}

func updateBudgetScript(message string) string {
	return fmt.Sprintf(`((id, msg) => {
	const el = document.getElementById(id);
	if (!el) return false;
	el.innerText = msg;
	return true;
})(%s, %s)`, jsString(budgetMsgID), jsString(message))
}

// analysisHTML renders the duplicate cards and market insights.
func analysisHTML(a models.Analysis) string {
	var b strings.Builder
	if len(a.Duplicates) > 0 {
		b.WriteString(`<p style="margin: 0 0 10px 0; font-size: 13px; font-weight: 600;">Wait! You own a similar item already:</p>`)
		for _, d := range a.Duplicates {
			fmt.Fprintf(&b, `<div style="background: white; border: 1px solid #fde68a; border-radius: 8px; padding: 10px; margin-bottom: 8px;">`+
				`<div style="font-weight: 800; font-size: 13px; color: #1e293b;">🛒 %s</div>`+
				`<div style="font-size: 12px; color: #475569;">Matched: <span style="font-weight: 600; color: #92400e;">"%s"</span></div>`+
				`<div style="margin-top: 8px; display: flex; justify-content: space-between; font-size: 10px;">`+
				`<span style="text-transform: uppercase; color: #d97706; font-weight: 700;">%s</span>`+
				`<span style="color: #94a3b8;">%s</span></div></div>`,
				html.EscapeString(pipeline.Shorten(d.CartItem, 65)),
				html.EscapeString(pipeline.Shorten(d.HistoryItem, 50)),
				html.EscapeString(d.Category),
				html.EscapeString(d.PurchaseDate))
		}
	} else {
		b.WriteString(`<p style="margin: 0; color: #166534;">` + html.EscapeString(pipeline.AllClearMessage) + `</p>`)
	}

	for _, m := range a.MarketInsights {
		fmt.Fprintf(&b, `<div style="margin-top: 10px; padding: 10px; border-radius: 8px; background: #eef2ff; border: 1px solid #c7d2fe;">`+
			`<div style="font-weight: 700; font-size: 13px;">🏢 %s</div>`, html.EscapeString(m.Company))
		if m.Message != "" {
			fmt.Fprintf(&b, `<div style="font-size: 12px; margin-top: 4px;">%s</div>`, html.EscapeString(m.Message))
		}
		for _, alt := range m.Alternatives {
			name := html.EscapeString(alt.Name)
			if link, ok := safeLink(alt.URL); ok {
				name = fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener">%s</a>`, html.EscapeString(link), name)
			}
			fmt.Fprintf(&b, `<div style="font-size: 12px; margin-top: 4px;">↳ %s: %s</div>`, name, html.EscapeString(alt.Reason))
		}
		b.WriteString(`</div>`)
	}
	return b.String()
}

// safeLink accepts only absolute http(s) URLs; anything else renders as
// plain text.
func safeLink(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func showAnalysisScript(a models.Analysis) string {
	box := "#fffbeb"
	if len(a.Duplicates) == 0 {
		box = "#f0fdf4"
	}
	return fmt.Sprintf(`((boxID, msgID, markup, bg) => {
	const box = document.getElementById(boxID);
	const msg = document.getElementById(msgID);
	if (!box || !msg) return false;
	box.style.background = bg;
	msg.innerHTML = markup;
	return true;
})(%s, %s, %s, %s)`, jsString(dejaVuBoxID), jsString(dejaVuMsgID), jsString(analysisHTML(a)), jsString(box))
}

func toastScript(message string) string {
	return fmt.Sprintf(`((msg, style, cls) => {
	if (!document.body) return false;
	const el = document.createElement("div");
	el.className = cls;
	el.style.cssText = style;
	el.innerText = msg;
	document.body.appendChild(el);
	setTimeout(() => {
		el.style.opacity = "0";
		setTimeout(() => el.remove(), 500);
	}, 3000);
	return true;
})(%s, %s, %s)`, jsString(message), jsString(toastStyle), jsString(ToastClass))
}
