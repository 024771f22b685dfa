// Package whatsapp implements the platform capability interface against
// WhatsApp Web, driving a Chromium instance through chromedp.
package whatsapp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"wascrape/internal/platform"
)

const webURL = "https://web.whatsapp.com/"

// Options configures the browser session.
type Options struct {
	// UserDataDir is the browser profile directory. It is the opaque
	// session store: login persistence lives in there and is never
	// inspected.
	UserDataDir string
	Headless    bool
	NavTimeout  time.Duration
	Selectors   Selectors
	Logger      *zap.Logger
}

// Client drives one WhatsApp Web session. It implements platform.Client.
// The underlying page is single-threaded; callers must not interleave
// operations concurrently.
type Client struct {
	browser       context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	sel           Selectors
	nav           time.Duration
	logger        *zap.Logger
}

var _ platform.Client = (*Client)(nil)

// New launches the browser. Callers own the returned client and must
// Close it.
func New(opts Options) (*Client, error) {
	if opts.Selectors == (Selectors{}) {
		opts.Selectors = DefaultSelectors()
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(opts.UserDataDir),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browser, browserCancel := chromedp.NewContext(allocCtx)

	// Launch now so a missing Chromium binary fails fast.
	if err := chromedp.Run(browser); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Client{
		browser:       browser,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		sel:           opts.Selectors,
		nav:           opts.NavTimeout,
		logger:        opts.Logger,
	}, nil
}

// Close tears the browser down.
func (c *Client) Close() {
	c.browserCancel()
	c.allocCancel()
}

// run executes actions on the page with the navigation timeout, aborting
// early when the caller's ctx is cancelled.
func (c *Client) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(c.browser, c.nav)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

// Open navigates to WhatsApp Web and waits until either the chat pane
// (already logged in) or the login QR is rendered.
func (c *Client) Open(ctx context.Context) error {
	probe := fmt.Sprintf(`!!document.querySelector(%q) || !!document.querySelector(%q)`,
		c.sel.ChatPane, c.sel.QRCode)

	if err := c.run(ctx, chromedp.Navigate(webURL)); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	deadline := time.Now().Add(c.nav)
	for time.Now().Before(deadline) {
		var ready bool
		if err := c.run(ctx, chromedp.Evaluate(probe, &ready)); err != nil {
			return fmt.Errorf("probe page: %w", err)
		}
		if ready {
			return nil
		}
		pause(ctx, 500*time.Millisecond, time.Second)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.New("whatsapp web did not render")
}

// IsLoggedIn reports whether the chat pane is present.
func (c *Client) IsLoggedIn(ctx context.Context) (bool, error) {
	var ok bool
	probe := fmt.Sprintf(`!!document.querySelector(%q)`, c.sel.ChatPane)
	if err := c.run(ctx, chromedp.Evaluate(probe, &ok)); err != nil {
		return false, fmt.Errorf("probe login: %w", err)
	}
	return ok, nil
}

type chatRow struct {
	Title  string `json:"title"`
	Unread int    `json:"unread"`
}

// ListChats reads the currently visible chat list, most recent first.
func (c *Client) ListChats(ctx context.Context) ([]platform.ChatInfo, error) {
	js := fmt.Sprintf(`
		Array.from(document.querySelectorAll(%q)).map(row => {
			const t = row.querySelector(%q);
			const badge = row.querySelector(%q);
			let unread = 0;
			if (badge) {
				const n = parseInt(badge.textContent, 10);
				if (!isNaN(n)) unread = n;
			}
			return {
				title: t ? (t.getAttribute('title') || t.textContent || '') : '',
				unread: unread,
			};
		}).filter(c => c.title)`,
		c.sel.ChatRows, c.sel.ChatTitle, c.sel.UnreadBadge)

	var rows []chatRow
	if err := c.run(ctx, chromedp.Evaluate(js, &rows)); err != nil {
		return nil, platform.TransientErr("chat list", err)
	}

	chats := make([]platform.ChatInfo, 0, len(rows))
	for _, r := range rows {
		chats = append(chats, platform.ChatInfo{
			ID:          chatID(r.Title),
			DisplayName: r.Title,
			UnreadCount: r.Unread,
			Handle:      r.Title,
		})
	}
	c.logger.Debug("chat list read", zap.Int("chats", len(chats)))
	return chats, nil
}

type messageRow struct {
	Content   string `json:"content"`
	Direction string `json:"direction"`
	Kind      string `json:"kind"`
	Time      string `json:"time"`
}

// Extract opens the chat and reads the rendered message bubbles, oldest
// first. Timeouts and missing rows are transient: the pane may still be
// rendering and a retry usually lands.
func (c *Client) Extract(ctx context.Context, chat platform.ChatInfo) ([]platform.RawRecord, error) {
	if err := c.openChat(ctx, chat.Handle); err != nil {
		return nil, err
	}
	pause(ctx, 400*time.Millisecond, 1200*time.Millisecond)

	js := fmt.Sprintf(`
		Array.from(document.querySelectorAll(%q)).map(row => {
			const dir = row.classList.contains('message-out') ? 'out' : 'in';
			const text = row.querySelector(%q);
			let kind = 'text';
			let content = text ? text.innerText : '';
			if (!text) {
				const media = row.querySelector('img, video, audio');
				if (media) {
					// Blob URLs rotate per render; a tag placeholder is the
					// only stable payload for caption-less media.
					kind = 'media';
					content = '[' + media.tagName.toLowerCase() + ']';
				} else {
					kind = 'unknown';
				}
			}
			const meta = row.querySelector('[data-pre-plain-text]');
			return {
				content: content,
				direction: dir,
				kind: kind,
				time: meta ? (meta.getAttribute('data-pre-plain-text') || '') : '',
			};
		})`,
		c.sel.MessageRows, c.sel.MessageText)

	var rows []messageRow
	if err := c.run(ctx, chromedp.Evaluate(js, &rows)); err != nil {
		return nil, platform.TransientErr("messages", err)
	}

	records := make([]platform.RawRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, platform.RawRecord{
			Content:       r.Content,
			Direction:     platform.Direction(r.Direction),
			DataType:      platform.DataType(r.Kind),
			TimestampHint: r.Time,
		})
	}
	return records, nil
}

// openChat clicks the chat row matching the handle and waits for the
// message panel.
func (c *Client) openChat(ctx context.Context, handle string) error {
	js := fmt.Sprintf(`(() => {
		for (const row of document.querySelectorAll(%q)) {
			const t = row.querySelector(%q);
			if (t && (t.getAttribute('title') || '') === %q) {
				row.scrollIntoView({block: 'center'});
				row.click();
				return true;
			}
		}
		return false;
	})()`, c.sel.ChatRows, c.sel.ChatTitle, handle)

	var clicked bool
	if err := c.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return platform.TransientErr("open chat", err)
	}
	if !clicked {
		// List reorders as messages arrive; the row may be back next pass.
		return platform.TransientErr("open chat", errors.New("chat row not visible"))
	}
	if err := c.run(ctx, chromedp.WaitVisible(c.sel.MessagePanel, chromedp.ByQuery)); err != nil {
		return platform.TransientErr("message panel", err)
	}
	return nil
}

// QRCode returns the pairing payload of the rendered login QR.
func (c *Client) QRCode(ctx context.Context) (string, error) {
	var nodes []*cdp.Node
	err := c.run(ctx, chromedp.Nodes(c.sel.QRCode, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)))
	if err != nil {
		return "", fmt.Errorf("locate QR: %w", err)
	}
	if len(nodes) == 0 {
		return "", errors.New("login QR not rendered")
	}
	ref := nodes[0].AttributeValue("data-ref")
	if ref == "" {
		return "", errors.New("QR payload missing")
	}
	return ref, nil
}

// WaitLoggedIn polls until the chat pane appears or ctx expires. The QR
// payload rotates server-side; onRefresh is invoked with each new
// payload so the caller can re-render it.
func (c *Client) WaitLoggedIn(ctx context.Context, onRefresh func(code string)) error {
	lastCode := ""
	for {
		ok, err := c.IsLoggedIn(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if onRefresh != nil {
			if code, err := c.QRCode(ctx); err == nil && code != lastCode {
				lastCode = code
				onRefresh(code)
			}
		}
		pause(ctx, time.Second, 2*time.Second)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// chatID derives the stable chat identifier. WhatsApp Web does not
// expose the JID in the list pane, so the identifier is a fingerprint of
// the display name.
func chatID(title string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(title))))
	return "wa-" + hex.EncodeToString(h[:])[:16]
}
