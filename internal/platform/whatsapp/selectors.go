package whatsapp

// Selectors pins the DOM entry points of WhatsApp Web. The UI re-renders
// often and selectors rot; navigation goes through this single table so
// a breakage is a one-file fix.
type Selectors struct {
	// ChatPane is present only after a successful login.
	ChatPane string
	// ChatRows matches one entry per visible chat in the left pane.
	ChatRows string
	// ChatTitle, scoped to a chat row, carries the display name in its
	// title attribute.
	ChatTitle string
	// UnreadBadge, scoped to a chat row, is present when the chat has a
	// numeric unread counter.
	UnreadBadge string
	// MessagePanel is the conversation container of the opened chat.
	MessagePanel string
	// MessageRows matches the rendered message bubbles, oldest first.
	MessageRows string
	// MessageText, scoped to a message row, holds the selectable body.
	MessageText string
	// QRCode is the login QR container; its data-ref attribute holds the
	// pairing payload.
	QRCode string
}

// DefaultSelectors returns the selector set for the current WhatsApp Web
// build.
func DefaultSelectors() Selectors {
	return Selectors{
		ChatPane:     `#pane-side`,
		ChatRows:     `#pane-side div[role="listitem"]`,
		ChatTitle:    `span[title]`,
		UnreadBadge:  `span[aria-label*="unread"]`,
		MessagePanel: `#main`,
		MessageRows:  `#main div.message-in, #main div.message-out`,
		MessageText:  `span.selectable-text`,
		QRCode:       `div[data-ref]`,
	}
}
