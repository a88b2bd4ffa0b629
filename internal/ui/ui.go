// Package ui holds the view model of the whitelist page: the single
// connect/join button and the static page copy.
package ui

// Label is the text of the page's action button.
type Label string

// Button labels.
const (
	LabelConnect Label = "Connect your wallet"
	LabelLoading Label = "Loading..."
	LabelJoin    Label = "Join the Whitelist"
)

// Page copy.
const (
	Title         = "Mind Name Service"
	Subtitle      = "Your immortal API on the blockchain!"
	TwitterHandle = "namn_grg"
	TwitterURL    = "https://twitter.com/" + TwitterHandle
)

// Action is what pressing the button does.
type Action string

// Button actions.
const (
	ActionConnect Action = "connect"
	ActionNone    Action = "none"
	ActionJoin    Action = "join"
)

// Button returns the label for the current session state. The pending
// flag only matters once connected; a disconnected session always offers
// to connect.
func Button(connected, pending bool) Label {
	switch {
	case !connected:
		return LabelConnect
	case pending:
		return LabelLoading
	default:
		return LabelJoin
	}
}

// ButtonAction returns the action bound to the button in a state.
func ButtonAction(connected, pending bool) Action {
	switch Button(connected, pending) {
	case LabelLoading:
		return ActionNone
	case LabelJoin:
		return ActionJoin
	default:
		return ActionConnect
	}
}

// Page is everything the page template renders.
type Page struct {
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	Button       Label  `json:"button"`
	Action       Action `json:"action"`
	Connected    bool   `json:"connected"`
	Pending      bool   `json:"pending"`
	Account      string `json:"account,omitempty"`
	Network      string `json:"network"`
	Notice       string `json:"notice,omitempty"`
	Footer       string `json:"footer"`
	FooterHandle string `json:"footer_handle"`
	FooterURL    string `json:"footer_url"`
}

// NewPage builds the page for a session state.
func NewPage(connected, pending bool) Page {
	return Page{
		Title:        Title,
		Subtitle:     Subtitle,
		Button:       Button(connected, pending),
		Action:       ButtonAction(connected, pending),
		Connected:    connected,
		Pending:      pending,
		Footer:       "Build with ❤ and ⚡ by",
		FooterHandle: "@" + TwitterHandle,
		FooterURL:    TwitterURL,
	}
}
