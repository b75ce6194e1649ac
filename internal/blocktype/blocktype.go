// Package blocktype lists the block kinds the API serves and where each
// kind keeps its data.  Routes and the generic block service are driven by
// this table; per-kind display metadata, pro gating and limits live in the
// metadata collection instead.
package blocktype

// Storage selects how a kind's data is persisted.
type Storage int

const (
	// Inline data is stored on the page.
	Inline Storage = iota
	// GlobalSingleton data is stored once per user in globals and
	// referenced from pages by entry id.
	GlobalSingleton
	// GlobalList data is a per-platform list in globals; pages reference
	// individual list items.
	GlobalList
)

func (s Storage) String() string {
	switch s {
	case GlobalSingleton:
		return "global-singleton"
	case GlobalList:
		return "global-list"
	default:
		return "inline"
	}
}

// Kind describes one block type.
type Kind struct {
	Name    string  // blockType literal carried in requests and documents
	Route   string  // path segment under /api/v1
	Storage Storage // where the data lives
}

// IsGlobal reports whether the kind's data lives in the user's globals.
func (k Kind) IsGlobal() bool { return k.Storage != Inline }

// Block type names.
const (
	Heading        = "heading"
	Image          = "image"
	Bio            = "bio"
	Logo           = "logo"
	Social         = "social"
	Link           = "link"
	Audio          = "audio"
	Carousel       = "carousel"
	ContactCard    = "contactCard"
	ContactForm    = "contactForm"
	LinkToPage     = "linkToPage"
	Video          = "video"
	Text           = "text"
	Clipboard      = "clipboard"
	AppLink        = "appLink"
	EmailSubscribe = "emailSubscribe"
)

var kinds = []Kind{
	{Name: Heading, Route: "heading", Storage: Inline},
	{Name: Image, Route: "image", Storage: Inline},
	{Name: Bio, Route: "bio", Storage: GlobalSingleton},
	{Name: Logo, Route: "logo", Storage: GlobalSingleton},
	{Name: Social, Route: "social", Storage: GlobalList},
	{Name: Link, Route: "link", Storage: Inline},
	{Name: Audio, Route: "audio", Storage: Inline},
	{Name: Carousel, Route: "carousel", Storage: Inline},
	{Name: ContactCard, Route: "contact-card", Storage: GlobalSingleton},
	{Name: ContactForm, Route: "contact-form", Storage: Inline},
	{Name: LinkToPage, Route: "link-to-page", Storage: Inline},
	{Name: Video, Route: "video", Storage: Inline},
	{Name: Text, Route: "text", Storage: Inline},
	{Name: Clipboard, Route: "clipboard-button", Storage: Inline},
	{Name: AppLink, Route: "app-link", Storage: Inline},
	{Name: EmailSubscribe, Route: "email-subscribe", Storage: Inline},
}

var (
	byName  = map[string]Kind{}
	byRoute = map[string]Kind{}
)

func init() {
	for _, k := range kinds {
		byName[k.Name] = k
		byRoute[k.Route] = k
	}
}

// Lookup returns the kind registered under a blockType literal.
func Lookup(name string) (Kind, bool) {
	k, ok := byName[name]
	return k, ok
}

// ByRoute returns the kind served under a route segment.
func ByRoute(route string) (Kind, bool) {
	k, ok := byRoute[route]
	return k, ok
}

// All returns every registered kind in registration order.
func All() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}
