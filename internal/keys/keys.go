package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down  key.Binding
	Up    key.Binding
	Focus key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Mailbox
	Search      key.Binding
	Sync        key.Binding
	Retry       key.Binding
	NextAccount key.Binding
	Compose     key.Binding
	Settings    key.Binding
	Logout      key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding

	// Message actions
	Star       key.Binding
	ToggleRead key.Binding
	Delete     key.Binding
	Archive    key.Binding
	Export     key.Binding
	NextEmail  key.Binding
	PrevEmail  key.Binding

	// Account actions
	Add        key.Binding
	Edit       key.Binding
	Test       key.Binding
	Avatar     key.Binding
	SetDefault key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "folders/messages"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Sync: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "sync folder"),
		),
		Retry: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "retry load"),
		),
		NextAccount: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "next account"),
		),
		Compose: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "compose"),
		),
		Settings: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "accounts"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "sign out"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous page"),
		),
		Star: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "star"),
		),
		ToggleRead: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "read/unread"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Archive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "archive"),
		),
		Export: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "export .eml"),
		),
		NextEmail: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next message"),
		),
		PrevEmail: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "previous message"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add account"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit account"),
		),
		Test: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "test connection"),
		),
		Avatar: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "upload avatar"),
		),
		SetDefault: key.NewBinding(
			key.WithKeys("*"),
			key.WithHelp("*", "make default"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Compose, k.Search, k.Help, k.Quit,
	}
}

// Section is a titled group of bindings for the help page.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Sections groups the bindings by the view they act in.
func (k *KeyMap) Sections() []Section {
	return []Section{
		{"Navigation", []key.Binding{k.Up, k.Down, k.Focus, k.Select, k.Back, k.Quit}},
		{"Mailbox", []key.Binding{k.Search, k.Sync, k.Retry, k.NextAccount, k.NextPage, k.PrevPage}},
		{"Message", []key.Binding{k.Star, k.ToggleRead, k.Delete, k.Archive, k.Export, k.NextEmail, k.PrevEmail}},
		{"Accounts", []key.Binding{k.Settings, k.Add, k.Edit, k.Test, k.Avatar, k.SetDefault}},
		{"General", []key.Binding{k.Compose, k.Command, k.Help, k.Logout}},
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	sections := k.Sections()
	groups := make([][]key.Binding, len(sections))
	for i, s := range sections {
		groups[i] = s.Bindings
	}
	return groups
}
