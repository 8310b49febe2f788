package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Connect        key.Binding
	Deposit        key.Binding
	Withdraw       key.Binding
	DepositAmount  key.Binding
	WithdrawAmount key.Binding
	Refresh        key.Binding
	Quit           key.Binding
	// ForceQuit also works while an amount is being typed.
	ForceQuit key.Binding
}

var keys = keyMap{
	Connect: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "connect wallet"),
	),
	Deposit: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "deposit"),
	),
	Withdraw: key.NewBinding(
		key.WithKeys("w"),
		key.WithHelp("w", "withdraw"),
	),
	DepositAmount: key.NewBinding(
		key.WithKeys("D"),
		key.WithHelp("D", "deposit amount…"),
	),
	WithdrawAmount: key.NewBinding(
		key.WithKeys("W"),
		key.WithHelp("W", "withdraw amount…"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh balance"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
	),
}

// ShortHelp lists the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Deposit, k.Withdraw, k.DepositAmount, k.WithdrawAmount, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
