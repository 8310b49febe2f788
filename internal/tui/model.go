// Package tui is the terminal front-end of the ATM client. It renders the
// same regions as the web page and feeds every outcome through dapp.Reduce.
package tui

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"atmdapp/internal/dapp"
)

const title = "Welcome to the Metacrafters ATM!"

// Config holds the display and amount settings of the terminal client.
type Config struct {
	Unit            string
	Decimals        int32
	DepositAmount   *big.Int
	WithdrawAmount  *big.Int
	NotificationTTL time.Duration
}

// eventMsg carries a dapp event produced by a command back into Update.
type eventMsg struct {
	ev dapp.Event
}

type model struct {
	ctx   context.Context
	env   *dapp.Env
	cfg   Config
	state dapp.State

	keys     keyMap
	help     help.Model
	spin     spinner.Model
	input    textinput.Model
	entry    dapp.Kind // kind whose amount is being typed, empty otherwise
	inputErr string

	// after schedules msg once d has elapsed.
	after func(d time.Duration, msg tea.Msg) tea.Cmd

	quitting bool
}

// New builds the root bubbletea model.
func New(ctx context.Context, env *dapp.Env, cfg Config) tea.Model {
	return newModel(ctx, env, cfg)
}

func newModel(ctx context.Context, env *dapp.Env, cfg Config) model {
	if cfg.NotificationTTL <= 0 {
		cfg.NotificationTTL = dapp.DefaultNotificationTTL
	}
	if cfg.DepositAmount == nil {
		cfg.DepositAmount = big.NewInt(50)
	}
	if cfg.WithdrawAmount == nil {
		cfg.WithdrawAmount = big.NewInt(30)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(cBrown)

	in := textinput.New()
	in.Placeholder = "amount"
	in.CharLimit = 78
	in.Width = 30
	in.PromptStyle = lipgloss.NewStyle().Foreground(cBrown)
	in.Cursor.SetMode(cursor.CursorStatic)

	return model{
		ctx:   ctx,
		env:   env,
		cfg:   cfg,
		keys:  keys,
		help:  help.New(),
		spin:  sp,
		input: in,
		after: func(d time.Duration, msg tea.Msg) tea.Cmd {
			return tea.Tick(d, func(time.Time) tea.Msg { return msg })
		},
	}
}

func (m model) Init() tea.Cmd {
	env := m.env
	return tea.Batch(m.spin.Tick, func() tea.Msg {
		return eventMsg{env.Detect()}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case eventMsg:
		return m.apply(msg.ev)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.entry != "" {
			return m.updateEntry(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

// apply reduces ev into the state and returns the commands the new state
// calls for: silent authorization after detection, profile and balance loads
// after connecting, and the dismissal of a fresh notification.
func (m model) apply(ev dapp.Event) (model, tea.Cmd) {
	if ev == nil {
		return m, nil
	}
	prev := m.state
	m.state = dapp.Reduce(m.state, ev)

	var cmds []tea.Cmd
	switch e := ev.(type) {
	case dapp.WalletDetected:
		if m.state.Wallet == dapp.WalletPresent && prev.Wallet != dapp.WalletPresent {
			cmds = append(cmds, m.authorize(false))
		}
	case dapp.Connected:
		if m.state.Account == e.Account && m.state.Contract == e.Contract {
			env, ctx, account := m.env, m.ctx, e.Account
			cmds = append(cmds, func() tea.Msg {
				return eventMsg{env.LoadProfile(ctx, account)}
			})
		}
	}

	if n := m.state.Notification; n.Visible && n.ID != prev.Notification.ID {
		cmds = append(cmds, m.after(m.cfg.NotificationTTL, eventMsg{dapp.NotificationExpired{ID: n.ID}}))
	}

	if m.state.NeedsBalance() {
		var cmd tea.Cmd
		m, cmd = m.readBalance()
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) authorize(prompt bool) tea.Cmd {
	env, ctx := m.env, m.ctx
	return func() tea.Msg {
		return eventMsg{env.Authorize(ctx, prompt)}
	}
}

func (m model) readBalance() (model, tea.Cmd) {
	m.state = dapp.Reduce(m.state, dapp.BalanceRequested{})
	if m.state.Balance.Status != dapp.BalanceLoading {
		return m, nil
	}
	env, ctx := m.env, m.ctx
	contract, seq := m.state.Contract, m.state.Balance.Seq
	return m, func() tea.Msg {
		return eventMsg{env.ReadBalance(ctx, contract, seq)}
	}
}

func (m model) transact(kind dapp.Kind, amount *big.Int) (model, tea.Cmd) {
	if m.state.Region() != dapp.RegionDashboard {
		return m, nil
	}
	m.state = dapp.Reduce(m.state, dapp.TxStarted{Kind: kind, Amount: amount})
	env, ctx, contract := m.env, m.ctx, m.state.Contract
	return m, func() tea.Msg {
		return eventMsg{env.Transact(ctx, contract, kind, amount)}
	}
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Connect):
		if m.state.Wallet != dapp.WalletPresent {
			return m, nil
		}
		return m, m.authorize(true)

	case key.Matches(msg, m.keys.Deposit):
		return m.transact(dapp.KindDeposit, new(big.Int).Set(m.cfg.DepositAmount))

	case key.Matches(msg, m.keys.Withdraw):
		return m.transact(dapp.KindWithdrawal, new(big.Int).Set(m.cfg.WithdrawAmount))

	case key.Matches(msg, m.keys.DepositAmount):
		return m.startEntry(dapp.KindDeposit)

	case key.Matches(msg, m.keys.WithdrawAmount):
		return m.startEntry(dapp.KindWithdrawal)

	case key.Matches(msg, m.keys.Refresh):
		if m.state.Region() != dapp.RegionDashboard {
			return m, nil
		}
		return m.readBalance()
	}
	return m, nil
}

func (m model) startEntry(kind dapp.Kind) (tea.Model, tea.Cmd) {
	if m.state.Region() != dapp.RegionDashboard {
		return m, nil
	}
	m.entry = kind
	m.inputErr = ""
	m.input.SetValue("")
	return m, m.input.Focus()
}

func (m model) updateEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.entry = ""
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		raw := strings.TrimSpace(m.input.Value())
		amount, ok := new(big.Int).SetString(raw, 10)
		if !ok || amount.Sign() < 0 {
			m.inputErr = fmt.Sprintf("%q is not a whole non-negative amount", raw)
			return m, nil
		}
		kind := m.entry
		m.entry = ""
		m.input.Blur()
		return m.transact(kind, amount)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	switch m.state.Region() {
	case dapp.RegionDetecting:
		b.WriteString(m.spin.View() + " Detecting wallet...")
	case dapp.RegionInstallWallet:
		b.WriteString(errorStyle.Render("Please install a wallet in order to use this ATM."))
	case dapp.RegionConnect:
		b.WriteString("Press c to connect your wallet.")
		if m.state.ConnectError != "" {
			b.WriteString("\n" + errorStyle.Render(m.state.ConnectError))
		}
	case dapp.RegionDashboard:
		b.WriteString(m.dashboardView())
	}

	if n := m.state.Notification; n.Visible {
		style := failureStyle
		if n.Success {
			style = successStyle
		}
		b.WriteString("\n" + style.Render(n.Text(m.cfg.Unit)))
	}

	b.WriteString("\n\n" + m.help.View(m.keys))
	return appStyle.Render(b.String()) + "\n"
}

func (m model) dashboardView() string {
	st := m.state
	lines := []string{field("Your Account", st.Account.Hex())}

	switch st.Balance.Status {
	case dapp.BalanceLoaded:
		lines = append(lines, field("Your Balance", dapp.FormatUnits(st.Balance.Value, m.cfg.Decimals)+" "+m.cfg.Unit))
	case dapp.BalanceFailed:
		lines = append(lines, errorStyle.Render(st.Balance.Err+" (press r to retry)"))
	default:
		lines = append(lines, m.spin.View()+" Loading balance...")
	}

	if p := st.Profile; p != nil {
		lines = append(lines,
			"",
			field("Holder Name", p.HolderName),
			field("Education", p.Education),
			field("Credit Score", fmt.Sprint(p.CreditScore)),
			field("Loans", p.Loans.String()+" "+m.cfg.Unit),
			field("Fixed Deposit", p.FixedDeposit.String()+" "+m.cfg.Unit),
			field("Average Monthly Balance", p.AverageMonthlyBalance.String()+" "+m.cfg.Unit),
			field("Father's Name", p.FatherName),
			field("Mother's Name", p.MotherName),
		)
	}

	if st.Pending > 0 {
		lines = append(lines, "", m.spin.View()+fmt.Sprintf(" %d transaction(s) pending", st.Pending))
	}

	if m.entry != "" {
		lines = append(lines, "", fmt.Sprintf("%s amount (%s), enter to send, esc to cancel:", m.entry, m.cfg.Unit), m.input.View())
		if m.inputErr != "" {
			lines = append(lines, errorStyle.Render(m.inputErr))
		}
	}

	return panelStyle.Render(strings.Join(lines, "\n"))
}

func field(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}
